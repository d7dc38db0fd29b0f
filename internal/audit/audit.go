// Package audit emite el rastro de eventos de seguridad: signin, signup,
// cambios de 2FA, revocación de sesiones, linking social. Hoy sale por el
// logger estructurado con un marcador fijo para poder filtrarlo en el
// agregador; si mañana hace falta un sink propio (tabla, cola) cambia sólo
// este paquete.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/centavo/internal/observability/logger"
)

// Event registra un evento de auditoría asociado al request en curso.
// userID puede ser vacío cuando el evento no tiene usuario resuelto
// (ej. signin con email inexistente).
func Event(ctx context.Context, event, userID string, fields ...zap.Field) {
	base := []zap.Field{
		zap.String("audit", event),
	}
	if userID != "" {
		base = append(base, zap.String("user_id", userID))
	}
	logger.From(ctx).Info("audit", append(base, fields...)...)
}
