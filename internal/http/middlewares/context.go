package middlewares

import (
	"context"

	"github.com/dropDatabas3/centavo/internal/store/core"
)

type ctxKey string

const (
	// ctxUserKey guarda el usuario autenticado resuelto por WithSession
	ctxUserKey ctxKey = "user"
	// ctxSessionKey guarda la sesión activa
	ctxSessionKey ctxKey = "session"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
)

// WithUser inyecta el usuario autenticado en el contexto
func WithUser(ctx context.Context, u *core.User) context.Context {
	return context.WithValue(ctx, ctxUserKey, u)
}

// WithSessionValue inyecta la sesión activa en el contexto
func WithSessionValue(ctx context.Context, s *core.Session) context.Context {
	return context.WithValue(ctx, ctxSessionKey, s)
}

// setRequestID inyecta el request ID en el contexto (interno)
func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetUser obtiene el usuario autenticado del contexto.
// Retorna nil si la ruta no pasó por WithSession.
func GetUser(ctx context.Context) *core.User {
	if v := ctx.Value(ctxUserKey); v != nil {
		if u, ok := v.(*core.User); ok {
			return u
		}
	}
	return nil
}

// GetSession obtiene la sesión activa del contexto.
func GetSession(ctx context.Context) *core.Session {
	if v := ctx.Value(ctxSessionKey); v != nil {
		if s, ok := v.(*core.Session); ok {
			return s
		}
	}
	return nil
}

// GetRequestID obtiene el request ID del contexto.
// Retorna cadena vacía si no hay request ID.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
