// Package session implementa el ciclo de vida de las sesiones server-side:
// emisión, resolución con renovación rolling, revocación y listado.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/centavo/internal/audit"
	"github.com/dropDatabas3/centavo/internal/metrics"
	"github.com/dropDatabas3/centavo/internal/observability/logger"
	"github.com/dropDatabas3/centavo/internal/security/tokens"
	"github.com/dropDatabas3/centavo/internal/store/core"
)

// ErrNoSession indica que el token no corresponde a ninguna sesión viva.
// El caller responde 401 sin distinguir entre inexistente y expirada.
var ErrNoSession = errors.New("session: no active session")

type Service struct {
	repo       core.Repository
	ttl        time.Duration
	renewAfter time.Duration
	now        func() time.Time
}

func NewService(repo core.Repository, ttl, renewAfter time.Duration) *Service {
	return &Service{
		repo:       repo,
		ttl:        ttl,
		renewAfter: renewAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock reemplaza el reloj. Sólo para tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// TTL expone la duración configurada, para armar el Max-Age de la cookie.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issued es el resultado de emitir una sesión: el token opaco viaja al
// browser en la cookie, el registro persiste sólo el hash.
type Issued struct {
	Token   string
	Session *core.Session
}

// Issue crea una sesión nueva para el usuario. source etiqueta la métrica
// (credential, social, mfa).
func (s *Service) Issue(ctx context.Context, userID, ip, userAgent, source string) (*Issued, error) {
	token, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := &core.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokens.SHA256Base64URL(token),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
		UpdatedAt: now,
		IP:        ip,
		UserAgent: userAgent,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	metrics.SessionsIssued.WithLabelValues(source).Inc()
	logger.From(ctx).Info("session issued",
		logger.Op("session.issue"),
		logger.UserID(userID),
		logger.SessionID(sess.ID),
	)
	return &Issued{Token: token, Session: sess}, nil
}

// Resolve valida el token de la cookie y devuelve la sesión y su usuario.
// Si la sesión superó la ventana de renovación se extiende el vencimiento
// (mismo token, misma fila) y renewed viene en true para que el handler
// reemita la cookie con el Max-Age nuevo.
//
// Una sesión vencida se borra acá mismo (limpieza perezosa) y se trata
// igual que una inexistente.
func (s *Service) Resolve(ctx context.Context, token string) (sess *core.Session, user *core.User, renewed bool, err error) {
	if token == "" {
		return nil, nil, false, ErrNoSession
	}

	hash := tokens.SHA256Base64URL(token)
	sess, err = s.repo.GetSessionByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil, false, ErrNoSession
		}
		return nil, nil, false, err
	}

	now := s.now()
	if !sess.ExpiresAt.After(now) {
		_ = s.repo.DeleteSessionByTokenHash(ctx, hash)
		return nil, nil, false, ErrNoSession
	}

	if now.Sub(sess.UpdatedAt) >= s.renewAfter {
		newExpiry := now.Add(s.ttl)
		if err := s.repo.TouchSession(ctx, sess.ID, newExpiry, now); err == nil {
			sess.ExpiresAt = newExpiry
			sess.UpdatedAt = now
			renewed = true
			metrics.SessionsRenewed.Inc()
		} else {
			// Si la renovación falla la sesión sigue siendo válida hasta su
			// vencimiento original; no es motivo para echar al usuario.
			logger.From(ctx).Warn("session renewal failed",
				logger.Op("session.renew"),
				logger.SessionID(sess.ID),
				logger.Err(err),
			)
		}
	}

	user, err = s.repo.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Usuario borrado con sesión viva: revocamos y tratamos como anónimo.
			_ = s.repo.DeleteSessionByTokenHash(ctx, hash)
			return nil, nil, false, ErrNoSession
		}
		return nil, nil, false, err
	}
	return sess, user, renewed, nil
}

// Revoke elimina la sesión del token dado. Idempotente: revocar una sesión
// inexistente no es error.
func (s *Service) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.repo.DeleteSessionByTokenHash(ctx, tokens.SHA256Base64URL(token)); err != nil {
		return err
	}
	metrics.SessionsRevoked.WithLabelValues("signout").Inc()
	return nil
}

// RevokeAll elimina todas las sesiones del usuario. reason etiqueta la métrica.
func (s *Service) RevokeAll(ctx context.Context, userID, reason string) (int64, error) {
	n, err := s.repo.DeleteSessionsByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.SessionsRevoked.WithLabelValues(reason).Add(float64(n))
		audit.Event(ctx, "sessions_revoked", userID, zap.Int64("count", n), zap.String("reason", reason))
	}
	return n, nil
}

// UserByID busca un usuario ya autenticado por otro camino (ej. desafío MFA
// completado) para armar la respuesta.
func (s *Service) UserByID(ctx context.Context, userID string) (*core.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// List devuelve las sesiones vivas del usuario, la más reciente primero.
func (s *Service) List(ctx context.Context, userID string) ([]core.Session, error) {
	return s.repo.ListSessionsByUser(ctx, userID)
}

// PurgeExpired borra sesiones vencidas. Pensado para correrse periódicamente
// desde el ciclo de mantenimiento o el CLI.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx, s.now())
}
