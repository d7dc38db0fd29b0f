package middlewares

import (
	"net/http"

	httperrors "github.com/dropDatabas3/centavo/internal/http/errors"
	"github.com/dropDatabas3/centavo/internal/http/helpers"
	sessionsvc "github.com/dropDatabas3/centavo/internal/http/services/session"
	"github.com/dropDatabas3/centavo/internal/observability/logger"
)

// WithSession resuelve la cookie de sesión y deja usuario y sesión en el
// contexto. Si la sesión se renovó (rolling), reemite la cookie con el
// Max-Age nuevo; el token no cambia.
//
// Sin cookie, o con sesión vencida/revocada, responde 401 y borra la cookie
// para que el browser no la siga mandando.
func WithSession(svc *sessionsvc.Service, policy helpers.CookiePolicy) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			c, err := r.Cookie(policy.Name)
			if err != nil || c.Value == "" {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}

			sess, user, renewed, err := svc.Resolve(ctx, c.Value)
			if err != nil {
				if err == sessionsvc.ErrNoSession {
					http.SetCookie(w, policy.BuildDeletionCookie())
					httperrors.WriteError(w, httperrors.ErrSessionExpired)
					return
				}
				logger.From(ctx).Error("session resolve failed",
					logger.Op("session.resolve"),
					logger.Err(err),
				)
				httperrors.WriteError(w, httperrors.ErrInternalServerError)
				return
			}

			if renewed {
				http.SetCookie(w, policy.BuildSessionCookie(c.Value, svc.TTL()))
			}

			ctx = WithUser(ctx, user)
			ctx = WithSessionValue(ctx, sess)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.UserID(user.ID)))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
