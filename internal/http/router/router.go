// Package router arma el árbol de rutas y la cadena de middlewares.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	accountctrl "github.com/dropDatabas3/centavo/internal/http/controllers/account"
	authctrl "github.com/dropDatabas3/centavo/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/centavo/internal/http/controllers/health"
	mfactrl "github.com/dropDatabas3/centavo/internal/http/controllers/mfa"
	socialctrl "github.com/dropDatabas3/centavo/internal/http/controllers/social"
	httperrors "github.com/dropDatabas3/centavo/internal/http/errors"
	mw "github.com/dropDatabas3/centavo/internal/http/middlewares"
	"github.com/dropDatabas3/centavo/internal/rate"
)

type Deps struct {
	Auth    *authctrl.Controller
	MFA     *mfactrl.Controller
	Account *accountctrl.Controller
	Social  *socialctrl.Controller
	Health  *healthctrl.Controller

	// SessionAuth protege las rutas que requieren sesión activa.
	SessionAuth mw.Middleware

	TrustedOrigins []string

	// Limiters por grupo de endpoints; nil desactiva el límite.
	SigninLimiter rate.Limiter
	ForgotLimiter rate.Limiter
	MFALimiter    rate.Limiter

	MetricsRegistry *prometheus.Registry
}

// New construye el handler raíz. El orden de la cadena importa: request id
// primero (para que todo lo demás loguee con él), recover antes que logging
// (un panic igual deja línea de log), origen al final (responde 403 ya
// logueado).
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.WithRequestID(),
		mw.WithRecover(),
		mw.WithLogging(),
		mw.WithSecurityHeaders(),
		mw.WithOriginPolicy(deps.TrustedOrigins),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	if deps.MetricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(deps.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	signinLimit := mw.WithRateLimit(deps.SigninLimiter, nil)
	forgotLimit := mw.WithRateLimit(deps.ForgotLimiter, nil)
	mfaLimit := mw.WithRateLimit(deps.MFALimiter, nil)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(signinLimit).Post("/signup", deps.Auth.Signup)
			r.With(signinLimit).Post("/signin", deps.Auth.Signin)
			r.Post("/signout", deps.Auth.Signout)
			r.With(deps.SessionAuth).Post("/signout-all", deps.Auth.SignoutAll)

			r.Post("/verify-email", deps.Auth.VerifyEmail)
			r.With(forgotLimit).Post("/resend-verification", deps.Auth.ResendVerification)
			r.With(forgotLimit).Post("/forgot", deps.Auth.Forgot)
			r.With(forgotLimit).Post("/reset", deps.Auth.Reset)

			r.Route("/social", func(r chi.Router) {
				r.Get("/providers", deps.Social.Providers)
				r.Get("/{provider}/start", deps.Social.Start)
				r.Get("/{provider}/callback", deps.Social.Callback)
			})
		})

		r.Route("/mfa", func(r chi.Router) {
			r.With(mfaLimit).Post("/challenge", deps.MFA.Challenge)
			r.Route("/totp", func(r chi.Router) {
				r.Use(deps.SessionAuth)
				r.Post("/enroll", deps.MFA.Enroll)
				r.With(mfaLimit).Post("/confirm", deps.MFA.Confirm)
				r.With(mfaLimit).Post("/disable", deps.MFA.Disable)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.SessionAuth)
			r.Get("/me", deps.Account.Me)
			r.Get("/sessions", deps.Account.Sessions)
		})
	})

	return r
}
