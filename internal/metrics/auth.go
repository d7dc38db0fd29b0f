package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SigninAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "centavo",
		Subsystem: "auth",
		Name:      "signin_attempts_total",
		Help:      "Intentos de signin por resultado (ok, invalid, mfa_required).",
	}, []string{"result"})

	SignupsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "centavo",
		Subsystem: "auth",
		Name:      "signups_total",
		Help:      "Altas de usuario por credenciales.",
	})

	SessionsIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "centavo",
		Subsystem: "session",
		Name:      "issued_total",
		Help:      "Sesiones emitidas por origen (credential, social, mfa).",
	}, []string{"source"})

	SessionsRenewed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "centavo",
		Subsystem: "session",
		Name:      "renewed_total",
		Help:      "Renovaciones rolling de sesión.",
	})

	SessionsRevoked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "centavo",
		Subsystem: "session",
		Name:      "revoked_total",
		Help:      "Sesiones revocadas por motivo (signout, signout_all, reset).",
	}, []string{"reason"})

	MFAVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "centavo",
		Subsystem: "mfa",
		Name:      "verifications_total",
		Help:      "Verificaciones TOTP/backup por resultado.",
	}, []string{"method", "result"})

	SocialCallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "centavo",
		Subsystem: "oauth",
		Name:      "callbacks_total",
		Help:      "Callbacks OAuth por proveedor y resultado.",
	}, []string{"provider", "result"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "centavo",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latencia de requests HTTP.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Register registra todas las métricas del dominio auth. Tolera doble registro
// para que los tests puedan llamar varias veces.
func Register(reg prometheus.Registerer) {
	collectors := []prometheus.Collector{
		SigninAttempts,
		SignupsTotal,
		SessionsIssued,
		SessionsRenewed,
		SessionsRevoked,
		MFAVerifications,
		SocialCallbacks,
		HTTPDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}
