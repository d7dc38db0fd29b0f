package middlewares

import (
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/centavo/internal/http/errors"
	"github.com/dropDatabas3/centavo/internal/observability/logger"
)

// WithOriginPolicy maneja CORS y protege los endpoints de escritura contra
// requests cross-origin de orígenes no confiables.
//
// Reglas:
//   - El matching es por igualdad exacta de origen (esquema+host+puerto),
//     case-insensitive y sin slash final. Nada de wildcards ni sufijos.
//   - Un request SIN header Origin se deja pasar: clientes no-browser (curl,
//     apps móviles, tests) no mandan Origin y el modelo de amenaza acá es CSRF,
//     que siempre viene con Origin.
//   - Un request de escritura (POST/PUT/PATCH/DELETE) con Origin no confiable
//     se rechaza con 403 antes de tocar el handler.
//   - Para orígenes confiables se emiten los headers CORS con credentials,
//     porque la sesión viaja en cookie.
func WithOriginPolicy(trusted []string) Middleware {
	trim := func(s string) string { return strings.TrimRight(strings.TrimSpace(s), "/") }

	alist := make([]string, 0, len(trusted))
	for _, v := range trusted {
		if t := trim(v); t != "" {
			alist = append(alist, t)
		}
	}

	isTrusted := func(origin string) bool {
		for _, a := range alist {
			if strings.EqualFold(origin, a) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := trim(r.Header.Get("Origin"))

			// Vary headers para caches/proxies
			w.Header().Add("Vary", "Origin")
			w.Header().Add("Vary", "Access-Control-Request-Method")
			w.Header().Add("Vary", "Access-Control-Request-Headers")

			if origin != "" && isTrusted(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,HEAD,OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
				h.Set("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After")
				h.Set("Access-Control-Max-Age", "600") // preflight cache 10 min
			}

			// Preflight request
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if origin != "" && !isTrusted(origin) && isWriteMethod(r.Method) {
				logger.From(r.Context()).Warn("origin rejected",
					logger.Op("origin_policy"),
					logger.String("origin", origin),
				)
				httperrors.WriteError(w, httperrors.ErrOriginNotAllowed)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isWriteMethod(m string) bool {
	switch m {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
