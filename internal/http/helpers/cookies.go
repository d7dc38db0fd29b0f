package helpers

import (
	"net/http"
	"strings"
	"time"
)

// CookiePolicy es función pura del entorno: mismos inputs, misma cookie.
// En prod la cookie viaja Secure y con Domain (cookie de dominio); en dev/test
// queda host-only y sin Secure para que funcione en http://localhost.
// HttpOnly y Path=/ siempre.
type CookiePolicy struct {
	Name     string
	Domain   string // sólo se aplica en prod
	SameSite string // "", "lax", "strict", "none"; default Lax
	Secure   bool
}

// NewCookiePolicy deriva la política a partir del entorno.
func NewCookiePolicy(name, domain, sameSite string, isProd bool) CookiePolicy {
	p := CookiePolicy{
		Name:     name,
		SameSite: sameSite,
		Secure:   isProd,
	}
	if isProd {
		p.Domain = domain
	}
	return p
}

// parseSameSite convierte el string de config a http.SameSite.
// Acepta: "", "lax", "strict", "none" (case-insensitive). Default: Lax.
func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		// SameSite=None requiere Secure=true en navegadores modernos.
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// BuildSessionCookie construye la cookie de sesión con flags de seguridad.
// ttl setea Expires y Max-Age acorde.
func (p CookiePolicy) BuildSessionCookie(value string, ttl time.Duration) *http.Cookie {
	now := time.Now().UTC()
	c := &http.Cookie{
		Name:     p.Name,
		Value:    value,
		Path:     "/",
		Expires:  now.Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		Secure:   p.Secure,
		HttpOnly: true,
		SameSite: parseSameSite(p.SameSite),
	}
	if p.Domain != "" {
		c.Domain = p.Domain
	}
	return c
}

// BuildDeletionCookie devuelve una cookie que "borra" la sesión del browser.
// Mismos atributos para que el user-agent la sobreescriba.
func (p CookiePolicy) BuildDeletionCookie() *http.Cookie {
	c := &http.Cookie{
		Name:     p.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		Secure:   p.Secure,
		HttpOnly: true,
		SameSite: parseSameSite(p.SameSite),
	}
	if p.Domain != "" {
		c.Domain = p.Domain
	}
	return c
}
