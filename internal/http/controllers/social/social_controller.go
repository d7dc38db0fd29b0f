// Package social contiene los controllers del flujo OAuth con proveedores.
// Son endpoints de navegación (redirects), no JSON: el browser va y vuelve
// del proveedor y termina en el frontend con la cookie puesta.
package social

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/dropDatabas3/centavo/internal/http/errors"
	"github.com/dropDatabas3/centavo/internal/http/helpers"
	"github.com/dropDatabas3/centavo/internal/http/middlewares"
	authsvc "github.com/dropDatabas3/centavo/internal/http/services/auth"
	sessionsvc "github.com/dropDatabas3/centavo/internal/http/services/session"
	socialsvc "github.com/dropDatabas3/centavo/internal/http/services/social"
	"github.com/dropDatabas3/centavo/internal/observability/logger"
)

type Controller struct {
	social   *socialsvc.Service
	auth     *authsvc.Service
	sessions *sessionsvc.Service
	cookies  helpers.CookiePolicy
	// frontendURL es el destino final del browser tras el callback.
	frontendURL string
}

func NewController(social *socialsvc.Service, auth *authsvc.Service, sessions *sessionsvc.Service, cookies helpers.CookiePolicy, frontendURL string) *Controller {
	return &Controller{
		social:      social,
		auth:        auth,
		sessions:    sessions,
		cookies:     cookies,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// Providers maneja GET /v1/auth/social/providers
func (c *Controller) Providers(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string][]string{"providers": c.social.Providers()})
}

// Start maneja GET /v1/auth/social/{provider}/start: redirect al proveedor.
func (c *Controller) Start(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "provider")

	authURL, err := c.social.Start(r.Context(), providerID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback maneja GET /v1/auth/social/{provider}/callback. Siempre termina en
// un redirect al frontend: con cookie de sesión puesta, con challenge_token
// si falta el segundo factor, o con ?error= si algo falló.
func (c *Controller) Callback(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "provider")
	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		// El usuario canceló o el proveedor rechazó.
		logger.From(r.Context()).Info("provider callback error",
			logger.Op("social.callback"),
			logger.Provider(providerID),
			logger.String("provider_error", errCode),
		)
		c.redirectError(w, r, "provider_denied")
		return
	}

	state, code := q.Get("state"), q.Get("code")
	if state == "" || code == "" {
		c.redirectError(w, r, "bad_callback")
		return
	}

	user, err := c.social.Callback(r.Context(), providerID, state, code)
	if err != nil {
		c.redirectError(w, r, httperrors.FromError(err).Code)
		return
	}

	// Mismo trato que el signin por credenciales: con 2FA activo no hay
	// sesión hasta completar el desafío.
	if user.TwoFactorEnabled {
		token, err := c.auth.IssueChallenge(r.Context(), user.ID)
		if err != nil {
			c.redirectError(w, r, "internal")
			return
		}
		http.Redirect(w, r, c.frontendURL+"/signin/mfa?challenge_token="+url.QueryEscape(token), http.StatusFound)
		return
	}

	issued, err := c.sessions.Issue(r.Context(), user.ID, middlewares.ClientIP(r), r.UserAgent(), "social")
	if err != nil {
		c.redirectError(w, r, "internal")
		return
	}
	http.SetCookie(w, c.cookies.BuildSessionCookie(issued.Token, c.sessions.TTL()))
	http.Redirect(w, r, c.frontendURL+"/", http.StatusFound)
}

func (c *Controller) redirectError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, c.frontendURL+"/signin?error="+url.QueryEscape(strings.ToLower(code)), http.StatusFound)
}
