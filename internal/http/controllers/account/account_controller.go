// Package account contiene los controllers de la cuenta autenticada:
// perfil propio y listado de sesiones.
package account

import (
	"net/http"

	authdto "github.com/dropDatabas3/centavo/internal/http/dto/auth"
	sessdto "github.com/dropDatabas3/centavo/internal/http/dto/session"
	httperrors "github.com/dropDatabas3/centavo/internal/http/errors"
	"github.com/dropDatabas3/centavo/internal/http/helpers"
	"github.com/dropDatabas3/centavo/internal/http/middlewares"
	sessionsvc "github.com/dropDatabas3/centavo/internal/http/services/session"
)

type Controller struct {
	sessions *sessionsvc.Service
}

func NewController(sessions *sessionsvc.Service) *Controller {
	return &Controller{sessions: sessions}
}

// Me maneja GET /v1/me (requiere sesión). Devuelve el perfil junto con la
// sesión que autenticó el request, para que el SPA sepa cuándo expira.
func (c *Controller) Me(w http.ResponseWriter, r *http.Request) {
	user := middlewares.GetUser(r.Context())
	current := middlewares.GetSession(r.Context())
	if user == nil || current == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, sessdto.MeResponse{
		User:    authdto.NewUserResponse(user),
		Session: sessdto.NewCurrentSession(current),
	})
}

// Sessions maneja GET /v1/sessions (requiere sesión).
func (c *Controller) Sessions(w http.ResponseWriter, r *http.Request) {
	user := middlewares.GetUser(r.Context())
	current := middlewares.GetSession(r.Context())
	if user == nil || current == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	list, err := c.sessions.List(r.Context(), user.ID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	resp := sessdto.ListResponse{Sessions: make([]sessdto.SessionResponse, 0, len(list))}
	for i := range list {
		resp.Sessions = append(resp.Sessions, sessdto.NewSessionResponse(&list[i], current.ID))
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}
