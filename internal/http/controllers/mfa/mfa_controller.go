// Package mfa contiene los controllers del segundo factor TOTP.
package mfa

import (
	"net/http"
	"strings"

	authdto "github.com/dropDatabas3/centavo/internal/http/dto/auth"
	dto "github.com/dropDatabas3/centavo/internal/http/dto/mfa"
	httperrors "github.com/dropDatabas3/centavo/internal/http/errors"
	"github.com/dropDatabas3/centavo/internal/http/helpers"
	"github.com/dropDatabas3/centavo/internal/http/middlewares"
	authsvc "github.com/dropDatabas3/centavo/internal/http/services/auth"
	mfasvc "github.com/dropDatabas3/centavo/internal/http/services/mfa"
	sessionsvc "github.com/dropDatabas3/centavo/internal/http/services/session"
)

type Controller struct {
	mfa      *mfasvc.Service
	auth     *authsvc.Service
	sessions *sessionsvc.Service
	cookies  helpers.CookiePolicy
}

func NewController(mfa *mfasvc.Service, auth *authsvc.Service, sessions *sessionsvc.Service, cookies helpers.CookiePolicy) *Controller {
	return &Controller{mfa: mfa, auth: auth, sessions: sessions, cookies: cookies}
}

// Enroll maneja POST /v1/mfa/totp/enroll (requiere sesión).
// La respuesta lleva el secreto en claro para el QR: no-store obligatorio.
func (c *Controller) Enroll(w http.ResponseWriter, r *http.Request) {
	user := middlewares.GetUser(r.Context())
	if user == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	enr, err := c.mfa.Enroll(r.Context(), user.ID, user.Email)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	helpers.WriteJSON(w, http.StatusOK, dto.EnrollResponse{
		SecretBase32: enr.SecretBase32,
		OTPAuthURL:   enr.OTPAuthURL,
	})
}

// Confirm maneja POST /v1/mfa/totp/confirm (requiere sesión).
func (c *Controller) Confirm(w http.ResponseWriter, r *http.Request) {
	user := middlewares.GetUser(r.Context())
	if user == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	var req dto.ConfirmRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	codes, err := c.mfa.Confirm(r.Context(), user.ID, strings.TrimSpace(req.Code))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, http.StatusOK, dto.ConfirmResponse{BackupCodes: codes})
}

// Challenge maneja POST /v1/mfa/challenge: completa un signin pendiente de
// segundo factor. No requiere sesión (todavía no la hay). El desafío se gasta
// con el intento: código inválido obliga a empezar el signin de nuevo.
func (c *Controller) Challenge(w http.ResponseWriter, r *http.Request) {
	var req dto.ChallengeRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	userID, err := c.auth.ConsumeChallenge(r.Context(), strings.TrimSpace(req.ChallengeToken))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if err := c.mfa.VerifyCode(r.Context(), userID, req.Code); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	issued, err := c.sessions.Issue(r.Context(), userID, middlewares.ClientIP(r), r.UserAgent(), "mfa")
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	http.SetCookie(w, c.cookies.BuildSessionCookie(issued.Token, c.sessions.TTL()))

	u, err := c.sessions.UserByID(r.Context(), userID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.ChallengeResponse{User: authdto.NewUserResponse(u)})
}

// Disable maneja POST /v1/mfa/totp/disable (requiere sesión + código vigente).
func (c *Controller) Disable(w http.ResponseWriter, r *http.Request) {
	user := middlewares.GetUser(r.Context())
	if user == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	var req dto.DisableRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if err := c.mfa.Disable(r.Context(), user.ID, strings.TrimSpace(req.Code)); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, authdto.MessageResponse{Message: "segundo factor deshabilitado"})
}
