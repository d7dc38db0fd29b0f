// Package auth contiene los controllers de signup/signin y flujos de email.
package auth

import (
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/centavo/internal/http/dto/auth"
	sessdto "github.com/dropDatabas3/centavo/internal/http/dto/session"
	httperrors "github.com/dropDatabas3/centavo/internal/http/errors"
	"github.com/dropDatabas3/centavo/internal/http/helpers"
	"github.com/dropDatabas3/centavo/internal/http/middlewares"
	authsvc "github.com/dropDatabas3/centavo/internal/http/services/auth"
	sessionsvc "github.com/dropDatabas3/centavo/internal/http/services/session"
	"github.com/dropDatabas3/centavo/internal/observability/logger"
)

type Controller struct {
	auth     *authsvc.Service
	sessions *sessionsvc.Service
	cookies  helpers.CookiePolicy
	// AutoSignin emite sesión en el signup, sin esperar verificación de email.
	autoSignin bool
}

func NewController(auth *authsvc.Service, sessions *sessionsvc.Service, cookies helpers.CookiePolicy, autoSignin bool) *Controller {
	return &Controller{auth: auth, sessions: sessions, cookies: cookies, autoSignin: autoSignin}
}

func (c *Controller) issueAndSetCookie(w http.ResponseWriter, r *http.Request, userID, source string) error {
	issued, err := c.sessions.Issue(r.Context(), userID, middlewares.ClientIP(r), r.UserAgent(), source)
	if err != nil {
		return err
	}
	http.SetCookie(w, c.cookies.BuildSessionCookie(issued.Token, c.sessions.TTL()))
	return nil
}

// Signup maneja POST /v1/auth/signup
func (c *Controller) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	res, err := c.auth.Signup(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	if c.autoSignin {
		if err := c.issueAndSetCookie(w, r, res.User.ID, "credential"); err != nil {
			httperrors.WriteError(w, err)
			return
		}
	}

	helpers.WriteJSON(w, http.StatusCreated, dto.SignupResponse{
		User:       dto.NewUserResponse(res.User),
		VerifyLink: res.VerifyLink,
	})
}

// Signin maneja POST /v1/auth/signin
func (c *Controller) Signin(w http.ResponseWriter, r *http.Request) {
	var req dto.SigninRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	res, err := c.auth.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	if res.MFARequired {
		// 422: credenciales válidas pero falta el segundo factor. El cliente
		// sigue por /v1/mfa/challenge con el challenge_token.
		w.Header().Set("Cache-Control", "no-store")
		helpers.WriteJSON(w, http.StatusUnprocessableEntity, dto.SigninResponse{
			Code:           "TWO_FACTOR_REQUIRED",
			MFARequired:    true,
			ChallengeToken: res.ChallengeToken,
		})
		return
	}

	if err := c.issueAndSetCookie(w, r, res.User.ID, "credential"); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.SigninResponse{User: dto.NewUserResponse(res.User)})
}

// Signout maneja POST /v1/auth/signout. Idempotente: sin cookie o con sesión
// ya muerta igual responde 204 y borra la cookie.
func (c *Controller) Signout(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(c.cookies.Name); err == nil && ck.Value != "" {
		if err := c.sessions.Revoke(r.Context(), ck.Value); err != nil {
			logger.From(r.Context()).Warn("signout revoke failed",
				logger.Op("auth.signout"),
				logger.Err(err),
			)
		}
	}
	http.SetCookie(w, c.cookies.BuildDeletionCookie())
	w.WriteHeader(http.StatusNoContent)
}

// SignoutAll maneja POST /v1/auth/signout-all (requiere sesión).
func (c *Controller) SignoutAll(w http.ResponseWriter, r *http.Request) {
	user := middlewares.GetUser(r.Context())
	if user == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	n, err := c.sessions.RevokeAll(r.Context(), user.ID, "signout_all")
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	http.SetCookie(w, c.cookies.BuildDeletionCookie())
	helpers.WriteJSON(w, http.StatusOK, sessdto.SignoutAllResponse{Revoked: n})
}

// VerifyEmail maneja POST /v1/auth/verify-email
func (c *Controller) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyEmailRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if err := c.auth.VerifyEmail(r.Context(), strings.TrimSpace(req.Token)); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "email verificado"})
}

// ResendVerification maneja POST /v1/auth/resend-verification.
// Respuesta idéntica exista o no el email.
func (c *Controller) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req dto.ResendVerificationRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	link, err := c.auth.ResendVerification(r.Context(), req.Email)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusAccepted, dto.ResendVerificationResponse{
		Message:    "si corresponde, va a recibir un mail de verificación",
		VerifyLink: link,
	})
}

// Forgot maneja POST /v1/auth/forgot. Respuesta idéntica exista o no el email.
func (c *Controller) Forgot(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	res, err := c.auth.Forgot(r.Context(), req.Email)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusAccepted, dto.ForgotPasswordResponse{
		Message:   "si el email existe, va a recibir instrucciones",
		ResetLink: res.ResetLink,
	})
}

// Reset maneja POST /v1/auth/reset. Un reset exitoso revoca todas las
// sesiones del usuario: quien tenga la cuenta comprometida echa al intruso.
func (c *Controller) Reset(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	userID, err := c.auth.Reset(r.Context(), strings.TrimSpace(req.Token), req.Password)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if _, err := c.sessions.RevokeAll(r.Context(), userID, "reset"); err != nil {
		logger.From(r.Context()).Warn("post-reset session revoke failed",
			logger.Op("auth.reset"),
			logger.UserID(userID),
			logger.Err(err),
		)
	}
	helpers.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "contraseña actualizada"})
}
