// Package auth define los contratos JSON de signup/signin y flujos de email.
package auth

import (
	"time"

	"github.com/dropDatabas3/centavo/internal/store/core"
)

type SignupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

type ResendVerificationRequest struct {
	Email string `json:"email"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// UserResponse es la vista pública del usuario. Nunca incluye hashes ni
// estado interno de MFA más allá del flag.
type UserResponse struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	EmailVerified    bool      `json:"email_verified"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	Image            *string   `json:"image,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func NewUserResponse(u *core.User) *UserResponse {
	return &UserResponse{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		EmailVerified:    u.EmailVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
		Image:            u.Image,
		CreatedAt:        u.CreatedAt,
	}
}

type SignupResponse struct {
	User *UserResponse `json:"user"`
	// VerifyLink sólo aparece en dev con echo de links activado.
	VerifyLink string `json:"verify_link,omitempty"`
}

// SigninResponse cubre ambas ramas: sesión emitida (cookie en headers, user
// en el body, 200) o segundo factor pendiente (422 con code
// TWO_FACTOR_REQUIRED + challenge_token; el status distingue las ramas sin
// parsear el body).
type SigninResponse struct {
	User           *UserResponse `json:"user,omitempty"`
	Code           string        `json:"code,omitempty"`
	MFARequired    bool          `json:"mfa_required,omitempty"`
	ChallengeToken string        `json:"challenge_token,omitempty"`
}

type ResendVerificationResponse struct {
	Message string `json:"message"`
	// VerifyLink sólo aparece en dev con echo de links activado.
	VerifyLink string `json:"verify_link,omitempty"`
}

type ForgotPasswordResponse struct {
	Message string `json:"message"`
	// ResetLink sólo aparece en dev con echo de links activado.
	ResetLink string `json:"reset_link,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
