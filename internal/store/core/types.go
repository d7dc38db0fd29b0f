package core

import "time"

// Proveedores conocidos. "credential" es el único con password hash.
const (
	ProviderCredential = "credential"
	ProviderGoogle     = "google"
	ProviderGitHub     = "github"
)

// Propósitos de VerificationToken.
const (
	PurposeEmailVerify   = "email_verify"
	PurposePasswordReset = "password_reset"
)

type User struct {
	ID               string
	Email            string // siempre normalizado (lowercase, trim)
	Name             string
	EmailVerified    bool
	TwoFactorEnabled bool
	Image            *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AuthAccount es la identidad de un usuario ante un proveedor.
// Máximo una por (user_id, provider_id); el hash sólo existe para "credential".
type AuthAccount struct {
	ID             string
	UserID         string
	ProviderID     string
	AccountID      string // id de la cuenta en el proveedor (sub de OIDC; user id local para credential)
	PasswordHash   *string
	AccessToken    *string
	RefreshToken   *string
	TokenExpiresAt *time.Time
	CreatedAt      time.Time
}

// Session persiste sólo el hash del token; el token crudo viaja en la cookie.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time // avanza con la renovación rolling
	IP        string
	UserAgent string
}

// VerificationToken es de un solo uso: se consume (borra) al validarlo.
type VerificationToken struct {
	ID        string
	UserID    string
	Purpose   string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// MFATOTP guarda el secreto TOTP cifrado. ConfirmedAt == nil => enrolamiento pendiente.
type MFATOTP struct {
	UserID          string
	SecretEncrypted string
	ConfirmedAt     *time.Time
	LastUsedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
