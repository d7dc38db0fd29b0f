package core

import (
	"context"
	"time"
)

// Repository es el contrato del credential store. Las implementaciones (pg, memory)
// resuelven unicidad por constraint, no con locks de aplicación: un doble signup
// concurrente termina con el perdedor recibiendo ErrConflict.
type Repository interface {
	// ---- users ----

	// CreateUser asigna ID y timestamps. ErrConflict si el email (case-insensitive) ya existe.
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	SetEmailVerified(ctx context.Context, userID string, verified bool) error
	SetTwoFactorEnabled(ctx context.Context, userID string, enabled bool) error

	// ---- auth accounts ----

	// CreateAuthAccount falla con ErrConflict si ya existe (user_id, provider_id).
	CreateAuthAccount(ctx context.Context, a *AuthAccount) error
	// GetCredentialByEmail devuelve user + cuenta "credential" en un solo viaje.
	GetCredentialByEmail(ctx context.Context, email string) (*User, *AuthAccount, error)
	GetAuthAccount(ctx context.Context, userID, providerID string) (*AuthAccount, error)
	// GetAuthAccountByProvider busca por (provider_id, account_id): el lookup
	// del callback social, donde account_id es el subject del proveedor.
	GetAuthAccountByProvider(ctx context.Context, providerID, accountID string) (*AuthAccount, error)
	// UpdateProviderTokens refresca los tokens OAuth de una cuenta social.
	UpdateProviderTokens(ctx context.Context, accountID string, access, refresh *string, expiresAt *time.Time) error
	UpdatePasswordHash(ctx context.Context, userID, phc string) error

	// ---- sessions ----

	CreateSession(ctx context.Context, s *Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	// TouchSession actualiza expiry + updated_at (renovación rolling, mismo token).
	TouchSession(ctx context.Context, id string, expiresAt, at time.Time) error
	// DeleteSessionByTokenHash es idempotente: borrar una sesión inexistente no es error.
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	DeleteSessionsByUser(ctx context.Context, userID string) (int64, error)
	ListSessionsByUser(ctx context.Context, userID string) ([]Session, error)
	// DeleteExpiredSessions es housekeeping, no correctitud (la expiración se chequea lazy).
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// ---- verification tokens ----

	CreateVerificationToken(ctx context.Context, v *VerificationToken) error
	// ConsumeVerificationToken borra y devuelve el token en una sola operación
	// (single-use); ErrNotFound si no existe o expiró.
	ConsumeVerificationToken(ctx context.Context, purpose, tokenHash string, now time.Time) (*VerificationToken, error)
	DeleteVerificationTokens(ctx context.Context, userID, purpose string) error

	// ---- mfa ----

	// UpsertMFATOTP guarda un secreto nuevo y resetea confirmed_at/last_used_at.
	UpsertMFATOTP(ctx context.Context, userID, secretEnc string) error
	GetMFATOTP(ctx context.Context, userID string) (*MFATOTP, error)
	ConfirmMFATOTP(ctx context.Context, userID string, at time.Time) error
	UpdateMFAUsedAt(ctx context.Context, userID string, at time.Time) error
	// DisableMFATOTP borra secreto y backup codes.
	DisableMFATOTP(ctx context.Context, userID string) error
	InsertBackupCodes(ctx context.Context, userID string, hashes []string) error
	// UseBackupCode es check-and-mark atómico: sólo un intento concurrente puede ganar.
	UseBackupCode(ctx context.Context, userID, hash string, at time.Time) (bool, error)

	Ping(ctx context.Context) error
	Close()
}
