package pg

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/centavo/internal/store/core"
)

const userCols = `id, email, name, email_verified, two_factor_enabled, image, created_at, updated_at`

func scanUser(row pgx.Row) (*core.User, error) {
	var u core.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.EmailVerified, &u.TwoFactorEnabled, &u.Image, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *core.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	_, err := s.pool.Exec(ctx, `
		INSERT INTO app_user (id, email, name, email_verified, two_factor_enabled, image, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, u.ID, u.Email, u.Name, u.EmailVerified, u.TwoFactorEnabled, u.Image, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return core.ErrConflict
	}
	return err
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userCols+` FROM app_user WHERE id = $1`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM app_user WHERE email = LOWER($1) LIMIT 1`, strings.TrimSpace(email)))
}

func (s *Store) SetEmailVerified(ctx context.Context, userID string, verified bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE app_user SET email_verified = $2, updated_at = now() WHERE id = $1`, userID, verified)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) SetTwoFactorEnabled(ctx context.Context, userID string, enabled bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE app_user SET two_factor_enabled = $2, updated_at = now() WHERE id = $1`, userID, enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ====================== auth accounts ======================

const accountCols = `id, user_id, provider_id, account_id, password_hash, access_token, refresh_token, token_expires_at, created_at`

func scanAccount(row pgx.Row) (*core.AuthAccount, error) {
	var a core.AuthAccount
	if err := row.Scan(&a.ID, &a.UserID, &a.ProviderID, &a.AccountID, &a.PasswordHash, &a.AccessToken, &a.RefreshToken, &a.TokenExpiresAt, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) CreateAuthAccount(ctx context.Context, a *core.AuthAccount) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO auth_account (id, user_id, provider_id, account_id, password_hash, access_token, refresh_token, token_expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, a.ID, a.UserID, a.ProviderID, a.AccountID, a.PasswordHash, a.AccessToken, a.RefreshToken, a.TokenExpiresAt, a.CreatedAt)
	if isUniqueViolation(err) {
		return core.ErrConflict
	}
	return err
}

func (s *Store) GetCredentialByEmail(ctx context.Context, email string) (*core.User, *core.AuthAccount, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT u.id, u.email, u.name, u.email_verified, u.two_factor_enabled, u.image, u.created_at, u.updated_at,
		       a.id, a.user_id, a.provider_id, a.account_id, a.password_hash, a.access_token, a.refresh_token, a.token_expires_at, a.created_at
		FROM app_user u
		JOIN auth_account a ON a.user_id = u.id AND a.provider_id = $2
		WHERE u.email = LOWER($1)
		LIMIT 1
	`, strings.TrimSpace(email), core.ProviderCredential)

	var u core.User
	var a core.AuthAccount
	if err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.EmailVerified, &u.TwoFactorEnabled, &u.Image, &u.CreatedAt, &u.UpdatedAt,
		&a.ID, &a.UserID, &a.ProviderID, &a.AccountID, &a.PasswordHash, &a.AccessToken, &a.RefreshToken, &a.TokenExpiresAt, &a.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, core.ErrNotFound
		}
		return nil, nil, err
	}
	return &u, &a, nil
}

func (s *Store) GetAuthAccount(ctx context.Context, userID, providerID string) (*core.AuthAccount, error) {
	return scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountCols+` FROM auth_account WHERE user_id = $1 AND provider_id = $2`, userID, providerID))
}

func (s *Store) GetAuthAccountByProvider(ctx context.Context, providerID, accountID string) (*core.AuthAccount, error) {
	return scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountCols+` FROM auth_account WHERE provider_id = $1 AND account_id = $2`, providerID, accountID))
}

func (s *Store) UpdateProviderTokens(ctx context.Context, accountID string, access, refresh *string, expiresAt *time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE auth_account
		SET access_token = $2,
		    refresh_token = COALESCE($3, refresh_token),
		    token_expires_at = $4
		WHERE id = $1
	`, accountID, access, refresh, expiresAt)
	return err
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, phc string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE auth_account SET password_hash = $2
		WHERE user_id = $1 AND provider_id = $3
	`, userID, phc, core.ProviderCredential)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}
