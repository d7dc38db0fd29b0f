package pg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/centavo/internal/store/core"
)

func (s *Store) CreateVerificationToken(ctx context.Context, v *core.VerificationToken) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO verification_token (id, user_id, purpose, token_hash, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, v.ID, v.UserID, v.Purpose, v.TokenHash, v.ExpiresAt, v.CreatedAt)
	return err
}

// ConsumeVerificationToken borra el token y lo devuelve en una sola sentencia;
// si no existe o ya expiró no hay fila y mapeamos a ErrNotFound. El DELETE
// condicional garantiza single-use también bajo concurrencia.
func (s *Store) ConsumeVerificationToken(ctx context.Context, purpose, tokenHash string, now time.Time) (*core.VerificationToken, error) {
	row := s.pool.QueryRow(ctx, `
		DELETE FROM verification_token
		WHERE purpose = $1 AND token_hash = $2 AND expires_at > $3
		RETURNING id, user_id, purpose, token_hash, expires_at, created_at
	`, purpose, tokenHash, now)

	var v core.VerificationToken
	if err := row.Scan(&v.ID, &v.UserID, &v.Purpose, &v.TokenHash, &v.ExpiresAt, &v.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (s *Store) DeleteVerificationTokens(ctx context.Context, userID, purpose string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM verification_token WHERE user_id = $1 AND purpose = $2`, userID, purpose)
	return err
}
