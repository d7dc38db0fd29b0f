package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/centavo/internal/store/core"
)

func (s *Store) UpsertMFATOTP(ctx context.Context, userID string, secretEnc string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_mfa_totp (user_id, secret_encrypted)
		VALUES ($1,$2)
		ON CONFLICT (user_id)
		DO UPDATE SET secret_encrypted = EXCLUDED.secret_encrypted,
					  confirmed_at = NULL,
					  last_used_at = NULL,
					  updated_at = now()
	`, userID, secretEnc)
	return err
}

func (s *Store) GetMFATOTP(ctx context.Context, userID string) (*core.MFATOTP, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, secret_encrypted, confirmed_at, last_used_at, created_at, updated_at
		FROM user_mfa_totp WHERE user_id = $1
	`, userID)
	var m core.MFATOTP
	if err := row.Scan(&m.UserID, &m.SecretEncrypted, &m.ConfirmedAt, &m.LastUsedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *Store) ConfirmMFATOTP(ctx context.Context, userID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE user_mfa_totp SET confirmed_at = $2, updated_at = now() WHERE user_id = $1`, userID, at)
	return err
}

func (s *Store) UpdateMFAUsedAt(ctx context.Context, userID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE user_mfa_totp SET last_used_at = $2, updated_at = now() WHERE user_id = $1`, userID, at)
	return err
}

func (s *Store) DisableMFATOTP(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM user_mfa_totp WHERE user_id = $1`, userID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM mfa_backup_code WHERE user_id = $1`, userID)
	return err
}

// ====================== backup codes ======================

func (s *Store) InsertBackupCodes(ctx context.Context, userID string, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	var b pgx.Batch
	// rotación: un confirm nuevo reemplaza el set anterior completo
	b.Queue(`DELETE FROM mfa_backup_code WHERE user_id = $1`, userID)
	for _, h := range hashes {
		b.Queue(`INSERT INTO mfa_backup_code (user_id, code_hash) VALUES ($1,$2)`, userID, h)
	}
	br := s.pool.SendBatch(ctx, &b)
	for i := 0; i < len(hashes)+1; i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}

// UseBackupCode marca el código como usado sólo si estaba sin usar.
// El UPDATE condicional es el check-and-mark atómico: dos intentos
// concurrentes con el mismo código dejan exactamente un ganador.
func (s *Store) UseBackupCode(ctx context.Context, userID string, hash string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE mfa_backup_code
		SET used_at = $3
		WHERE user_id = $1 AND code_hash = $2 AND used_at IS NULL
	`, userID, hash, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
