package pg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/centavo/internal/store/core"
)

const sessionCols = `id, user_id, token_hash, expires_at, created_at, updated_at, ip, user_agent`

func (s *Store) CreateSession(ctx context.Context, sess *core.Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = sess.CreatedAt
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO session (id, user_id, token_hash, expires_at, created_at, updated_at, ip, user_agent)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, sess.ID, sess.UserID, sess.TokenHash, sess.ExpiresAt, sess.CreatedAt, sess.UpdatedAt, sess.IP, sess.UserAgent)
	return err
}

func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*core.Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionCols+` FROM session WHERE token_hash = $1`, tokenHash)
	var se core.Session
	if err := row.Scan(&se.ID, &se.UserID, &se.TokenHash, &se.ExpiresAt, &se.CreatedAt, &se.UpdatedAt, &se.IP, &se.UserAgent); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &se, nil
}

func (s *Store) TouchSession(ctx context.Context, id string, expiresAt, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE session SET expires_at = $2, updated_at = $3 WHERE id = $1`, id, expiresAt, at)
	return err
}

func (s *Store) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	// idempotente: 0 filas afectadas no es error
	_, err := s.pool.Exec(ctx, `DELETE FROM session WHERE token_hash = $1`, tokenHash)
	return err
}

func (s *Store) DeleteSessionsByUser(ctx context.Context, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM session WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ListSessionsByUser(ctx context.Context, userID string) ([]core.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionCols+` FROM session WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Session
	for rows.Next() {
		var se core.Session
		if err := rows.Scan(&se.ID, &se.UserID, &se.TokenHash, &se.ExpiresAt, &se.CreatedAt, &se.UpdatedAt, &se.IP, &se.UserAgent); err != nil {
			return nil, err
		}
		out = append(out, se)
	}
	return out, rows.Err()
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM session WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
