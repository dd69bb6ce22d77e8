package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RevokeToken adds jti to the revocation list. Revoking twice is a no-op.
func (s *Store) RevokeToken(ctx context.Context, jti string, userID int64, expiresAt time.Time) error {
	_, err := s.q.ExecContext(ctx,
		"INSERT OR IGNORE INTO revoked_tokens (jti, user_id, expires_at, revoked_at) VALUES (?, ?, ?, ?)",
		jti, userID, toMillis(expiresAt), toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *Store) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var found int
	err := s.q.QueryRowContext(ctx, "SELECT 1 FROM revoked_tokens WHERE jti = ?", jti).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query revoked token: %w", err)
	}
	return true, nil
}

// PruneRevokedTokens drops entries whose token has expired anyway.
func (s *Store) PruneRevokedTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx, "DELETE FROM revoked_tokens WHERE expires_at < ?", toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("prune revoked tokens: %w", err)
	}
	return res.RowsAffected()
}
