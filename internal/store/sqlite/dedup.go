package sqlite

import (
	"context"
	"time"

	"github.com/tartampluch/birthday-sync/internal/port"
)

var _ port.DedupStore = (*DedupDB)(nil)

// DedupDB is a Dedup Store shared by every process using the same database.
type DedupDB struct{ db *DB }

// Claim inserts key, or takes over an expired one, in a single statement.
// The conflict branch only writes when the previous claim expired, so at
// most one caller sees a changed row.
func (s *DedupDB) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := s.db.now()
	res, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO dedup_keys (key, expires_at) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET expires_at = excluded.expires_at
		 WHERE dedup_keys.expires_at <= ?`,
		key, millis(now.Add(ttl)), millis(now),
	)
	if err != nil {
		return false, queryErr("dedup.claim", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, queryErr("dedup.claim", err)
	}
	return n == 1, nil
}

func (s *DedupDB) Exists(ctx context.Context, key string) (bool, error) {
	var n int
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dedup_keys WHERE key = ? AND expires_at > ?`,
		key, millis(s.db.now()),
	).Scan(&n)
	if err != nil {
		return false, queryErr("dedup.exists", err)
	}
	return n > 0, nil
}

// Purge removes expired keys and returns how many were deleted.
func (s *DedupDB) Purge(ctx context.Context) (int, error) {
	res, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM dedup_keys WHERE expires_at <= ?`, millis(s.db.now()))
	if err != nil {
		return 0, queryErr("dedup.purge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, queryErr("dedup.purge", err)
	}
	return int(n), nil
}
