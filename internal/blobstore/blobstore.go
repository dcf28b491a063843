// Package blobstore implements the durable key/value side-car (§6): a
// sqlite-backed store satisfying the `get/set/scan_prefix/evict` contract
// the core event-handler uses to scan and rewrite `decision.preimage:`
// entries while preserving TTL and pin state.
package blobstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// TTLUpdate describes how Set should treat an item's expiry.
type TTLUpdate int

const (
	TTLPreserve TTLUpdate = iota
	TTLSet
	TTLClear
)

// Item is one stored blob.
type Item struct {
	Key       string
	Value     []byte
	ExpiresAt *time.Time
	Pinned    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is a sqlite-backed key/value blob store with TTL and pin support.
// Safe for concurrent use (sqlite itself serializes writers).
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	janitorInterval time.Duration
	cancel          context.CancelFunc
	done            chan struct{}
}

// Config configures Open.
type Config struct {
	Path            string // e.g. "$XDG_STATE_HOME/indexd/blobs.db"
	JanitorInterval time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS items (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER,
	pinned     INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Open creates or opens the sqlite database at cfg.Path and ensures its
// schema exists.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = 60 * time.Second
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("blobstore: open %s: %w", cfg.Path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("blobstore: migrate schema: %w", err)
	}

	return &Store{db: db, logger: logger, janitorInterval: cfg.JanitorInterval}, nil
}

// Get returns the item at key, if present and not expired.
func (s *Store) Get(ctx context.Context, key string) (Item, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT key, value, expires_at, pinned, created_at, updated_at FROM items WHERE key = ?`, key)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, fmt.Errorf("blobstore: get %s: %w", key, err)
	}
	if item.ExpiresAt != nil && item.ExpiresAt.Before(time.Now()) {
		return Item{}, false, nil
	}
	return item, true, nil
}

// Set inserts or replaces the item at key, applying ttlUpdate's disposition
// for the row's expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttlUpdate TTLUpdate, ttlSeconds int64, pinned bool) error {
	now := time.Now()

	var expiresAt sql.NullInt64
	switch ttlUpdate {
	case TTLSet:
		expiresAt = sql.NullInt64{Int64: now.Add(time.Duration(ttlSeconds) * time.Second).Unix(), Valid: true}
	case TTLClear:
		expiresAt = sql.NullInt64{}
	case TTLPreserve:
		err := s.db.QueryRowContext(ctx, `SELECT expires_at FROM items WHERE key = ?`, key).Scan(&expiresAt)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("blobstore: preserve ttl for %s: %w", key, err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (key, value, expires_at, pinned, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			pinned = excluded.pinned,
			updated_at = excluded.updated_at
	`, key, value, expiresAt, boolToInt(pinned), now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("blobstore: set %s: %w", key, err)
	}
	return nil
}

// ScanPrefix returns every non-expired item whose key starts with prefix.
func (s *Store) ScanPrefix(ctx context.Context, prefix string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, expires_at, pinned, created_at, updated_at FROM items WHERE key LIKE ? ESCAPE '\' ORDER BY key`,
		escapeLikePrefix(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("blobstore: scan_prefix %s: %w", prefix, err)
	}
	defer rows.Close()

	now := time.Now()
	var out []Item
	for rows.Next() {
		item, err := scanItemRows(rows)
		if err != nil {
			return nil, fmt.Errorf("blobstore: scan_prefix %s: %w", prefix, err)
		}
		if item.ExpiresAt != nil && item.ExpiresAt.Before(now) {
			continue
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// Evict deletes key unconditionally, pinned or not.
func (s *Store) Evict(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE key = ?`, key); err != nil {
		return fmt.Errorf("blobstore: evict %s: %w", key, err)
	}
	return nil
}

// Stats reports pinned/unpinned counts.
type Stats struct {
	Pinned   int64
	Unpinned int64
}

// Stats computes current row counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(pinned),0), COALESCE(SUM(1-pinned),0) FROM items`).Scan(&stats.Pinned, &stats.Unpinned)
	if err != nil {
		return Stats{}, fmt.Errorf("blobstore: stats: %w", err)
	}
	return stats, nil
}

// StartJanitor launches the background sweep of expired, unpinned rows.
func (s *Store) StartJanitor(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepExpired(ctx)
			}
		}
	}()
}

func (s *Store) sweepExpired(ctx context.Context) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE pinned = 0 AND expires_at IS NOT NULL AND expires_at < ?`, time.Now().Unix())
	if err != nil {
		s.logger.Warn("blobstore janitor sweep failed", "error", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Info("blobstore janitor evicted expired entries", "count", n)
	}
}

// Close stops the janitor (if started) and closes the database handle.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	return scanRow(row)
}

func scanItemRows(rows *sql.Rows) (Item, error) {
	return scanRow(rows)
}

func scanRow(row rowScanner) (Item, error) {
	var (
		item      Item
		expiresAt sql.NullInt64
		pinned    int64
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&item.Key, &item.Value, &expiresAt, &pinned, &createdAt, &updatedAt); err != nil {
		return Item{}, err
	}
	if expiresAt.Valid {
		t := time.Unix(expiresAt.Int64, 0)
		item.ExpiresAt = &t
	}
	item.Pinned = pinned != 0
	item.CreatedAt = time.Unix(createdAt, 0)
	item.UpdatedAt = time.Unix(updatedAt, 0)
	return item, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// escapeLikePrefix escapes LIKE metacharacters so a prefix containing '%'
// or '_' is matched literally.
func escapeLikePrefix(prefix string) string {
	out := make([]byte, 0, len(prefix))
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if c == '%' || c == '_' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}
