// Package sqlite persists remote model metadata between runs so capability
// resolution keeps working when the metadata backend is unreachable.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/flemzord/ctxpack/internal/capability"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Interface guard.
var _ capability.CatalogCache = (*Store)(nil)

// encMode keeps timestamps at full precision.
var encMode, _ = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()

// Store is a capability.MetadataCache backed by SQLite. Entries are stored
// as CBOR. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog database described by cfg.
//
// The database uses a single connection (SQLite serialises writes) and the
// schema is migrated automatically.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(1)

	if cfg.walEnabled() && cfg.Path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached metadata for model, or (nil, nil) on a miss.
func (s *Store) Get(ctx context.Context, model string) (*capability.ModelMetadata, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM models WHERE id = ?", model).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s: %w", model, err)
	}

	var md capability.ModelMetadata
	if err := cbor.Unmarshal(payload, &md); err != nil {
		return nil, fmt.Errorf("sqlite: decode %s: %w", model, err)
	}
	return &md, nil
}

// Put stores md, replacing any previous entry for the same model.
func (s *Store) Put(ctx context.Context, md capability.ModelMetadata) error {
	return s.PutAll(ctx, []capability.ModelMetadata{md})
}

// PutAll stores every entry in one transaction.
func (s *Store) PutAll(ctx context.Context, models []capability.ModelMetadata) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO models (id, payload, fetched_at) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, md := range models {
		if md.ID == "" {
			return errors.New("sqlite: model metadata without id")
		}
		if md.FetchedAt.IsZero() {
			md.FetchedAt = time.Now().UTC()
		}
		payload, err := encMode.Marshal(md)
		if err != nil {
			return fmt.Errorf("sqlite: encode %s: %w", md.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, md.ID, payload, md.FetchedAt.UnixNano()); err != nil {
			return fmt.Errorf("sqlite: put %s: %w", md.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// Len returns the number of cached models.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM models").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return n, nil
}

// Prune deletes entries fetched before cutoff and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM models WHERE fetched_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune: %w", err)
	}
	return res.RowsAffected()
}
