// ABOUTME: SQLite-backed pulse cache that survives process restarts.
// ABOUTME: Stores CBOR-encoded pulses in a single table keyed by coded_at.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/2389-research/codestats-ls/internal/models"

	_ "modernc.org/sqlite" // SQLite driver.
)

// DatabaseFile is the name of the cache database inside the cache directory.
const DatabaseFile = "pulses.db"

// PulseSQLiteStore stores undelivered pulses in a SQLite database.
type PulseSQLiteStore struct {
	db   *sql.DB
	path string
}

var _ PulseStore = (*PulseSQLiteStore)(nil)

// NewPulseSQLiteStore opens or creates the pulse cache in dir.
func NewPulseSQLiteStore(dir string) (*PulseSQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache database directory: %w", err)
	}
	path := filepath.Join(dir, DatabaseFile)

	// WAL and a busy timeout let the cache and mcp subcommands share the file with a running server.
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// One connection serializes writers within this process.
	db.SetMaxOpenConns(1)

	store := &PulseSQLiteStore{db: db, path: path}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate cache database: %w", err)
	}
	return store, nil
}

// Path returns the database file path.
func (s *PulseSQLiteStore) Path() string {
	return s.path
}

func (s *PulseSQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS pulses (
		coded_at TEXT PRIMARY KEY,
		body BLOB NOT NULL
	)`)
	return err
}

// withTx runs fn in a transaction, committing if it succeeds and rolling back otherwise.
func (s *PulseSQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// List returns every stored pulse. Rows that cannot be decoded are skipped.
func (s *PulseSQLiteStore) List(ctx context.Context) ([]*models.Pulse, error) {
	var pulses []*models.Pulse
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT body FROM pulses ORDER BY coded_at`)
		if err != nil {
			return fmt.Errorf("failed to query pulses: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var body []byte
			if err := rows.Scan(&body); err != nil {
				return fmt.Errorf("failed to scan pulse: %w", err)
			}
			pulse, err := decodePulse(body)
			if err != nil {
				continue
			}
			pulses = append(pulses, pulse)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return pulses, nil
}

// Save upserts the pulse by CodedAt.
func (s *PulseSQLiteStore) Save(ctx context.Context, pulse *models.Pulse) error {
	if pulse.IsEmpty() {
		return ErrEmptyPulse
	}
	body, err := encodePulse(pulse)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO pulses (coded_at, body) VALUES (?, ?)
			 ON CONFLICT(coded_at) DO UPDATE SET body = excluded.body`,
			pulse.CodedAt, body)
		if err != nil {
			return fmt.Errorf("failed to save pulse %s: %w", pulse.CodedAt, err)
		}
		return nil
	})
}

// Remove deletes the pulse by CodedAt.
func (s *PulseSQLiteStore) Remove(ctx context.Context, pulse *models.Pulse) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pulses WHERE coded_at = ?`, pulse.CodedAt); err != nil {
			return fmt.Errorf("failed to remove pulse %s: %w", pulse.CodedAt, err)
		}
		return nil
	})
}

// Clear deletes every stored pulse.
func (s *PulseSQLiteStore) Clear(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pulses`); err != nil {
			return fmt.Errorf("failed to clear pulses: %w", err)
		}
		return nil
	})
}

// Count returns the number of stored pulses.
func (s *PulseSQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM pulses`).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count pulses: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *PulseSQLiteStore) Close() error {
	return s.db.Close()
}
