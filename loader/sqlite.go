package loader

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteStoreSchema = `
CREATE TABLE IF NOT EXISTS adapter_declarations (
	name TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`

const defaultSQLiteStoreDB = "adapters.db"

// SQLiteStoreConfig configures the SQLite-backed declaration store.
type SQLiteStoreConfig struct {
	DSN string
}

// SQLiteStore persists adapter declarations in SQLite. It is a Source.
type SQLiteStore struct {
	db  *sql.DB
	dsn string
}

// DefaultSQLitePath returns ~/.petaladapt/adapters.db.
func DefaultSQLitePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("loader: resolve user home: %w", err)
	}
	return filepath.Join(home, homeConfigDir, defaultSQLiteStoreDB), nil
}

// NewSQLiteStore opens (or creates) a declaration store.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("loader: sqlite store dsn is required")
	}
	if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("loader: sqlite store create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("loader: sqlite store open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("loader: sqlite store set WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteStoreSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("loader: sqlite store create schema: %w", err)
	}
	return &SQLiteStore{db: db, dsn: dsn}, nil
}

// Name implements Source.
func (s *SQLiteStore) Name() string {
	return "sqlite:" + s.dsn
}

// Records implements Source. Payloads are returned as raw records so the
// loader validates them like any other source.
func (s *SQLiteStore) Records(ctx context.Context) ([]map[string]any, error) {
	payloads, err := s.payloads(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(payloads))
	for _, payload := range payloads {
		var record map[string]any
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("loader: sqlite decode declaration: %w", err)
		}
		out = append(out, record)
	}
	return out, nil
}

// List returns all declarations ordered by name.
func (s *SQLiteStore) List(ctx context.Context) ([]Descriptor, error) {
	payloads, err := s.payloads(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Descriptor, 0, len(payloads))
	for _, payload := range payloads {
		d, err := decodeDeclaration(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *SQLiteStore) payloads(ctx context.Context) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, errors.New("loader: sqlite store is nil")
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT payload
FROM adapter_declarations
ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("loader: sqlite list declarations: %w", err)
	}
	defer rows.Close()

	var payloads [][]byte
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("loader: sqlite scan declaration: %w", err)
		}
		payloads = append(payloads, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loader: sqlite declaration rows: %w", err)
	}
	return payloads, nil
}

// Get returns a declaration by name.
func (s *SQLiteStore) Get(ctx context.Context, name string) (Descriptor, bool, error) {
	if err := ctx.Err(); err != nil {
		return Descriptor{}, false, err
	}
	if s == nil || s.db == nil {
		return Descriptor{}, false, errors.New("loader: sqlite store is nil")
	}

	row := s.db.QueryRowContext(ctx, `
SELECT payload
FROM adapter_declarations
WHERE name = ?`, name)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Descriptor{}, false, nil
		}
		return Descriptor{}, false, fmt.Errorf("loader: sqlite get declaration: %w", err)
	}
	d, err := decodeDeclaration(payload)
	if err != nil {
		return Descriptor{}, false, err
	}
	return d, true, nil
}

// Upsert inserts or replaces a declaration by name.
func (s *SQLiteStore) Upsert(ctx context.Context, d Descriptor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return errors.New("loader: sqlite store is nil")
	}
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return errors.New("loader: declaration name is required")
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("loader: sqlite encode declaration: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO adapter_declarations (name, payload, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	payload = excluded.payload,
	updated_at = excluded.updated_at`,
		d.Name,
		payload,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("loader: sqlite upsert declaration: %w", err)
	}
	return nil
}

// Delete removes a declaration by name. Deleting a missing name is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return errors.New("loader: sqlite store is nil")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM adapter_declarations WHERE name = ?`, name); err != nil {
		return fmt.Errorf("loader: sqlite delete declaration: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func decodeDeclaration(payload []byte) (Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(payload, &d); err != nil {
		return Descriptor{}, fmt.Errorf("loader: sqlite decode declaration: %w", err)
	}
	return d, nil
}
