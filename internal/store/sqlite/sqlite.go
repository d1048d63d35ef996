package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrSnakeDoc/sortmark/internal/domain"
)

// timeLayout is the format produced by CURRENT_TIMESTAMP (UTC).
const timeLayout = "2006-01-02 15:04:05"

// Store keeps categories and bookmarks in SQLite.
// It is the only component that talks to the database.
type Store struct {
	db *sql.DB
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens (or creates) the database at path and ensures the schema exists.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create data dir: %v", domain.ErrStorage, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrStorage, path, err)
	}

	// Single writer: every operation borrows the one connection and returns it.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrStorage, p, err)
		}
	}

	s := &Store{db: db}
	if err := s.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", domain.ErrStorage, err)
	}
	return nil
}

// InitSchema creates both tables if they don't exist. Safe to call repeatedly.
func (s *Store) InitSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS category (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS bookmark (
	id TEXT PRIMARY KEY,
	category_id INTEGER NOT NULL REFERENCES category(id),
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	is_deleted INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_bookmark_category ON bookmark(category_id);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: init schema: %v", domain.ErrStorage, err)
	}
	return nil
}

// GetOrCreateCategory returns the id of the category called name,
// inserting it first when missing.
func (s *Store) GetOrCreateCategory(ctx context.Context, name string) (int64, error) {
	return getOrCreateCategory(ctx, s.db, name)
}

func getOrCreateCategory(ctx context.Context, q queryer, name string) (int64, error) {
	// The UNIQUE constraint makes insert-then-select atomic across callers.
	if _, err := q.ExecContext(ctx,
		`INSERT INTO category (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return 0, fmt.Errorf("%w: insert category %q: %v", domain.ErrStorage, name, err)
	}

	var id int64
	if err := q.QueryRowContext(ctx,
		`SELECT id FROM category WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("%w: select category %q: %v", domain.ErrStorage, name, err)
	}
	return id, nil
}

// GetCategory returns a single category by id.
func (s *Store) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	var (
		c       domain.Category
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM category WHERE id = ?`, id).Scan(&c.ID, &c.Name, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("category %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: get category %d: %v", domain.ErrStorage, id, err)
	}
	c.CreatedAt = parseTime(created)
	return &c, nil
}

// ListCategories returns every category ordered by id.
func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM category ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list categories: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var (
			c       domain.Category
			created string
		)
		if err := rows.Scan(&c.ID, &c.Name, &created); err != nil {
			return nil, fmt.Errorf("%w: scan category: %v", domain.ErrStorage, err)
		}
		c.CreatedAt = parseTime(created)
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list categories: %v", domain.ErrStorage, err)
	}
	return categories, nil
}

// EnsureCategories creates every missing name in a single transaction.
func (s *Store) EnsureCategories(ctx context.Context, names []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, name := range names {
			if _, err := getOrCreateCategory(ctx, tx, name); err != nil {
				return err
			}
		}
		return nil
	})
}

// withTx runs fn in a transaction, rolling back on any error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrStorage, err)
	}
	return nil
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}
