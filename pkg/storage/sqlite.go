package storage

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

	"github.com/matzehuels/gearlayout/pkg/document"
	errs "github.com/matzehuels/gearlayout/pkg/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS layouts (
	id TEXT PRIMARY KEY,
	name TEXT,
	created_at TEXT NOT NULL,
	status TEXT NOT NULL,
	entities INTEGER NOT NULL,
	document TEXT NOT NULL,
	solution TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_layouts_created_at ON layouts(created_at);
`

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore stores records in a single SQLite file. Document and solution
// are kept as JSON columns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errs.New(errs.ErrCodeInvalidPath, "sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	for _, stmt := range strings.Split(sqliteSchema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	if err := prepare(rec); err != nil {
		return err
	}
	doc, err := json.Marshal(rec.Document)
	if err != nil {
		return err
	}
	sol, err := json.Marshal(rec.Solution)
	if err != nil {
		return err
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM layouts WHERE id = ?)", rec.ID).Scan(&exists)
	if err == nil && exists {
		return errs.New(errs.ErrCodeDuplicateID, "layout %s already exists", rec.ID)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO layouts (id, name, created_at, status, entities, document, solution) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.Name, rec.CreatedAt.UTC().Format(timeLayout), rec.Solution.Status,
		len(rec.Solution.Entities), string(doc), string(sol),
	)
	return err
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := errs.ValidateLayoutID(id); err != nil {
		return nil, err
	}

	var (
		rec               Record
		name              sql.NullString
		created, doc, sol string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, created_at, document, solution FROM layouts WHERE id = ?", id,
	).Scan(&rec.ID, &name, &created, &doc, &sol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}

	rec.Name = name.String
	if rec.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("layout %s: created_at: %w", id, err)
	}
	rec.Document = &document.Document{}
	if err := json.Unmarshal([]byte(doc), rec.Document); err != nil {
		return nil, fmt.Errorf("layout %s: document: %w", id, err)
	}
	if err := json.Unmarshal([]byte(sol), &rec.Solution); err != nil {
		return nil, fmt.Errorf("layout %s: solution: %w", id, err)
	}
	return &rec, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, created_at, status, entities FROM layouts ORDER BY created_at DESC, id LIMIT ?",
		listLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sum     Summary
			name    sql.NullString
			created string
		)
		if err := rows.Scan(&sum.ID, &name, &created, &sum.Status, &sum.Entities); err != nil {
			return nil, err
		}
		sum.Name = name.String
		if sum.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("layout %s: created_at: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
