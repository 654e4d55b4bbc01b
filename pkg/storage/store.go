// Package storage persists solved layouts.
//
// A [Record] pairs the submitted document with its solution under a UUID.
// The CLI saves records with `solve --save` and lists them with `history`;
// the API exposes them under /v1/layouts.
//
// # Backends
//
//   - [MemoryStore]: process-local, used in tests and by `serve` without a database
//   - [SQLiteStore]: a single file, the default for the CLI
//   - [MongoStore]: shared storage for API deployments
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/gearlayout/pkg/document"
	errs "github.com/matzehuels/gearlayout/pkg/errors"
)

// Backend names accepted by Open.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// DefaultListLimit bounds List when limit <= 0.
const DefaultListLimit = 50

// Record is a stored layout.
type Record struct {
	ID        string             `json:"id" bson:"_id"`
	Name      string             `json:"name,omitempty" bson:"name,omitempty"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	Document  *document.Document `json:"document" bson:"document"`
	Solution  document.Solution  `json:"solution" bson:"solution"`
}

// Summary is the listing view of a record.
type Summary struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name,omitempty" bson:"name,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	Status    string    `json:"status" bson:"status"`
	Entities  int       `json:"entities" bson:"entities"`
}

// Store persists records. Implementations are safe for concurrent use.
type Store interface {
	// Save assigns ID and CreatedAt when unset and stores rec.
	Save(ctx context.Context, rec *Record) error
	// Get returns the record or a NOT_FOUND error.
	Get(ctx context.Context, id string) (*Record, error)
	// List returns up to limit summaries, newest first.
	List(ctx context.Context, limit int) ([]Summary, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend       string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
}

// Open creates the configured store. BackendNone returns a nil Store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case BackendMongo:
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, errs.New(errs.ErrCodeInvalidInput, "unknown storage backend %q", cfg.Backend)
	}
}

// NewID returns a fresh record ID.
func NewID() string {
	return uuid.NewString()
}

// prepare validates rec and fills ID, CreatedAt and Solution.ID.
func prepare(rec *Record) error {
	if rec.Document == nil {
		return errs.New(errs.ErrCodeInvalidInput, "record has no document")
	}
	if rec.Name != "" {
		if err := errs.ValidateName(rec.Name); err != nil {
			return err
		}
	}
	if rec.ID == "" {
		rec.ID = NewID()
	} else if err := errs.ValidateLayoutID(rec.ID); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Solution.ID = rec.ID
	return nil
}

func (r *Record) summary() Summary {
	return Summary{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
		Status:    r.Solution.Status,
		Entities:  len(r.Solution.Entities),
	}
}

func notFound(id string) error {
	return errs.New(errs.ErrCodeNotFound, "layout %s not found", id)
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
