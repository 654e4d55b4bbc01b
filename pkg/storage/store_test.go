package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/gearlayout/pkg/document"
	errs "github.com/matzehuels/gearlayout/pkg/errors"
)

func testRecord(name string) *Record {
	return &Record{
		Name: name,
		Document: &document.Document{
			Schema: document.Schema,
			Units:  "mm",
			Entities: []document.EntitySpec{
				{ID: 1, At: []float64{0, 0}, Radius: 10, Fixed: true},
				{ID: 2, At: []float64{32, 0}, Radius: 20},
			},
			Constraints: []document.ConstraintSpec{
				{ID: 1, Type: document.TypeDistance, Between: []int{1, 2}, Distance: 32},
			},
		},
		Solution: document.Solution{
			Status: "converged",
			Units:  "mm",
			Diagnostics: document.Diagnostics{
				Iterations: 1,
				DOF:        2,
			},
			Entities: []document.ResolvedEntity{
				{ID: 1, At: []float64{0, 0}, Radius: 10, Fixed: true},
				{ID: 2, At: []float64{32, 0}, Radius: 20},
			},
		},
	}
}

// exerciseStore runs the shared Store contract against a backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	rec := testRecord("train")
	require.NoError(t, s.Save(ctx, rec))
	require.NoError(t, errs.ValidateLayoutID(rec.ID))
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, rec.ID, rec.Solution.ID)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "train", got.Name)
	assert.Equal(t, rec.Document.Entities, got.Document.Entities)
	assert.Equal(t, rec.Solution.Entities, got.Solution.Entities)
	assert.Equal(t, "converged", got.Solution.Status)
	assert.WithinDuration(t, rec.CreatedAt, got.CreatedAt, time.Millisecond)

	// Duplicate IDs are rejected.
	dup := testRecord("again")
	dup.ID = rec.ID
	err = s.Save(ctx, dup)
	assert.Equal(t, errs.ErrCodeDuplicateID, errs.GetCode(err))

	older := testRecord("older")
	older.CreatedAt = rec.CreatedAt.Add(-time.Hour)
	require.NoError(t, s.Save(ctx, older))

	list, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, rec.ID, list[0].ID, "newest first")
	assert.Equal(t, older.ID, list[1].ID)
	assert.Equal(t, 2, list[0].Entities)
	assert.Equal(t, "converged", list[0].Status)

	list, err = s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = s.Get(ctx, NewID())
	assert.Equal(t, errs.ErrCodeNotFound, errs.GetCode(err))

	_, err = s.Get(ctx, "../etc/passwd")
	assert.Equal(t, errs.ErrCodeInvalidInput, errs.GetCode(err))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "layouts.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layouts.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	rec := testRecord("persisted")
	require.NoError(t, s.Save(ctx, rec))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Name)
}

func TestSQLiteStoreEmptyPath(t *testing.T) {
	_, err := NewSQLiteStore("")
	assert.Equal(t, errs.ErrCodeInvalidPath, errs.GetCode(err))
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("GEARLAYOUT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("GEARLAYOUT_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	db := "gearlayout_test_" + NewID()[:8]

	s, err := NewMongoStore(ctx, uri, db)
	require.NoError(t, err)
	defer func() {
		_ = s.client.Database(db).Drop(ctx)
		s.Close()
	}()

	exerciseStore(t, s)
}

func TestSaveValidation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	tests := []struct {
		name string
		rec  *Record
	}{
		{"no document", &Record{Name: "x"}},
		{"bad name", testRecord("a/b")},
		{"bad id", func() *Record { r := testRecord("ok"); r.ID = "not-a-uuid"; return r }()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Save(ctx, tt.rec)
			assert.Equal(t, errs.ErrCodeInvalidInput, errs.GetCode(err))
		})
	}

	// Unnamed records are allowed.
	assert.NoError(t, s.Save(ctx, testRecord("")))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Backend: BackendNone})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, Config{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Config{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	s.Close()

	_, err = Open(ctx, Config{Backend: "postgres"})
	assert.Equal(t, errs.ErrCodeInvalidInput, errs.GetCode(err))
}
