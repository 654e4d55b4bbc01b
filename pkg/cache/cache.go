// Package cache stores solved layouts and rendered artifacts.
//
// A solve is deterministic for a given document and solver settings, so the
// pipeline keys solutions by a hash of both and skips the relaxation on a hit.
// Rendered artifacts are keyed by the solution hash plus render options.
//
// # Backends
//
//   - [NullCache]: disables caching
//   - [FileCache]: JSON entries under a directory, used by the CLI
//   - [MemoryCache]: bounded in-process LRU, used by the API and MCP server
//   - [RedisCache]: shared cache for multi-instance API deployments
//
// # Keys
//
// Key construction lives behind [Keyer] so that deployments can namespace
// entries (see [ScopedKeyer]) without touching the pipeline.
package cache

import (
	"context"
	"time"
)

// Default TTLs for cached entries.
const (
	SolveTTL    = 7 * 24 * time.Hour
	ArtifactTTL = 7 * 24 * time.Hour
)

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the cached bytes and true on a hit. A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Keyer builds cache keys.
type Keyer interface {
	// SolveKey identifies the solution of a document under given settings.
	SolveKey(documentHash string, opts SolveKeyOpts) string
	// ArtifactKey identifies a rendered artifact of a solution. Renderers
	// also draw from the document, so both hashes are part of the key.
	ArtifactKey(documentHash, solutionHash string, opts ArtifactKeyOpts) string
}

// SolveKeyOpts are the solver settings that change a solution.
type SolveKeyOpts struct {
	MaxIterations int     `json:"max_iterations"`
	Tolerance     float64 `json:"tolerance"`
	StepSize      float64 `json:"step_size"`
	MinDistance   float64 `json:"min_distance"`
	Strict        bool    `json:"strict,omitempty"`
}

// ArtifactKeyOpts are the render options that change an artifact.
type ArtifactKeyOpts struct {
	Format string `json:"format"`
	View   string `json:"view,omitempty"`
	Labels bool   `json:"labels,omitempty"`
}

// DefaultKeyer produces unprefixed keys of the form "kind:sha256".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// SolveKey implements Keyer.
func (DefaultKeyer) SolveKey(documentHash string, opts SolveKeyOpts) string {
	return hashKey("solve", documentHash, opts)
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(documentHash, solutionHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", documentHash, solutionHash, opts)
}
