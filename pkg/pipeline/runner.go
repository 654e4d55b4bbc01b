package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gearlayout/pkg/cache"
	"github.com/matzehuels/gearlayout/pkg/document"
	"github.com/matzehuels/gearlayout/pkg/observability"
)

// Runner encapsulates pipeline execution with caching.
// The CLI, the API and the MCP server all use it so that caching logic
// lives in one place.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
	TTL    time.Duration // 0 uses cache.SolveTTL and cache.ArtifactTTL
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete solve → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, doc *document.Document, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	result := &Result{
		Artifacts: make(map[string][]byte),
		Stats: Stats{
			Entities:    len(doc.Entities),
			Constraints: len(doc.Constraints),
		},
	}

	// Stage 1: Solve
	solveStart := time.Now()
	sol, solveHit, err := r.SolveWithCacheInfo(ctx, doc, opts)
	if err != nil {
		return nil, err
	}
	result.Solution = sol
	result.Stats.SolveTime = time.Since(solveStart)
	result.CacheInfo.SolveHit = solveHit
	result.DocumentHash, _ = cache.HashJSON(doc)

	r.Logger.Info("solved layout",
		"status", sol.Status,
		"iterations", sol.Diagnostics.Iterations,
		"residual", sol.Diagnostics.Residual,
		"cached", solveHit,
		"duration", result.Stats.SolveTime)

	// Stage 2: Render
	renderStart := time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, &sol, doc, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// SolveWithCacheInfo solves a document with caching and returns cache hit info.
// The document is normalized with SetDefaults before hashing.
func (r *Runner) SolveWithCacheInfo(ctx context.Context, doc *document.Document, opts Options) (document.Solution, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForSolve(); err != nil {
		return document.Solution{}, false, err
	}
	doc.SetDefaults()

	docHash, err := cache.HashJSON(doc)
	if err != nil {
		return document.Solution{}, false, fmt.Errorf("hash document: %w", err)
	}
	cacheKey := r.Keyer.SolveKey(docHash, opts.SolveKeyOpts(doc))

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var sol document.Solution
			if err := json.Unmarshal(data, &sol); err == nil {
				observability.Cache().OnCacheHit(ctx, "solve")
				return sol, true, nil
			}
			// If deserialization fails, fall through to recompute
		}
		observability.Cache().OnCacheMiss(ctx, "solve")
	}

	hooks := observability.Solver()
	hooks.OnSolveStart(ctx, len(doc.Entities), len(doc.Constraints))
	start := time.Now()
	sol, err := document.Solve(ctx, doc, opts.SolverOptions())
	hooks.OnSolveComplete(ctx, sol.Status, sol.Diagnostics.Iterations, sol.Diagnostics.Residual, time.Since(start), err)
	if err != nil {
		return document.Solution{}, false, err
	}

	if data, err := json.Marshal(sol); err == nil {
		if err := r.Cache.Set(ctx, cacheKey, data, r.ttl(cache.SolveTTL)); err == nil {
			observability.Cache().OnCacheSet(ctx, "solve", len(data))
		}
	}

	return sol, false, nil
}

// Solve is a convenience wrapper that calls SolveWithCacheInfo and discards the cache hit info.
func (r *Runner) Solve(ctx context.Context, doc *document.Document, opts Options) (document.Solution, error) {
	sol, _, err := r.SolveWithCacheInfo(ctx, doc, opts)
	return sol, err
}

// RenderWithCacheInfo generates artifacts with caching and returns cache hit info.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, sol *document.Solution, doc *document.Document, opts Options) (map[string][]byte, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForRender(); err != nil {
		return nil, false, err
	}

	// The solution ID is assigned on save and must not split cache entries.
	keyed := *sol
	keyed.ID = ""
	solHash, err := cache.HashJSON(keyed)
	if err != nil {
		return nil, false, fmt.Errorf("hash solution: %w", err)
	}
	// Constraints and radii are drawn from the document. Hash a normalized
	// copy so callers that skipped SetDefaults share entries.
	var keyedDoc *document.Document
	if doc != nil {
		d := *doc
		d.SetDefaults()
		keyedDoc = &d
	}
	docHash, err := cache.HashJSON(keyedDoc)
	if err != nil {
		return nil, false, fmt.Errorf("hash document: %w", err)
	}

	// Try to get all formats from cache
	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		cacheKey := r.Keyer.ArtifactKey(docHash, solHash, opts.ArtifactKeyOpts(format))
		data, hit, err := r.Cache.Get(ctx, cacheKey)
		if err != nil || !hit {
			observability.Cache().OnCacheMiss(ctx, "artifact")
			break
		}
		artifacts[format] = data
	}
	if len(artifacts) == len(opts.Formats) {
		observability.Cache().OnCacheHit(ctx, "artifact")
		return artifacts, true, nil // All artifacts from cache
	}

	rendered, err := RenderSolution(ctx, sol, doc, opts)
	if err != nil {
		return nil, false, err
	}

	for format, data := range rendered {
		cacheKey := r.Keyer.ArtifactKey(docHash, solHash, opts.ArtifactKeyOpts(format))
		if err := r.Cache.Set(ctx, cacheKey, data, r.ttl(cache.ArtifactTTL)); err == nil {
			observability.Cache().OnCacheSet(ctx, "artifact", len(data))
		}
	}

	return rendered, false, nil
}

// Render is a convenience wrapper that calls RenderWithCacheInfo and discards the cache hit info.
func (r *Runner) Render(ctx context.Context, sol *document.Solution, doc *document.Document, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, sol, doc, opts)
	return artifacts, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func (r *Runner) ttl(def time.Duration) time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return def
}
