// Package pipeline provides the solve → render pipeline shared by the CLI,
// the HTTP API and the MCP server.
//
// By centralizing this logic, every entry point applies the same defaults,
// caching and instrumentation.
//
// # Architecture
//
// The pipeline consists of two stages:
//
//  1. Solve: Validate a layout document and relax it into a Solution
//  2. Render: Draw the Solution in one or more formats (SVG, PNG, PDF, DOT, JSON)
//
// Both stages are cached through [cache.Cache]: solutions by document hash
// and solver settings, artifacts by solution hash and render settings.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, doc, pipeline.Options{
//	    Formats: []string{"svg", "png"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
//
// Run individual stages:
//
//	sol, err := runner.Solve(ctx, doc, opts)
//	artifacts, err := runner.Render(ctx, sol, doc, opts)
//
// Solve many files with bounded concurrency:
//
//	results, err := runner.SolveFiles(ctx, paths, opts)
package pipeline

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gearlayout/pkg/cache"
	"github.com/matzehuels/gearlayout/pkg/core/solver"
	"github.com/matzehuels/gearlayout/pkg/document"
	errs "github.com/matzehuels/gearlayout/pkg/errors"
	"github.com/matzehuels/gearlayout/pkg/render/plan"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI, API and MCP
// =============================================================================

const (
	// DefaultVizType is the default visualization.
	DefaultVizType = VizTypePlan

	// DefaultScale is the PNG scale factor.
	DefaultScale = 2.0

	// DefaultConcurrency bounds SolveFiles.
	DefaultConcurrency = 4
)

// Visualization types.
const (
	VizTypePlan  = "plan"  // Circles at their solved positions
	VizTypeGraph = "graph" // Constraint graph rendered by Graphviz
)

// Format constants for output formats.
const (
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatPDF  = "pdf"
	FormatDOT  = "dot"
	FormatJSON = "json"
)

// ValidFormats lists the supported output formats.
var ValidFormats = []string{FormatSVG, FormatPNG, FormatPDF, FormatDOT, FormatJSON}

// ValidVizTypes lists the supported visualization types.
var ValidVizTypes = []string{VizTypePlan, VizTypeGraph}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Solve options. Zero values take solver defaults; the document's own
	// solver settings override these.
	MaxIterations int     `json:"max_iterations,omitempty"`
	Tolerance     float64 `json:"tolerance,omitempty"`
	StepSize      float64 `json:"step_size,omitempty"`
	MinDistance   float64 `json:"min_distance,omitempty"`
	Strict        bool    `json:"strict,omitempty"`
	Refresh       bool    `json:"refresh,omitempty"` // Bypass cached solutions

	// Store limits, set by the server from configuration.
	MaxEntities    int `json:"-"`
	MaxConstraints int `json:"-"`

	// Render options
	Formats []string `json:"formats,omitempty"`
	VizType string   `json:"viz_type,omitempty"`
	View    string   `json:"view,omitempty"`
	Labels  bool     `json:"labels,omitempty"`
	Scale   float64  `json:"scale,omitempty"`

	// Concurrency bounds SolveFiles.
	Concurrency int `json:"-"`

	Logger *log.Logger `json:"-"`

	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Solution is the solved layout.
	Solution document.Solution

	// DocumentHash is the content hash of the normalized document.
	DocumentHash string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Entities    int
	Constraints int
	SolveTime   time.Duration
	RenderTime  time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	SolveHit  bool
	RenderHit bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	return errs.ValidateFormat(format, ValidFormats...)
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateVizType checks that a visualization type is valid.
func ValidateVizType(vizType string) error {
	if !slices.Contains(ValidVizTypes, vizType) {
		return errs.New(errs.ErrCodeInvalidInput, "invalid viz_type: %q (must be one of: %s)", vizType, strings.Join(ValidVizTypes, ", "))
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults validates solve and render settings and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForSolve(); err != nil {
		return err
	}
	if err := o.ValidateForRender(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForSolve applies solver defaults and rejects unusable settings.
func (o *Options) ValidateForSolve() error {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	opts := o.SolverOptions()
	if err := opts.Validate(); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidInput, err, "invalid solver options")
	}
	return nil
}

// SetRenderDefaults sets default values for rendering.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if o.VizType == "" {
		o.VizType = DefaultVizType
	}
	if o.View == "" {
		o.View = string(plan.ViewXY)
	}
	if o.Scale == 0 {
		o.Scale = DefaultScale
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// ValidateForRender validates and sets defaults for rendering.
func (o *Options) ValidateForRender() error {
	o.SetRenderDefaults()
	if err := ValidateVizType(o.VizType); err != nil {
		return err
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if _, err := plan.ParseView(o.View); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidInput, err, "invalid view")
	}
	if o.Scale < 0 {
		return errs.New(errs.ErrCodeInvalidInput, "scale must be positive, got %g", o.Scale)
	}
	return nil
}

// IsGraph returns true if this is a constraint graph visualization.
func (o *Options) IsGraph() bool {
	return o.VizType == VizTypeGraph
}

// SolverOptions returns the solver configuration with defaults applied.
func (o *Options) SolverOptions() solver.Options {
	opts := solver.Options{
		MaxIterations:    o.MaxIterations,
		Tolerance:        o.Tolerance,
		StepSize:         o.StepSize,
		MinDistance:      o.MinDistance,
		MaxEntities:      o.MaxEntities,
		MaxConstraints:   o.MaxConstraints,
		StrictReferences: o.Strict,
		Logger:           o.Logger,
	}
	opts.SetDefaults()
	return opts
}

// SolveKeyOpts returns cache key options for a document. The document's own
// solver settings are folded in so equivalent requests share an entry.
func (o *Options) SolveKeyOpts(d *document.Document) cache.SolveKeyOpts {
	opts := d.Options(o.SolverOptions())
	return cache.SolveKeyOpts{
		MaxIterations: opts.MaxIterations,
		Tolerance:     opts.Tolerance,
		StepSize:      opts.StepSize,
		MinDistance:   opts.MinDistance,
		Strict:        opts.StrictReferences,
	}
}

// ArtifactKeyOpts returns cache key options for artifact rendering.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Format: format,
		View:   o.VizType + ":" + o.View,
		Labels: o.Labels,
	}
}

func (o *Options) String() string {
	return fmt.Sprintf("viz=%s view=%s formats=%v", o.VizType, o.View, o.Formats)
}
