package solver

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// Default relaxation parameters.
const (
	DefaultMaxIterations = 1000
	DefaultTolerance     = 1e-6
	DefaultStepSize      = 0.1
	DefaultMinDistance   = 0.001
)

// Options configures a [System]. Zero numeric fields take the defaults above.
type Options struct {
	// MaxIterations caps the number of sweeps per Solve call.
	MaxIterations int
	// Tolerance is the summed-absolute-residual threshold for convergence.
	// It also gates per-constraint corrections.
	Tolerance float64
	// StepSize is the fraction of the residual applied per sweep.
	StepSize float64
	// MinDistance is the separation below which a constraint is not corrected.
	MinDistance float64

	// MaxEntities and MaxConstraints bound the stores; 0 means unbounded.
	MaxEntities    int
	MaxConstraints int

	// StrictReferences makes Solve fail on constraints whose entities are missing
	// instead of skipping them.
	StrictReferences bool

	// Logger receives debug and warning output. Nil discards.
	Logger *log.Logger
}

// SetDefaults fills unset fields with their defaults.
func (o *Options) SetDefaults() {
	if o.MaxIterations == 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Tolerance == 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.StepSize == 0 {
		o.StepSize = DefaultStepSize
	}
	if o.MinDistance == 0 {
		o.MinDistance = DefaultMinDistance
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Validate checks that the parameters describe a usable relaxation.
func (o Options) Validate() error {
	switch {
	case o.MaxIterations < 0:
		return fmt.Errorf("max iterations must be positive, got %d", o.MaxIterations)
	case o.Tolerance < 0 || !finite(o.Tolerance):
		return fmt.Errorf("tolerance must be positive, got %g", o.Tolerance)
	case o.StepSize < 0 || o.StepSize > 1 || !finite(o.StepSize):
		return fmt.Errorf("step size must be in (0, 1], got %g", o.StepSize)
	case o.MinDistance < 0 || !finite(o.MinDistance):
		return fmt.Errorf("min distance must be positive, got %g", o.MinDistance)
	case o.MaxEntities < 0 || o.MaxConstraints < 0:
		return fmt.Errorf("store limits must not be negative")
	}
	return nil
}
