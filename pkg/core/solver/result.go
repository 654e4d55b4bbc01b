package solver

import "time"

// Status is the terminal outcome of a Solve call.
type Status int

const (
	// StatusNotConverged means the iteration budget ran out before the summed
	// residual fell below the tolerance. Positions hold the best effort.
	StatusNotConverged Status = iota
	// StatusConverged means every constraint residual is within tolerance.
	StatusConverged
)

// String returns "converged" or "not_converged".
func (s Status) String() string {
	if s == StatusConverged {
		return "converged"
	}
	return "not_converged"
}

// Result describes a Solve call.
type Result struct {
	Status     Status
	Iterations int           // Sweeps performed
	Residual   float64       // Summed absolute residual of the last sweep
	Skipped    []int         // IDs of constraints with a missing endpoint
	Duration   time.Duration // Wall time spent sweeping
}

// Converged reports whether Status is StatusConverged.
func (r Result) Converged() bool { return r.Status == StatusConverged }

// Position is the read-back view of an entity after solving.
type Position struct {
	X, Y, Z float64
	Radius  float64
	Fixed   bool
}

// Vec returns the coordinates as a Vec3.
func (p Position) Vec() Vec3 { return Vec3{p.X, p.Y, p.Z} }
