package solver

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Solve runs relaxation sweeps until the summed residual of a sweep is below
// the tolerance or MaxIterations sweeps have run. It resumes from the
// current positions, so calling it again continues where the last call left
// off.
//
// A NotConverged result is returned with a nil error. The context is only
// checked between sweeps; on cancellation the partial result is returned
// together with ctx.Err().
func (s *System) Solve(ctx context.Context) (Result, error) {
	if s.closed {
		return Result{}, ErrClosed
	}
	if err := s.opts.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid solver options: %w", err)
	}

	skipped := s.Dangling()
	if len(skipped) > 0 {
		if s.opts.StrictReferences {
			return Result{Skipped: skipped}, fmt.Errorf("%w: constraints %v", ErrDanglingReference, skipped)
		}
		s.opts.Logger.Warn("skipping constraints with unknown entities", "constraints", skipped)
	}

	start := time.Now()
	res := Result{Status: StatusNotConverged, Skipped: skipped}
	for res.Iterations < s.opts.MaxIterations {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
		res.Residual = s.sweep()
		res.Iterations++
		if res.Residual < s.opts.Tolerance {
			res.Status = StatusConverged
			break
		}
	}
	res.Duration = time.Since(start)

	s.opts.Logger.Debug("relaxation finished",
		"status", res.Status,
		"iterations", res.Iterations,
		"residual", res.Residual,
		"duration", res.Duration)
	return res, nil
}

// Sweep performs exactly one pass over all constraints and returns the summed
// absolute residual observed during that pass. It returns NaN on a closed
// system.
func (s *System) Sweep() float64 {
	if s.closed {
		return math.NaN()
	}
	return s.sweep()
}

func (s *System) sweep() float64 {
	var total float64
	for _, c := range s.constraints.items {
		a := s.entities.ref(c.EntityA)
		b := s.entities.ref(c.EntityB)
		if a == nil || b == nil {
			continue
		}

		delta := b.Position.Sub(a.Position)
		current := delta.Len()
		residual := c.Distance - current
		total += math.Abs(residual)

		if math.Abs(residual) <= s.opts.Tolerance || current <= s.opts.MinDistance {
			continue
		}

		dir := delta.Scale(1 / current)
		step := dir.Scale(residual * s.opts.StepSize * 0.5)
		if !a.Fixed {
			a.Position = a.Position.Sub(step)
		}
		if !b.Fixed {
			b.Position = b.Position.Add(step)
		}
	}
	return total
}
