package document

import (
	"cmp"
	"context"
	"slices"

	"github.com/matzehuels/gearlayout/pkg/core/solver"
	errs "github.com/matzehuels/gearlayout/pkg/errors"
)

// Options merges the document's solver settings over base.
func (d *Document) Options(base solver.Options) solver.Options {
	s := d.Solver
	if s == nil {
		return base
	}
	if s.MaxIterations > 0 {
		base.MaxIterations = s.MaxIterations
	}
	if s.Tolerance > 0 {
		base.Tolerance = s.Tolerance
	}
	if s.StepSize > 0 {
		base.StepSize = s.StepSize
	}
	if s.MinDistance > 0 {
		base.MinDistance = s.MinDistance
	}
	if s.Strict {
		base.StrictReferences = true
	}
	return base
}

// Build validates the document and loads it into a new system. Entities are
// added in document order, then fixed flags are applied, then distance
// constraints are added in document order. The caller owns the system and
// must Close it.
func Build(d *Document, opts solver.Options) (*solver.System, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	sys := solver.New(d.Options(opts))
	fail := func(err error) (*solver.System, error) {
		sys.Close()
		return nil, errs.FromSolver(err)
	}

	for _, e := range d.Entities {
		var p [3]float64
		copy(p[:], e.At)
		if err := sys.AddEntity(e.ID, p[0], p[1], p[2], e.Radius); err != nil {
			return fail(err)
		}
		if e.Fixed {
			if err := sys.SetFixed(e.ID, true); err != nil {
				return fail(err)
			}
		}
	}
	for _, c := range d.Constraints {
		if c.Type == TypeFixed {
			if err := sys.SetFixed(c.Entity, true); err != nil {
				return fail(err)
			}
		}
	}
	for _, c := range d.Constraints {
		if c.Type == TypeDistance {
			if err := sys.AddDistanceConstraint(c.ID, c.Between[0], c.Between[1], c.Distance); err != nil {
				return fail(err)
			}
		}
	}
	return sys, nil
}

// Resolve reads solved positions back into a Solution. Entities are sorted by ID.
func Resolve(sys *solver.System, d *Document, res solver.Result) Solution {
	sol := Solution{
		Status: res.Status.String(),
		Units:  d.Units,
		Diagnostics: Diagnostics{
			Iterations: res.Iterations,
			Residual:   res.Residual,
			DOF:        dof(sys),
			TimeMS:     res.Duration.Milliseconds(),
			Skipped:    res.Skipped,
		},
		Warnings: d.Warnings(),
	}
	if sol.Units == "" {
		sol.Units = DefaultUnits
	}

	for _, e := range d.Entities {
		p, err := sys.Position(e.ID)
		if err != nil {
			continue
		}
		at := []float64{p.X, p.Y, p.Z}[:max(len(e.At), 2)]
		sol.Entities = append(sol.Entities, ResolvedEntity{
			ID:     e.ID,
			At:     at,
			Radius: p.Radius,
			Fixed:  p.Fixed,
		})
	}
	slices.SortFunc(sol.Entities, func(a, b ResolvedEntity) int { return cmp.Compare(a.ID, b.ID) })
	return sol
}

// Solve builds, relaxes and resolves a document in one call. A solution
// that did not converge is returned with a nil error; check Converged.
func Solve(ctx context.Context, d *Document, opts solver.Options) (Solution, error) {
	sys, err := Build(d, opts)
	if err != nil {
		return Solution{}, err
	}
	defer sys.Close()

	res, err := sys.Solve(ctx)
	if err != nil {
		return Solution{}, errs.FromSolver(err)
	}
	return Resolve(sys, d, res), nil
}

// dof estimates remaining degrees of freedom: three per free entity minus
// one per distance constraint with both endpoints present, floored at zero.
func dof(sys *solver.System) int {
	n := 0
	for _, e := range sys.Entities() {
		if !e.Fixed {
			n += 3
		}
	}
	n -= len(sys.Constraints()) - len(sys.Dangling())
	return max(n, 0)
}
