// Package solver implements the distance-constraint relaxation kernel that
// places circle centers at prescribed separations.
//
// # Overview
//
// A [System] owns two stores: entities (positioned points carrying an
// optional display radius and a fixed flag) and distance constraints between
// entity pairs. [System.Solve] runs Gauss–Seidel style sweeps over the
// constraints, nudging both endpoints of every unsatisfied constraint along
// the line that joins them, until the summed absolute residual drops below
// the tolerance or the iteration budget is spent.
//
//	sys := solver.New(solver.Options{})
//	defer sys.Close()
//
//	_ = sys.AddEntity(1, 0, 0, 0, 12)
//	_ = sys.AddEntity(2, 10, 0, 0, 8)
//	_ = sys.SetFixed(1, true)
//	_ = sys.AddDistanceConstraint(1, 1, 2, 20)
//
//	res, err := sys.Solve(ctx)
//	if err != nil { ... }
//	if !res.Converged() { ... } // positions are still the best effort
//	p, _ := sys.Position(2)
//
// # Sweeps
//
// One sweep visits every constraint in insertion order. Corrections are
// applied in place, so a later constraint in the same sweep already observes
// the positions produced by earlier ones. Each correction is
// error * StepSize * 0.5 per free endpoint; a fixed endpoint simply drops its
// half. Separations at or below MinDistance are never corrected because their
// direction is undefined.
//
// # Outcomes
//
// [StatusNotConverged] is an outcome, not an error: contradictory or
// over-tight systems settle at a compromise and report it. Callers must
// inspect [Result.Status]; the positions left behind are usable either way.
//
// A constraint whose own error is within Tolerance is not corrected, but
// convergence is judged on the summed error. Several coupled constraints can
// each settle just inside Tolerance while their sum stays above it; such a
// system reports StatusNotConverged at any iteration budget. A StepSize of 1
// usually avoids this for free chains.
//
// # References
//
// Constraints may be added before the entities they reference. At solve time
// a constraint with a missing endpoint is skipped and listed in
// [Result.Skipped]; with [Options.StrictReferences] Solve refuses to run
// instead and returns [ErrDanglingReference].
//
// # Concurrency
//
// A System is not safe for concurrent use. Solve runs to completion on the
// calling goroutine, checking its context only between sweeps.
package solver
