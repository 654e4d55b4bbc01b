package solver

import (
	"context"
	"errors"
	"math"
	"testing"
)

func mustAdd(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func distance(t *testing.T, s *System, a, b int) float64 {
	t.Helper()
	pa, err := s.Position(a)
	if err != nil {
		t.Fatalf("Position(%d): %v", a, err)
	}
	pb, err := s.Position(b)
	if err != nil {
		t.Fatalf("Position(%d): %v", b, err)
	}
	return pa.Vec().Dist(pb.Vec())
}

func near(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func TestSolveTwoFreeEntities(t *testing.T) {
	s := New(Options{})
	mustAdd(t, s.AddEntity(1, 0, 0, 0, 1))
	mustAdd(t, s.AddEntity(2, 10, 0, 0, 1))
	mustAdd(t, s.AddDistanceConstraint(1, 1, 2, 5))

	res, err := s.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !res.Converged() {
		t.Fatalf("Status = %v, want converged", res.Status)
	}
	if res.Residual >= DefaultTolerance {
		t.Errorf("Residual = %g, want < %g", res.Residual, DefaultTolerance)
	}

	a, _ := s.Position(1)
	b, _ := s.Position(2)
	if !near(a.X, 2.5, 1e-5) || !near(b.X, 7.5, 1e-5) {
		t.Errorf("positions = %v, %v; want ~2.5, ~7.5", a.X, b.X)
	}
	if !near((a.X+b.X)/2, 5, 1e-9) {
		t.Errorf("midpoint = %v, want 5", (a.X+b.X)/2)
	}
	if a.Y != 0 || a.Z != 0 || b.Y != 0 || b.Z != 0 {
		t.Errorf("off-axis drift: %+v %+v", a, b)
	}
}

func TestSolveFixedEndpoint(t *testing.T) {
	s := New(Options{})
	mustAdd(t, s.AddEntity(1, 0, 0, 0, 3))
	mustAdd(t, s.AddEntity(2, 10, 0, 0, 2))
	mustAdd(t, s.SetFixed(1, true))
	mustAdd(t, s.AddDistanceConstraint(1, 1, 2, 5))

	res, err := s.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !res.Converged() {
		t.Fatalf("Status = %v, want converged", res.Status)
	}

	a, _ := s.Position(1)
	if a.X != 0 || a.Y != 0 || a.Z != 0 {
		t.Errorf("fixed entity moved to (%v, %v, %v)", a.X, a.Y, a.Z)
	}
	if !a.Fixed {
		t.Error("Position should report Fixed")
	}
	b, _ := s.Position(2)
	if !near(b.X, 5, 1e-5) {
		t.Errorf("free entity X = %v, want ~5", b.X)
	}
	if b.Radius != 2 {
		t.Errorf("Radius = %v, want 2", b.Radius)
	}
}

func TestSolveContradictoryConstraints(t *testing.T) {
	s := New(Options{})
	mustAdd(t, s.AddEntity(1, 0, 0, 0, 0))
	mustAdd(t, s.AddEntity(2, 10, 0, 0, 0))
	mustAdd(t, s.AddDistanceConstraint(1, 1, 2, 5))
	mustAdd(t, s.AddDistanceConstraint(2, 1, 2, 10))

	res, err := s.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Converged() {
		t.Fatal("contradictory system reported convergence")
	}
	if res.Iterations != DefaultMaxIterations {
		t.Errorf("Iterations = %d, want %d", res.Iterations, DefaultMaxIterations)
	}
	if d := distance(t, s, 1, 2); d < 7 || d > 8 {
		t.Errorf("separation = %v, want near 7.5", d)
	}
	if res.Residual < 4 {
		t.Errorf("Residual = %v, want roughly 5 (two residuals near 2.5)", res.Residual)
	}
}

func TestPositionNotFound(t *testing.T) {
	s := New(Options{})
	if _, err := s.Position(42); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("Position(42) error = %v, want ErrEntityNotFound", err)
	}
}

func TestConstraintBeforeEntities(t *testing.T) {
	s := New(Options{})
	mustAdd(t, s.AddDistanceConstraint(7, 1, 2, 4))
	mustAdd(t, s.AddEntity(1, 0, 0, 0, 0))
	mustAdd(t, s.AddEntity(2, 0, 1, 0, 0))

	res, err := s.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !res.Converged() {
		t.Fatalf("Status = %v, want converged", res.Status)
	}
	if len(res.Skipped) != 0 {
		t.Errorf("Skipped = %v, want none", res.Skipped)
	}
	if d := distance(t, s, 1, 2); !near(d, 4, DefaultTolerance) {
		t.Errorf("separation = %v, want 4", d)
	}
}

func TestConvergenceSoundness(t *testing.T) {
	tests := []struct {
		name  string
		opts  Options
		build func(t *testing.T, s *System)
	}{
		{
			// Equal and opposite corrections cancel each pair's residual in one
			// step, so the triangle settles within a few sweeps.
			name: "free triangle at full step",
			opts: Options{StepSize: 1},
			build: func(t *testing.T, s *System) {
				mustAdd(t, s.AddEntity(1, 0, 0, 0, 2))
				mustAdd(t, s.AddEntity(2, 3, 4, 0, 2))
				mustAdd(t, s.AddEntity(3, -2, 6, 2, 2))
				mustAdd(t, s.AddDistanceConstraint(1, 1, 2, 5))
				mustAdd(t, s.AddDistanceConstraint(2, 2, 3, 5))
				mustAdd(t, s.AddDistanceConstraint(3, 3, 1, 5))
			},
		},
		{
			// Planets 2 and 3 start exactly on their pitch circle; only 4 moves.
			name: "anchored star",
			build: func(t *testing.T, s *System) {
				mustAdd(t, s.AddEntity(1, 0, 0, 0, 15))
				mustAdd(t, s.AddEntity(2, 15, 20, 0, 10))
				mustAdd(t, s.AddEntity(3, -24, 7, 0, 10))
				mustAdd(t, s.AddEntity(4, -9, -21, 0, 10))
				mustAdd(t, s.SetFixed(1, true))
				mustAdd(t, s.AddDistanceConstraint(1, 1, 2, 25))
				mustAdd(t, s.AddDistanceConstraint(2, 1, 3, 25))
				mustAdd(t, s.AddDistanceConstraint(3, 1, 4, 25))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.opts)
			tt.build(t, s)

			res, err := s.Solve(context.Background())
			if err != nil {
				t.Fatalf("Solve: %v", err)
			}
			if !res.Converged() {
				t.Fatalf("Status = %v after %d sweeps (residual %g), want converged", res.Status, res.Iterations, res.Residual)
			}
			for _, c := range s.Constraints() {
				got := distance(t, s, c.EntityA, c.EntityB)
				if math.Abs(got-c.Distance) > s.Options().Tolerance {
					t.Errorf("constraint %d: |%v - %v| exceeds tolerance", c.ID, got, c.Distance)
				}
			}
		})
	}
}

// A chain whose residuals each drop inside the tolerance stops being
// corrected even though their sum is still above it.
func TestChainStopsCorrectingInsideTolerance(t *testing.T) {
	s := New(Options{})
	mustAdd(t, s.AddEntity(1, 0, 0, 0, 10))
	mustAdd(t, s.AddEntity(2, 12, 3, 0, 6))
	mustAdd(t, s.AddEntity(3, 20, -4, 1, 4))
	mustAdd(t, s.AddEntity(4, 26, 2, -1, 3))
	mustAdd(t, s.SetFixed(1, true))
	mustAdd(t, s.AddDistanceConstraint(1, 1, 2, 16))
	mustAdd(t, s.AddDistanceConstraint(2, 2, 3, 10))
	mustAdd(t, s.AddDistanceConstraint(3, 3, 4, 7))

	res, err := s.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Converged() {
		t.Fatalf("Status = %v, want not_converged", res.Status)
	}
	tol := s.Options().Tolerance
	if res.Residual < tol || res.Residual > 3*tol {
		t.Errorf("Residual = %g, want between %g and %g", res.Residual, tol, 3*tol)
	}
	for _, c := range s.Constraints() {
		if got := distance(t, s, c.EntityA, c.EntityB); math.Abs(got-c.Distance) > tol {
			t.Errorf("constraint %d: residual %g exceeds tolerance", c.ID, math.Abs(got-c.Distance))
		}
	}

	before := s.Entities()
	s.Sweep()
	for i, e := range s.Entities() {
		if e.Position != before[i].Position {
			t.Errorf("entity %d moved after the chain settled", e.ID)
		}
	}
}

func TestFixedEntityNeverMoves(t *testing.T) {
	s := New(Options{MaxIterations: 50})
	mustAdd(t, s.AddEntity(1, 1.25, -3.5, 0.75, 0))
	mustAdd(t, s.AddEntity(2, 9, 9, 9, 0))
	mustAdd(t, s.AddEntity(3, -4, 2, 0, 0))
	mustAdd(t, s.SetFixed(1, true))
	mustAdd(t, s.AddDistanceConstraint(1, 1, 2, 3))
	mustAdd(t, s.AddDistanceConstraint(2, 3, 1, 30))
	mustAdd(t, s.AddDistanceConstraint(3, 1, 2, 40)) // contradicts constraint 1

	before, _ := s.Position(1)
	for i := 0; i < 3; i++ {
		if _, err := s.Solve(context.Background()); err != nil {
			t.Fatalf("Solve: %v", err)
		}
	}
	after, _ := s.Position(1)
	if before != after {
		t.Errorf("fixed entity changed: %+v -> %+v", before, after)
	}
}

func TestSolveIdempotentAfterConvergence(t *testing.T) {
	s := New(Options{StepSize: 1})
	mustAdd(t, s.AddEntity(1, 0, 0, 0, 0))
	mustAdd(t, s.AddEntity(2, 3, 4, 0, 0))
	mustAdd(t, s.AddEntity(3, -2, 6, 2, 0))
	mustAdd(t, s.AddDistanceConstraint(1, 1, 2, 8))
	mustAdd(t, s.AddDistanceConstraint(2, 2, 3, 6))

	first, err := s.Solve(context.Background())
	if err != nil || !first.Converged() {
		t.Fatalf("first Solve = %+v, %v; want converged", first, err)
	}
	before := s.Entities()

	second, err := s.Solve(context.Background())
	if err != nil {
		t.Fatalf("second Solve: %v", err)
	}
	if !second.Converged() || second.Iterations != 1 {
		t.Errorf("second Solve = %v after %d sweeps, want converged after 1", second.Status, second.Iterations)
	}
	tol := s.Options().Tolerance
	for i, e := range s.Entities() {
		d := e.Position.Sub(before[i].Position)
		if math.Abs(d.X) >= tol || math.Abs(d.Y) >= tol || math.Abs(d.Z) >= tol {
			t.Errorf("entity %d moved by %+v", e.ID, d)
		}
	}
}

func TestSweepKeepsMidpoint(t *testing.T) {
	s := New(Options{})
	mustAdd(t, s.AddEntity(1, -3, 1, 2, 0))
	mustAdd(t, s.AddEntity(2, 5, 7, -2, 0))
	mustAdd(t, s.AddDistanceConstraint(1, 1, 2, 2))

	mid := func() Vec3 {
		a, _ := s.Position(1)
		b, _ := s.Position(2)
		return a.Vec().Add(b.Vec()).Scale(0.5)
	}
	want := mid()
	for i := 0; i < 25; i++ {
		s.Sweep()
		got := mid()
		if got.Dist(want) > 1e-9 {
			t.Fatalf("sweep %d: midpoint %+v, want %+v", i, got, want)
		}
	}
}

func TestCapacityExceeded(t *testing.T) {
	s := New(Options{MaxEntities: 2, MaxConstraints: 1})
	mustAdd(t, s.AddEntity(1, 0, 0, 0, 0))
	mustAdd(t, s.AddEntity(2, 1, 0, 0, 0))
	if err := s.AddEntity(3, 2, 0, 0, 0); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("AddEntity beyond capacity = %v, want ErrCapacityExceeded", err)
	}
	if len(s.Entities()) != 2 {
		t.Errorf("entity count = %d, want 2", len(s.Entities()))
	}
	if _, err := s.Position(3); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("rejected entity is visible: %v", err)
	}

	mustAdd(t, s.AddDistanceConstraint(1, 1, 2, 1))
	if err := s.AddDistanceConstraint(2, 1, 2, 2); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("AddDistanceConstraint beyond capacity = %v, want ErrCapacityExceeded", err)
	}
	if got := s.Constraints(); len(got) != 1 || got[0].Distance != 1 {
		t.Errorf("constraints = %+v, want only the first", got)
	}
}

func TestMissingReferenceIsSkipped(t *testing.T) {
	s := New(Options{})
	mustAdd(t, s.AddEntity(1, 0, 0, 0, 0))
	mustAdd(t, s.AddEntity(2, 10, 0, 0, 0))
	mustAdd(t, s.AddDistanceConstraint(1, 1, 99, 3))
	mustAdd(t, s.AddDistanceConstraint(2, 1, 2, 5))

	res, err := s.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !res.Converged() {
		t.Errorf("Status = %v, want converged", res.Status)
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != 1 {
		t.Errorf("Skipped = %v, want [1]", res.Skipped)
	}
	if d := distance(t, s, 1, 2); !near(d, 5, DefaultTolerance) {
		t.Errorf("separation = %v, want 5", d)
	}
}

func TestStrictReferences(t *testing.T) {
	s := New(Options{StrictReferences: true})
	mustAdd(t, s.AddEntity(1, 0, 0, 0, 0))
	mustAdd(t, s.AddEntity(2, 10, 0, 0, 0))
	mustAdd(t, s.AddDistanceConstraint(1, 1, 2, 5))
	mustAdd(t, s.AddDistanceConstraint(2, 2, 3, 5))

	res, err := s.Solve(context.Background())
	if !errors.Is(err, ErrDanglingReference) {
		t.Fatalf("Solve error = %v, want ErrDanglingReference", err)
	}
	if res.Iterations != 0 || len(res.Skipped) != 1 || res.Skipped[0] != 2 {
		t.Errorf("Result = %+v, want no sweeps and Skipped [2]", res)
	}
	if p, _ := s.Position(2); p.X != 10 {
		t.Errorf("positions mutated under strict failure: %+v", p)
	}
}

func TestAddValidation(t *testing.T) {
	tests := []struct {
		name string
		run  func(s *System) error
		want error
	}{
		{"duplicate entity", func(s *System) error { return s.AddEntity(1, 5, 5, 5, 0) }, ErrDuplicateEntityID},
		{"non-finite coordinate", func(s *System) error { return s.AddEntity(2, math.NaN(), 0, 0, 0) }, ErrInvalidValue},
		{"infinite radius", func(s *System) error { return s.AddEntity(3, 0, 0, 0, math.Inf(1)) }, ErrInvalidValue},
		{"negative distance", func(s *System) error { return s.AddDistanceConstraint(2, 1, 1, -1) }, ErrInvalidDistance},
		{"NaN distance", func(s *System) error { return s.AddDistanceConstraint(2, 1, 1, math.NaN()) }, ErrInvalidDistance},
		{"duplicate constraint", func(s *System) error { return s.AddDistanceConstraint(1, 1, 1, 2) }, ErrDuplicateConstraintID},
		{"set fixed on unknown", func(s *System) error { return s.SetFixed(8, true) }, ErrEntityNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Options{})
			mustAdd(t, s.AddEntity(1, 0, 0, 0, 0))
			mustAdd(t, s.AddDistanceConstraint(1, 1, 1, 0))
			if err := tt.run(s); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if p, _ := s.Position(1); p.X != 0 {
				t.Errorf("existing entity overwritten: %+v", p)
			}
		})
	}
}

func TestCoincidentEntitiesDoNotProduceNaN(t *testing.T) {
	s := New(Options{MaxIterations: 10})
	mustAdd(t, s.AddEntity(1, 1, 1, 1, 0))
	mustAdd(t, s.AddEntity(2, 1, 1, 1, 0))
	mustAdd(t, s.AddDistanceConstraint(1, 1, 2, 5))

	res, err := s.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Converged() {
		t.Error("coincident pair cannot satisfy a positive distance")
	}
	for _, e := range s.Entities() {
		if !e.Position.Finite() || e.Position != (Vec3{1, 1, 1}) {
			t.Errorf("entity %d at %+v, want untouched (1,1,1)", e.ID, e.Position)
		}
	}
}

func TestSelfConstraint(t *testing.T) {
	s := New(Options{})
	mustAdd(t, s.AddEntity(1, 4, 4, 4, 0))
	mustAdd(t, s.AddDistanceConstraint(1, 1, 1, 0))

	res, err := s.Solve(context.Background())
	if err != nil || !res.Converged() {
		t.Errorf("Solve = %+v, %v; want converged", res, err)
	}
}

func TestSolveEmptySystem(t *testing.T) {
	res, err := New(Options{}).Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !res.Converged() || res.Iterations != 1 || res.Residual != 0 {
		t.Errorf("Result = %+v, want converged after one empty sweep", res)
	}
}

func TestSolveCancelled(t *testing.T) {
	s := New(Options{})
	mustAdd(t, s.AddEntity(1, 0, 0, 0, 0))
	mustAdd(t, s.AddEntity(2, 10, 0, 0, 0))
	mustAdd(t, s.AddDistanceConstraint(1, 1, 2, 5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.Solve(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Solve error = %v, want context.Canceled", err)
	}
	if res.Iterations != 0 || res.Converged() {
		t.Errorf("Result = %+v, want no sweeps", res)
	}
}

func TestInvalidOptions(t *testing.T) {
	s := New(Options{StepSize: 2})
	if _, err := s.Solve(context.Background()); err == nil {
		t.Error("Solve with StepSize 2 should fail")
	}
}

func TestClosedSystem(t *testing.T) {
	s := New(Options{})
	mustAdd(t, s.AddEntity(1, 0, 0, 0, 0))
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	checks := map[string]error{
		"AddEntity":             s.AddEntity(2, 0, 0, 0, 0),
		"AddDistanceConstraint": s.AddDistanceConstraint(1, 1, 2, 1),
		"SetFixed":              s.SetFixed(1, true),
		"Close":                 s.Close(),
	}
	_, checks["Position"] = s.Position(1)
	_, checks["Solve"] = s.Solve(context.Background())

	for name, err := range checks {
		if !errors.Is(err, ErrClosed) {
			t.Errorf("%s after Close = %v, want ErrClosed", name, err)
		}
	}
	if !math.IsNaN(s.Sweep()) {
		t.Error("Sweep after Close should return NaN")
	}
	if s.Entities() != nil || s.Dangling() != nil {
		t.Error("accessors after Close should return nil")
	}
}

func TestStatusString(t *testing.T) {
	if StatusConverged.String() != "converged" || StatusNotConverged.String() != "not_converged" {
		t.Errorf("unexpected status strings: %q %q", StatusConverged, StatusNotConverged)
	}
}
