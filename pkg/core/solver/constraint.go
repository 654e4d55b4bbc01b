package solver

// DistanceConstraint asks for the Euclidean distance between two entities
// to equal Distance.
type DistanceConstraint struct {
	ID       int
	EntityA  int
	EntityB  int
	Distance float64
}

// ConstraintStore owns the distance constraints of a system in insertion
// order. Constraint IDs live in their own namespace, independent of entity IDs.
//
// The zero value is not usable - use newConstraintStore.
type ConstraintStore struct {
	items []DistanceConstraint
	ids   map[int]struct{}
	limit int // 0 = unbounded
}

func newConstraintStore(limit int) *ConstraintStore {
	return &ConstraintStore{
		ids:   make(map[int]struct{}),
		limit: limit,
	}
}

// Add appends a constraint. The referenced entities need not exist yet.
func (s *ConstraintStore) Add(c DistanceConstraint) error {
	if _, exists := s.ids[c.ID]; exists {
		return ErrDuplicateConstraintID
	}
	if !finite(c.Distance) || c.Distance < 0 {
		return ErrInvalidDistance
	}
	if s.limit > 0 && len(s.items) >= s.limit {
		return ErrCapacityExceeded
	}
	s.ids[c.ID] = struct{}{}
	s.items = append(s.items, c)
	return nil
}

// Len returns the number of constraints.
func (s *ConstraintStore) Len() int { return len(s.items) }

// All returns copies of all constraints in insertion order.
func (s *ConstraintStore) All() []DistanceConstraint {
	out := make([]DistanceConstraint, len(s.items))
	copy(out, s.items)
	return out
}
