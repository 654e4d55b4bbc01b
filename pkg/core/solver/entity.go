package solver

// Entity is a positioned point, typically the center of a circle.
type Entity struct {
	ID       int     // Caller-assigned identifier, unique per system
	Position Vec3    // Current position, rewritten by Solve unless Fixed
	Radius   float64 // Display metadata; never read by the solver
	Fixed    bool    // When true, Solve never mutates Position
}

// EntityStore owns the entities of a system in insertion order.
//
// The zero value is not usable - use newEntityStore.
type EntityStore struct {
	items []Entity
	index map[int]int // entity ID -> position in items
	limit int         // 0 = unbounded
}

func newEntityStore(limit int) *EntityStore {
	return &EntityStore{
		index: make(map[int]int),
		limit: limit,
	}
}

// Add appends a free entity. It returns ErrDuplicateEntityID,
// ErrInvalidValue or ErrCapacityExceeded without modifying the store.
func (s *EntityStore) Add(id int, pos Vec3, radius float64) error {
	if _, exists := s.index[id]; exists {
		return ErrDuplicateEntityID
	}
	if !pos.Finite() || !finite(radius) {
		return ErrInvalidValue
	}
	if s.limit > 0 && len(s.items) >= s.limit {
		return ErrCapacityExceeded
	}
	s.index[id] = len(s.items)
	s.items = append(s.items, Entity{ID: id, Position: pos, Radius: radius})
	return nil
}

// Get returns a copy of the entity with the given ID.
func (s *EntityStore) Get(id int) (Entity, bool) {
	i, ok := s.index[id]
	if !ok {
		return Entity{}, false
	}
	return s.items[i], true
}

// SetFixed marks the entity as fixed or free.
func (s *EntityStore) SetFixed(id int, fixed bool) error {
	i, ok := s.index[id]
	if !ok {
		return ErrEntityNotFound
	}
	s.items[i].Fixed = fixed
	return nil
}

// IsFixed reports whether the entity exists and is excluded from correction.
func (s *EntityStore) IsFixed(id int) bool {
	i, ok := s.index[id]
	return ok && s.items[i].Fixed
}

// Len returns the number of entities.
func (s *EntityStore) Len() int { return len(s.items) }

// All returns copies of all entities in insertion order.
func (s *EntityStore) All() []Entity {
	out := make([]Entity, len(s.items))
	copy(out, s.items)
	return out
}

// ref returns a pointer for in-place updates during a sweep.
// The pointer must not outlive the sweep.
func (s *EntityStore) ref(id int) *Entity {
	i, ok := s.index[id]
	if !ok {
		return nil
	}
	return &s.items[i]
}
