package solver

// System is a single solver instance owning its entities and constraints.
//
// The zero value is not usable - use New. A System is not safe for
// concurrent use without external synchronization.
type System struct {
	opts        Options
	entities    *EntityStore
	constraints *ConstraintStore
	closed      bool
}

// New creates an empty system. Unset option fields take their defaults;
// invalid options are reported by the first Solve call.
func New(opts Options) *System {
	opts.SetDefaults()
	return &System{
		opts:        opts,
		entities:    newEntityStore(opts.MaxEntities),
		constraints: newConstraintStore(opts.MaxConstraints),
	}
}

// Options returns the effective options.
func (s *System) Options() Options { return s.opts }

// AddEntity adds a free entity at (x, y, z). Radius is carried as metadata.
func (s *System) AddEntity(id int, x, y, z, radius float64) error {
	if s.closed {
		return ErrClosed
	}
	return s.entities.Add(id, Vec3{x, y, z}, radius)
}

// SetFixed pins or releases an entity.
func (s *System) SetFixed(id int, fixed bool) error {
	if s.closed {
		return ErrClosed
	}
	return s.entities.SetFixed(id, fixed)
}

// AddDistanceConstraint asks entities a and b to sit distance apart.
// Neither entity has to exist yet.
func (s *System) AddDistanceConstraint(id, a, b int, distance float64) error {
	if s.closed {
		return ErrClosed
	}
	return s.constraints.Add(DistanceConstraint{ID: id, EntityA: a, EntityB: b, Distance: distance})
}

// Position returns the current position and metadata of an entity.
func (s *System) Position(id int) (Position, error) {
	if s.closed {
		return Position{}, ErrClosed
	}
	e, ok := s.entities.Get(id)
	if !ok {
		return Position{}, ErrEntityNotFound
	}
	return Position{
		X:      e.Position.X,
		Y:      e.Position.Y,
		Z:      e.Position.Z,
		Radius: e.Radius,
		Fixed:  e.Fixed,
	}, nil
}

// Entities returns copies of all entities in insertion order.
func (s *System) Entities() []Entity {
	if s.closed {
		return nil
	}
	return s.entities.All()
}

// Constraints returns copies of all constraints in insertion order.
func (s *System) Constraints() []DistanceConstraint {
	if s.closed {
		return nil
	}
	return s.constraints.All()
}

// Dangling returns the IDs of constraints that reference a missing entity.
func (s *System) Dangling() []int {
	if s.closed {
		return nil
	}
	var ids []int
	for _, c := range s.constraints.items {
		if s.entities.ref(c.EntityA) == nil || s.entities.ref(c.EntityB) == nil {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Close releases the stores. Every later call returns ErrClosed.
func (s *System) Close() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.entities = nil
	s.constraints = nil
	return nil
}

// Entity returns a copy of the entity with the given ID.
func (s *System) Entity(id int) (Entity, bool) {
	if s.closed {
		return Entity{}, false
	}
	return s.entities.Get(id)
}

// IsFixed reports whether the entity exists and is pinned.
func (s *System) IsFixed(id int) bool {
	return !s.closed && s.entities.IsFixed(id)
}
