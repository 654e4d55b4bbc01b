package solver

import "errors"

var (
	// ErrDuplicateEntityID is returned by [System.AddEntity] when an entity
	// with the same ID already exists. Entity IDs must be unique so lookups
	// are never ambiguous.
	ErrDuplicateEntityID = errors.New("duplicate entity ID")

	// ErrDuplicateConstraintID is returned by [System.AddDistanceConstraint]
	// when a constraint with the same ID already exists.
	ErrDuplicateConstraintID = errors.New("duplicate constraint ID")

	// ErrEntityNotFound is returned by [System.Position] and [System.SetFixed]
	// when no entity has the requested ID.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrCapacityExceeded is returned when a store configured with a maximum
	// size is full. The store is left unmodified.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInvalidDistance is returned for a negative or non-finite target distance.
	ErrInvalidDistance = errors.New("target distance must be finite and non-negative")

	// ErrInvalidValue is returned for non-finite coordinates or radius.
	ErrInvalidValue = errors.New("coordinates and radius must be finite")

	// ErrDanglingReference is returned by [System.Solve] under
	// [Options.StrictReferences] when a constraint references an entity that
	// does not exist.
	ErrDanglingReference = errors.New("constraint references unknown entity")

	// ErrClosed is returned by every operation on a closed [System].
	ErrClosed = errors.New("solver system is closed")
)
