package document

import (
	"fmt"
	"math"
	"slices"
	"strings"

	errs "github.com/matzehuels/gearlayout/pkg/errors"
)

// Schema is the only document schema this version reads.
const Schema = "gearlayout/1"

// DefaultUnits is assumed when a document omits units.
const DefaultUnits = "mm"

// Constraint types.
const (
	TypeDistance = "distance"
	TypeFixed    = "fixed"
)

// Units lists the accepted length units. Units are carried through to the
// solution and renderers; the solver itself is unit-agnostic.
var Units = []string{"mm", "cm", "m", "in"}

// Document is a layout problem.
type Document struct {
	Schema      string           `json:"schema" yaml:"schema" toml:"schema" bson:"schema"`
	Units       string           `json:"units,omitempty" yaml:"units,omitempty" toml:"units,omitempty" bson:"units,omitempty"`
	Solver      *SolverSettings  `json:"solver,omitempty" yaml:"solver,omitempty" toml:"solver,omitempty" bson:"solver,omitempty"`
	Entities    []EntitySpec     `json:"entities" yaml:"entities" toml:"entities" bson:"entities"`
	Constraints []ConstraintSpec `json:"constraints" yaml:"constraints" toml:"constraints" bson:"constraints"`
}

// SolverSettings override solver options per document. Zero fields keep the
// caller's options.
type SolverSettings struct {
	MaxIterations int     `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty" toml:"max_iterations,omitempty" bson:"max_iterations,omitempty"`
	Tolerance     float64 `json:"tolerance,omitempty" yaml:"tolerance,omitempty" toml:"tolerance,omitempty" bson:"tolerance,omitempty"`
	StepSize      float64 `json:"step_size,omitempty" yaml:"step_size,omitempty" toml:"step_size,omitempty" bson:"step_size,omitempty"`
	MinDistance   float64 `json:"min_distance,omitempty" yaml:"min_distance,omitempty" toml:"min_distance,omitempty" bson:"min_distance,omitempty"`
	Strict        bool    `json:"strict,omitempty" yaml:"strict,omitempty" toml:"strict,omitempty" bson:"strict,omitempty"`
}

// EntitySpec places an entity. At holds two or three coordinates; a missing
// Z is 0.
type EntitySpec struct {
	ID     int       `json:"id" yaml:"id" toml:"id" bson:"id"`
	At     []float64 `json:"at" yaml:"at" toml:"at" bson:"at"`
	Radius float64   `json:"radius,omitempty" yaml:"radius,omitempty" toml:"radius,omitempty" bson:"radius,omitempty"`
	Fixed  bool      `json:"fixed,omitempty" yaml:"fixed,omitempty" toml:"fixed,omitempty" bson:"fixed,omitempty"`
}

// ConstraintSpec is a distance constraint (Between, Distance) or a fixed
// constraint (Entity).
type ConstraintSpec struct {
	ID       int     `json:"id" yaml:"id" toml:"id" bson:"id"`
	Type     string  `json:"type" yaml:"type" toml:"type" bson:"type"`
	Between  []int   `json:"between,omitempty" yaml:"between,omitempty" toml:"between,omitempty" bson:"between,omitempty"`
	Distance float64 `json:"distance,omitempty" yaml:"distance,omitempty" toml:"distance,omitempty" bson:"distance,omitempty"`
	Entity   int     `json:"entity,omitempty" yaml:"entity,omitempty" toml:"entity,omitempty" bson:"entity,omitempty"`
}

// SetDefaults fills optional fields.
func (d *Document) SetDefaults() {
	if d.Units == "" {
		d.Units = DefaultUnits
	}
}

// Validate reports every structural problem in the document as a single
// INVALID_DOCUMENT error. References to unknown entities are not errors;
// see [Document.Warnings].
func (d *Document) Validate() error {
	var issues []string
	add := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if d.Schema != Schema {
		add("schema %q is not supported (want %q)", d.Schema, Schema)
	}
	if d.Units != "" && !slices.Contains(Units, d.Units) {
		add("units %q not one of %s", d.Units, strings.Join(Units, ", "))
	}
	if s := d.Solver; s != nil {
		if s.MaxIterations < 0 {
			add("solver.max_iterations must not be negative")
		}
		if s.Tolerance < 0 || !finite(s.Tolerance) {
			add("solver.tolerance must be a positive number")
		}
		if s.StepSize < 0 || s.StepSize > 1 || !finite(s.StepSize) {
			add("solver.step_size must be in (0, 1]")
		}
		if s.MinDistance < 0 || !finite(s.MinDistance) {
			add("solver.min_distance must be a positive number")
		}
	}

	entities := make(map[int]bool, len(d.Entities))
	for i, e := range d.Entities {
		if entities[e.ID] {
			add("entities[%d]: duplicate id %d", i, e.ID)
		}
		entities[e.ID] = true
		if len(e.At) < 2 || len(e.At) > 3 {
			add("entity %d: at must have 2 or 3 coordinates, got %d", e.ID, len(e.At))
		}
		for _, v := range e.At {
			if !finite(v) {
				add("entity %d: coordinates must be finite", e.ID)
				break
			}
		}
		if e.Radius < 0 || !finite(e.Radius) {
			add("entity %d: radius must be a non-negative number", e.ID)
		}
	}

	constraints := make(map[int]bool, len(d.Constraints))
	for i, c := range d.Constraints {
		if constraints[c.ID] {
			add("constraints[%d]: duplicate id %d", i, c.ID)
		}
		constraints[c.ID] = true
		switch c.Type {
		case TypeDistance:
			if len(c.Between) != 2 {
				add("constraint %d: between must name exactly 2 entities", c.ID)
			}
			if c.Distance < 0 || !finite(c.Distance) {
				add("constraint %d: distance must be a non-negative number", c.ID)
			}
		case TypeFixed:
			if !d.hasEntity(c.Entity) {
				add("constraint %d: fixed entity %d does not exist", c.ID, c.Entity)
			}
		default:
			add("constraint %d: unknown type %q", c.ID, c.Type)
		}
	}

	if len(issues) > 0 {
		return errs.New(errs.ErrCodeInvalidDocument, "%s", strings.Join(issues, "; "))
	}
	return nil
}

// Warnings lists non-fatal problems: distance constraints that name unknown
// entities. Those constraints are skipped when solving.
func (d *Document) Warnings() []string {
	var out []string
	for _, c := range d.Constraints {
		if c.Type != TypeDistance {
			continue
		}
		for _, id := range c.Between {
			if !d.hasEntity(id) {
				out = append(out, fmt.Sprintf("constraint %d references unknown entity %d", c.ID, id))
			}
		}
	}
	return out
}

func (d *Document) hasEntity(id int) bool {
	return slices.ContainsFunc(d.Entities, func(e EntitySpec) bool { return e.ID == id })
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
