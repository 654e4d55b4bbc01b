package document

import (
	"sort"

	"github.com/matzehuels/gearlayout/pkg/core/solver"
)

// Solution is the outcome of solving a document.
type Solution struct {
	ID          string           `json:"id,omitempty" yaml:"id,omitempty" toml:"id,omitempty" bson:"id,omitempty"`
	Status      string           `json:"status" yaml:"status" toml:"status" bson:"status"`
	Units       string           `json:"units" yaml:"units" toml:"units" bson:"units"`
	Diagnostics Diagnostics      `json:"diagnostics" yaml:"diagnostics" toml:"diagnostics" bson:"diagnostics"`
	Entities    []ResolvedEntity `json:"entities" yaml:"entities" toml:"entities" bson:"entities"`
	Warnings    []string         `json:"warnings,omitempty" yaml:"warnings,omitempty" toml:"warnings,omitempty" bson:"warnings,omitempty"`
}

// Diagnostics summarises the relaxation run.
type Diagnostics struct {
	Iterations int     `json:"iters" yaml:"iters" toml:"iters" bson:"iters"`
	Residual   float64 `json:"residual" yaml:"residual" toml:"residual" bson:"residual"`
	DOF        int     `json:"dof" yaml:"dof" toml:"dof" bson:"dof"`
	TimeMS     int64   `json:"time_ms" yaml:"time_ms" toml:"time_ms" bson:"time_ms"`
	Skipped    []int   `json:"skipped,omitempty" yaml:"skipped,omitempty" toml:"skipped,omitempty" bson:"skipped,omitempty"`
}

// ResolvedEntity is an entity's solved position. At has as many coordinates
// as the entity had in the document.
type ResolvedEntity struct {
	ID     int       `json:"id" yaml:"id" toml:"id" bson:"id"`
	At     []float64 `json:"at" yaml:"at" toml:"at" bson:"at"`
	Radius float64   `json:"radius,omitempty" yaml:"radius,omitempty" toml:"radius,omitempty" bson:"radius,omitempty"`
	Fixed  bool      `json:"fixed,omitempty" yaml:"fixed,omitempty" toml:"fixed,omitempty" bson:"fixed,omitempty"`
}

// Converged reports whether the solver converged.
func (s *Solution) Converged() bool { return s.Status == solver.StatusConverged.String() }

// Entity returns the resolved entity with the given ID.
func (s *Solution) Entity(id int) (ResolvedEntity, bool) {
	i := sort.Search(len(s.Entities), func(i int) bool { return s.Entities[i].ID >= id })
	if i < len(s.Entities) && s.Entities[i].ID == id {
		return s.Entities[i], true
	}
	return ResolvedEntity{}, false
}

// XYZ returns the entity position padded to three coordinates.
func (e ResolvedEntity) XYZ() (x, y, z float64) {
	var p [3]float64
	copy(p[:], e.At)
	return p[0], p[1], p[2]
}
