package pipeline

import (
	"github.com/matzehuels/gearlayout/pkg/buildinfo"
	"github.com/matzehuels/gearlayout/pkg/document"
	"github.com/matzehuels/gearlayout/pkg/render"
	"github.com/matzehuels/gearlayout/pkg/render/plan"
)

// Capabilities describes what this build accepts and produces.
type Capabilities struct {
	Version         string         `json:"version"`
	Schema          string         `json:"schema"`
	Entities        []string       `json:"entities"`
	Constraints     []string       `json:"constraints"`
	InputFormats    []string       `json:"input_formats"`
	ExportFormats   []string       `json:"export_formats"`
	VizTypes        []string       `json:"viz_types"`
	Views           []string       `json:"views"`
	Units           []string       `json:"units"`
	Solver          SolverDefaults `json:"solver"`
	RasterAvailable bool           `json:"raster_available"` // png/pdf need rsvg-convert
}

// SolverDefaults are the effective solver settings for requests that set none.
type SolverDefaults struct {
	MaxIterations int     `json:"max_iterations"`
	Tolerance     float64 `json:"tolerance"`
	StepSize      float64 `json:"step_size"`
	MinDistance   float64 `json:"min_distance"`
	Strict        bool    `json:"strict"`
}

// Describe reports capabilities with solver defaults taken from base.
func Describe(base Options) Capabilities {
	so := base.SolverOptions()

	return Capabilities{
		Version:       buildinfo.Version,
		Schema:        document.Schema,
		Entities:      []string{"circle"},
		Constraints:   []string{document.TypeDistance, document.TypeFixed},
		InputFormats:  document.Formats,
		ExportFormats: ValidFormats,
		VizTypes:      ValidVizTypes,
		Views:         plan.Views,
		Units:         document.Units,
		Solver: SolverDefaults{
			MaxIterations: so.MaxIterations,
			Tolerance:     so.Tolerance,
			StepSize:      so.StepSize,
			MinDistance:   so.MinDistance,
			Strict:        so.StrictReferences,
		},
		RasterAvailable: render.Available(),
	}
}
