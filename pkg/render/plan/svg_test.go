package plan

import (
	"strings"
	"testing"

	"github.com/matzehuels/gearlayout/pkg/document"
)

func testSolution() *document.Solution {
	return &document.Solution{
		Status: "converged",
		Entities: []document.ResolvedEntity{
			{ID: 1, At: []float64{0, 0}, Radius: 20, Fixed: true},
			{ID: 2, At: []float64{32, -0.00001}, Radius: 12},
			{ID: 3, At: []float64{40, 30, 5}},
		},
	}
}

func testDocument() *document.Document {
	return &document.Document{
		Schema: document.Schema,
		Constraints: []document.ConstraintSpec{
			{ID: 7, Type: document.TypeDistance, Between: []int{1, 2}, Distance: 32},
			{ID: 8, Type: document.TypeDistance, Between: []int{2, 99}, Distance: 5},
			{ID: 9, Type: document.TypeFixed, Entity: 1},
		},
	}
}

func TestRenderSVGEntities(t *testing.T) {
	svg := string(RenderSVG(testSolution()))

	if !strings.HasPrefix(svg, "<svg") || !strings.HasSuffix(svg, "</svg>\n") {
		t.Fatalf("not an SVG document:\n%s", svg)
	}
	for _, want := range []string{
		`id="entity-1" class="entity fixed" cx="0" cy="0" r="20"`,
		`id="entity-2" class="entity" cx="32" cy="0" r="12"`,
		`id="entity-3" class="marker" cx="40" cy="30" r="2"`,
	} {
		if !strings.Contains(svg, want) {
			t.Errorf("missing %s in\n%s", want, svg)
		}
	}
	if strings.Contains(svg, "-0\"") || strings.Contains(svg, "<line") {
		t.Errorf("unexpected output:\n%s", svg)
	}
}

func TestRenderSVGConstraints(t *testing.T) {
	svg := string(RenderSVG(testSolution(), WithDocument(testDocument()), WithLabels()))

	if !strings.Contains(svg, `<line id="constraint-7" class="constraint" x1="0" y1="0" x2="32" y2="0"/>`) {
		t.Errorf("missing constraint segment:\n%s", svg)
	}
	if strings.Contains(svg, "constraint-8") {
		t.Error("constraint with a missing endpoint should not be drawn")
	}
	if !strings.Contains(svg, ">32</text>") {
		t.Error("missing distance label")
	}
}

func TestRenderSVGDeterministic(t *testing.T) {
	a := RenderSVG(testSolution(), WithDocument(testDocument()))
	b := RenderSVG(testSolution(), WithDocument(testDocument()))
	if string(a) != string(b) {
		t.Error("RenderSVG output is not deterministic")
	}
}

func TestRenderSVGEmpty(t *testing.T) {
	svg := string(RenderSVG(&document.Solution{}))
	if !strings.Contains(svg, `viewBox="-100 -100 200 200" width="800" height="800"`) {
		t.Errorf("unexpected empty view:\n%s", svg)
	}
}

func TestViewProject(t *testing.T) {
	tests := []struct {
		view  View
		wantX float64
		wantY float64
	}{
		{ViewXY, 1, 2},
		{ViewXZ, 1, 3},
		{ViewYZ, 2, 3},
		{ViewIso, -1, -1.5},
	}
	for _, tt := range tests {
		t.Run(string(tt.view), func(t *testing.T) {
			x, y := tt.view.Project(1, 2, 3)
			if x != tt.wantX || y != tt.wantY {
				t.Errorf("Project = (%v, %v), want (%v, %v)", x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestParseView(t *testing.T) {
	if v, err := ParseView(""); err != nil || v != ViewXY {
		t.Errorf("ParseView(\"\") = %v, %v", v, err)
	}
	if v, err := ParseView("XZ"); err != nil || v != ViewXZ {
		t.Errorf("ParseView(XZ) = %v, %v", v, err)
	}
	if _, err := ParseView("top"); err == nil {
		t.Error("ParseView(top) should fail")
	}
}

func TestNumNormalizesNegativeZero(t *testing.T) {
	for in, want := range map[float64]string{-0.0001: "0", 1.23456: "1.235", -2.5: "-2.5", 10: "10"} {
		if got := num(in); got != want {
			t.Errorf("num(%v) = %q, want %q", in, got, want)
		}
	}
}
