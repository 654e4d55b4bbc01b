package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/gearlayout/pkg/document"
	"github.com/matzehuels/gearlayout/pkg/render"
	"github.com/matzehuels/gearlayout/pkg/render/plan"
)

// Options configures constraint graph generation.
type Options struct {
	// Detailed adds radius and coordinates to node labels.
	Detailed bool
	// View selects the projection plane. Empty means xy.
	View plan.View
	// Tolerance is the length error above which an edge counts as violated.
	// Zero means 1e-6.
	Tolerance float64
}

// unitsPerInch maps document units onto Graphviz inputscale.
var unitsPerInch = map[string]float64{
	"mm": 25.4,
	"cm": 2.54,
	"m":  0.0254,
	"in": 1,
}

// ToDOT converts a solution to Graphviz DOT. doc supplies the constraints;
// when nil only the nodes are emitted.
func ToDOT(sol *document.Solution, doc *document.Document, opts Options) string {
	view := opts.View
	if view == "" {
		view = plan.ViewXY
	}
	tol := opts.Tolerance
	if tol == 0 {
		tol = 1e-6
	}
	scale, ok := unitsPerInch[sol.Units]
	if !ok {
		scale = unitsPerInch[document.DefaultUnits]
	}

	var buf bytes.Buffer
	buf.WriteString("graph G {\n")
	buf.WriteString("  layout=neato;\n")
	fmt.Fprintf(&buf, "  inputscale=%s;\n", fmtFloat(scale))
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  splines=false;\n")
	buf.WriteString("  node [shape=circle, style=filled, fillcolor=white, fontsize=10];\n")
	buf.WriteString("  edge [fontsize=9, color=\"#2563eb\"];\n")
	buf.WriteString("\n")

	for _, e := range sol.Entities {
		x, y := view.Project(e.XYZ())
		attrs := fmt.Sprintf("pos=\"%s,%s!\", label=%q", fmtFloat(x), fmtFloat(y), fmtLabel(e, opts.Detailed))
		if e.Fixed {
			attrs += ", fillcolor=\"#e5e7eb\", color=\"#b91c1c\", penwidth=2"
		}
		fmt.Fprintf(&buf, "  %d [%s];\n", e.ID, attrs)
	}

	if doc != nil {
		buf.WriteString("\n")
		for _, c := range doc.Constraints {
			if c.Type != document.TypeDistance || len(c.Between) != 2 {
				continue
			}
			a, okA := sol.Entity(c.Between[0])
			b, okB := sol.Entity(c.Between[1])
			if !okA || !okB {
				continue
			}
			attrs := fmt.Sprintf("label=%q", fmtFloat(c.Distance))
			if math.Abs(length(a, b)-c.Distance) > tol {
				attrs += ", style=dashed, color=\"#b91c1c\""
			}
			fmt.Fprintf(&buf, "  %d -- %d [%s];\n", a.ID, b.ID, attrs)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(e document.ResolvedEntity, detailed bool) string {
	if !detailed {
		return strconv.Itoa(e.ID)
	}
	x, y, z := e.XYZ()
	return fmt.Sprintf("%d\nr=%s\n(%s, %s, %s)", e.ID, fmtFloat(e.Radius), fmtFloat(x), fmtFloat(y), fmtFloat(z))
}

func fmtFloat(v float64) string {
	v = math.Round(v*1000) / 1000
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func length(a, b document.ResolvedEntity) float64 {
	ax, ay, az := a.XYZ()
	bx, by, bz := b.XYZ()
	return math.Sqrt((ax-bx)*(ax-bx) + (ay-by)*(ay-by) + (az-bz)*(az-bz))
}

// RenderSVG renders a DOT graph to SVG using Graphviz's neato engine.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's pt-sized root element with a
// unitless one so the SVG scales to its container.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(ctx, svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion.
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}
