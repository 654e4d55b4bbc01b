package plan

import (
	"bytes"
	"fmt"
	"math"

	"github.com/matzehuels/gearlayout/pkg/document"
)

const (
	padding     = 20.0
	markerSize  = 2.0
	defaultSize = 800
)

type SVGOption func(*svgRenderer)

type svgRenderer struct {
	doc    *document.Document
	view   View
	labels bool
	width  int
}

// WithDocument draws the document's distance constraints and uses its fixed
// flags for highlighting.
func WithDocument(d *document.Document) SVGOption { return func(r *svgRenderer) { r.doc = d } }
func WithView(v View) SVGOption                   { return func(r *svgRenderer) { r.view = v } }
func WithLabels() SVGOption                       { return func(r *svgRenderer) { r.labels = true } }
func WithWidth(px int) SVGOption                  { return func(r *svgRenderer) { r.width = px } }

type point struct{ x, y float64 }

// RenderSVG draws sol as an SVG document.
func RenderSVG(sol *document.Solution, opts ...SVGOption) []byte {
	r := svgRenderer{view: ViewXY, width: defaultSize}
	for _, opt := range opts {
		opt(&r)
	}

	centres := make(map[int]point, len(sol.Entities))
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, e := range sol.Entities {
		x, y := r.view.Project(e.XYZ())
		centres[e.ID] = point{x, y}
		rad := max(e.Radius, markerSize)
		minX, maxX = math.Min(minX, x-rad), math.Max(maxX, x+rad)
		minY, maxY = math.Min(minY, y-rad), math.Max(maxY, y+rad)
	}
	if len(sol.Entities) == 0 {
		minX, minY, maxX, maxY = -100, -100, 100, 100
	} else {
		minX, minY, maxX, maxY = minX-padding, minY-padding, maxX+padding, maxY+padding
	}
	w, h := maxX-minX, maxY-minY
	height := int(math.Round(float64(r.width) * h / w))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="%s %s %s %s" width="%d" height="%d">`+"\n",
		num(minX), num(minY), num(w), num(h), r.width, height)
	buf.WriteString(`  <style>
    .entity { fill: none; stroke: #1f2937; stroke-width: 0.8; }
    .entity.fixed { fill: #e5e7eb; stroke: #b91c1c; stroke-width: 1.2; }
    .marker { fill: #1f2937; }
    .constraint { stroke: #2563eb; stroke-width: 0.5; stroke-dasharray: 2 1.5; }
    .label { font: 4px sans-serif; fill: #374151; }
  </style>` + "\n")

	if r.doc != nil {
		r.renderConstraints(&buf, centres)
	}
	for _, e := range sol.Entities {
		r.renderEntity(&buf, e, centres[e.ID])
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func (r *svgRenderer) renderConstraints(buf *bytes.Buffer, centres map[int]point) {
	for _, c := range r.doc.Constraints {
		if c.Type != document.TypeDistance || len(c.Between) != 2 {
			continue
		}
		a, okA := centres[c.Between[0]]
		b, okB := centres[c.Between[1]]
		if !okA || !okB {
			continue
		}
		fmt.Fprintf(buf, `  <line id="constraint-%d" class="constraint" x1="%s" y1="%s" x2="%s" y2="%s"/>`+"\n",
			c.ID, num(a.x), num(a.y), num(b.x), num(b.y))
		if r.labels {
			fmt.Fprintf(buf, `  <text class="label" x="%s" y="%s" text-anchor="middle">%s</text>`+"\n",
				num((a.x+b.x)/2), num((a.y+b.y)/2-1), num(c.Distance))
		}
	}
}

func (r *svgRenderer) renderEntity(buf *bytes.Buffer, e document.ResolvedEntity, p point) {
	class := "entity"
	if e.Fixed {
		class += " fixed"
	}
	if e.Radius > 0 {
		fmt.Fprintf(buf, `  <circle id="entity-%d" class="%s" cx="%s" cy="%s" r="%s"/>`+"\n",
			e.ID, class, num(p.x), num(p.y), num(e.Radius))
	} else {
		fmt.Fprintf(buf, `  <circle id="entity-%d" class="marker" cx="%s" cy="%s" r="%s"/>`+"\n",
			e.ID, num(p.x), num(p.y), num(markerSize))
	}
	if r.labels {
		fmt.Fprintf(buf, `  <text class="label" x="%s" y="%s" text-anchor="middle">%d</text>`+"\n",
			num(p.x), num(p.y+1.5), e.ID)
	}
}
