// Package nodelink renders a solved layout as a constraint graph.
//
// # Overview
//
// Entities become Graphviz nodes pinned at their solved positions and
// distance constraints become edges labelled with their target distance.
// Edges whose solved length misses the target are drawn dashed and red, so
// an unconverged layout shows where it is stuck.
//
// # Usage
//
//	dot := nodelink.ToDOT(solution, doc, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// For PDF or PNG output, use the render functions:
//
//	pdf, err := nodelink.RenderPDF(ctx, dot)
//	png, err := nodelink.RenderPNG(ctx, dot, 2.0)  // 2x scale
//
// # DOT Format
//
// The generated DOT uses the neato engine with pinned positions ("x,y!")
// and an inputscale matching the document units, so the graph keeps the
// solved geometry instead of being laid out afresh.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. PDF and PNG conversion requires librsvg (rsvg-convert).
package nodelink
