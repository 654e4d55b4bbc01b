// Package render turns solved layouts into pictures.
//
// # Overview
//
//   - Plan views: circles drawn at their solved centres (in [plan] subpackage)
//   - Constraint graphs: entities as pinned Graphviz nodes (in [nodelink] subpackage)
//   - Generic format conversion (SVG to PDF/PNG)
//
// # Format Conversion
//
// The [ToPDF] and [ToPNG] functions convert any SVG to other formats using
// the external rsvg-convert tool (from librsvg).
//
//	svg := plan.RenderSVG(solution, plan.WithDocument(doc))
//	pdf, err := render.ToPDF(svg)
//	png, err := render.ToPNG(svg, 2.0)  // 2x scale
//
// [plan]: github.com/matzehuels/gearlayout/pkg/render/plan
// [nodelink]: github.com/matzehuels/gearlayout/pkg/render/nodelink
package render
