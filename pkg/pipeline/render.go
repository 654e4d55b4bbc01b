package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matzehuels/gearlayout/pkg/document"
	"github.com/matzehuels/gearlayout/pkg/observability"
	"github.com/matzehuels/gearlayout/pkg/render"
	"github.com/matzehuels/gearlayout/pkg/render/nodelink"
	"github.com/matzehuels/gearlayout/pkg/render/plan"
)

// RenderSolution generates output artifacts in the requested formats.
// doc may be nil, in which case constraint lines are omitted.
func RenderSolution(ctx context.Context, sol *document.Solution, doc *document.Document, opts Options) (artifacts map[string][]byte, err error) {
	hooks := observability.Render()
	hooks.OnRenderStart(ctx, opts.Formats)
	start := time.Now()
	defer func() { hooks.OnRenderComplete(ctx, opts.Formats, time.Since(start), err) }()

	if opts.IsGraph() {
		return renderGraph(ctx, sol, doc, opts)
	}
	return renderPlan(ctx, sol, doc, opts)
}

// renderPlan draws entities at their solved positions.
func renderPlan(ctx context.Context, sol *document.Solution, doc *document.Document, opts Options) (map[string][]byte, error) {
	view, err := plan.ParseView(opts.View)
	if err != nil {
		return nil, err
	}
	svgOpts := []plan.SVGOption{plan.WithView(view)}
	if doc != nil {
		svgOpts = append(svgOpts, plan.WithDocument(doc))
	}
	if opts.Labels {
		svgOpts = append(svgOpts, plan.WithLabels())
	}

	var svg []byte
	svgOnce := func() []byte {
		if svg == nil {
			svg = plan.RenderSVG(sol, svgOpts...)
		}
		return svg
	}

	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		var data []byte
		var err error

		switch format {
		case FormatSVG:
			data = svgOnce()
		case FormatPNG:
			data, err = render.ToPNG(ctx, svgOnce(), opts.Scale)
		case FormatPDF:
			data, err = render.ToPDF(ctx, svgOnce())
		case FormatDOT:
			data = []byte(nodelink.ToDOT(sol, doc, nodelink.Options{View: view, Detailed: opts.Labels}))
		case FormatJSON:
			data, err = marshalSolution(sol)
		default:
			return nil, fmt.Errorf("unsupported plan format: %s", format)
		}

		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}

// renderGraph lays the constraint graph out with Graphviz, pinning nodes to
// their solved positions.
func renderGraph(ctx context.Context, sol *document.Solution, doc *document.Document, opts Options) (map[string][]byte, error) {
	view, err := plan.ParseView(opts.View)
	if err != nil {
		return nil, err
	}
	dot := nodelink.ToDOT(sol, doc, nodelink.Options{View: view, Detailed: opts.Labels})

	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		var data []byte
		var err error

		switch format {
		case FormatSVG:
			data, err = nodelink.RenderSVG(ctx, dot)
		case FormatPNG:
			data, err = nodelink.RenderPNG(ctx, dot, opts.Scale)
		case FormatPDF:
			data, err = nodelink.RenderPDF(ctx, dot)
		case FormatDOT:
			data = []byte(dot)
		case FormatJSON:
			data, err = marshalSolution(sol)
		default:
			return nil, fmt.Errorf("unsupported graph format: %s", format)
		}

		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}

func marshalSolution(sol *document.Solution) ([]byte, error) {
	data, err := json.MarshalIndent(sol, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
