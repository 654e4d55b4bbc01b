package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gearlayout/pkg/document"
	"github.com/matzehuels/gearlayout/pkg/pipeline"
	"github.com/matzehuels/gearlayout/pkg/render"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	solverFlags
	output  string // output file (single format) or base path (several)
	formats string // comma-separated output formats
	noCache bool
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts
	pipeOpts := pipeline.Options{}
	pipeOpts.SetRenderDefaults()

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Solve a document and render the layout",
		Long: `Solve a layout document and render the result.

The plan view draws every entity as a circle at its solved position, seen
along one axis (--view xy, xz, yz or iso), with constraint lines between
centres. The graph view (--viz graph) lays out the constraint graph with
Graphviz, pinned to the solved positions.

PNG and PDF output need rsvg-convert on PATH for the plan view.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeOpts.Formats = parseFormats(opts.formats)
			if err := pipeline.ValidateFormats(pipeOpts.Formats); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args[0], opts, pipeOpts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): svg (default), png, pdf, dot, json (comma-separated)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&pipeOpts.VizType, "viz", pipeOpts.VizType, "visualization: plan (default), graph")
	cmd.Flags().StringVar(&pipeOpts.View, "view", pipeOpts.View, "projection: xy (default), xz, yz, iso")
	cmd.Flags().BoolVar(&pipeOpts.Labels, "labels", false, "label entities and constraints")
	cmd.Flags().Float64Var(&pipeOpts.Scale, "scale", pipeOpts.Scale, "raster scale factor for png")
	opts.register(cmd)

	return cmd
}

// runRender loads the document, solves and renders it, and writes artifacts.
func (c *CLI) runRender(ctx context.Context, input string, opts renderOpts, pipeOpts pipeline.Options) error {
	doc, err := document.ReadFile(input)
	if err != nil {
		return err
	}

	for _, f := range pipeOpts.Formats {
		if (f == pipeline.FormatPNG || f == pipeline.FormatPDF) && !pipeOpts.IsGraph() && !render.Available() {
			return fmt.Errorf("%s output needs rsvg-convert on PATH (or use --viz graph)", f)
		}
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	flags := pipeOpts
	pipeOpts = c.baseOptions()
	pipeOpts.Formats = flags.Formats
	pipeOpts.VizType = flags.VizType
	pipeOpts.View = flags.View
	pipeOpts.Labels = flags.Labels
	pipeOpts.Scale = flags.Scale
	opts.apply(&pipeOpts)

	spinner := newSpinner(ctx, fmt.Sprintf("Rendering %s...", input))
	spinner.Start()

	result, err := runner.Execute(ctx, doc, pipeOpts)
	if err != nil {
		spinner.StopWithError("Render failed")
		return err
	}
	spinner.Stop()

	var paths []string
	if len(pipeOpts.Formats) == 1 && opts.output != "" {
		format := pipeOpts.Formats[0]
		if err := os.WriteFile(opts.output, result.Artifacts[format], 0o644); err != nil {
			return fmt.Errorf("write output %s: %w", opts.output, err)
		}
		paths = []string{opts.output}
	} else {
		if paths, err = writeArtifacts(result.Artifacts, pipeOpts.Formats, basePath(opts.output, input)); err != nil {
			return err
		}
	}

	printSuccess("Render complete")
	for _, p := range paths {
		printFile(p)
	}
	printStats(result.Solution, result.CacheInfo.SolveHit)
	if !result.Solution.Converged() {
		printWarning("Layout did not converge; positions are a best effort")
	}

	return nil
}

// basePath derives the base output path from the output and input file paths.
// If output is empty, it strips the extension from input.
// If output has a format extension (.svg, .pdf, etc.), it strips that extension.
func basePath(output, input string) string {
	if output == "" {
		if input == document.Stdin {
			return "layout"
		}
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if pipeline.ValidateFormat(strings.TrimPrefix(ext, ".")) == nil {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

// writeArtifacts writes each format to base.<format> and returns the paths
// in format order. JSON goes to base.solution.json so it cannot clobber a
// JSON input document.
func writeArtifacts(artifacts map[string][]byte, formats []string, base string) ([]string, error) {
	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		data, ok := artifacts[format]
		if !ok {
			continue
		}
		path := base + "." + format
		if format == pipeline.FormatJSON {
			path = base + ".solution.json"
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("write output %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
