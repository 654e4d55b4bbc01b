package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gearlayout/pkg/document"
	errs "github.com/matzehuels/gearlayout/pkg/errors"
	"github.com/matzehuels/gearlayout/pkg/pipeline"
)

// watchDebounce coalesces the bursts of events editors emit on save.
const watchDebounce = 150 * time.Millisecond

// watchCommand creates the watch command.
func (c *CLI) watchCommand() *cobra.Command {
	var (
		flags   solverFlags
		output  string
		formats string
	)

	cmd := &cobra.Command{
		Use:   "watch [file]",
		Short: "Re-solve a document whenever it changes",
		Long: `Watch a layout document and re-solve it on every save.

The solution is written to -o (default <name>.solution.json). With --render
the layout is also rendered in the given formats next to the output.
Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := c.baseOptions()
			flags.apply(&opts)
			if formats != "" {
				opts.Formats = parseFormats(formats)
				if err := pipeline.ValidateFormats(opts.Formats); err != nil {
					return err
				}
			}
			if output == "" {
				output = solutionPath(args[0], "", document.FormatJSON, true)
			}
			return c.runWatch(cmd.Context(), args[0], output, opts)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "solution file (default: <name>.solution.json)")
	cmd.Flags().StringVar(&formats, "render", "", "also render: svg, png, pdf, dot (comma-separated)")
	flags.register(cmd)

	return cmd
}

// runWatch solves once, then again after every debounced change.
func (c *CLI) runWatch(ctx context.Context, input, output string, opts pipeline.Options) error {
	if input == document.Stdin {
		return errs.New(errs.ErrCodeInvalidInput, "cannot watch stdin")
	}
	runner, err := c.newRunner(ctx, false)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	changes, err := watchFile(ctx, input, watchDebounce)
	if err != nil {
		return err
	}

	printInfo("Watching %s", input)
	c.solveOnce(ctx, runner, input, output, opts)
	for {
		select {
		case <-ctx.Done():
			printNewline()
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			c.solveOnce(ctx, runner, input, output, opts)
		}
	}
}

// solveOnce reports failures instead of returning them so the watch loop
// survives a half-edited document.
func (c *CLI) solveOnce(ctx context.Context, runner *pipeline.Runner, input, output string, opts pipeline.Options) {
	doc, err := document.ReadFile(input)
	if err != nil {
		printError("%s", errs.UserMessage(err))
		return
	}

	if len(opts.Formats) == 0 {
		sol, hit, err := runner.SolveWithCacheInfo(ctx, doc, opts)
		if err != nil {
			printError("%s", errs.UserMessage(err))
			return
		}
		if err := writeSolutionFile(output, sol, document.FormatFromPath(output)); err != nil {
			printError("%v", err)
			return
		}
		printSuccess("%s %s", time.Now().Format("15:04:05"), output)
		printStats(sol, hit)
		return
	}

	result, err := runner.Execute(ctx, doc, opts)
	if err != nil {
		printError("%s", errs.UserMessage(err))
		return
	}
	if err := writeSolutionFile(output, result.Solution, document.FormatFromPath(output)); err != nil {
		printError("%v", err)
		return
	}
	printSuccess("%s %s", time.Now().Format("15:04:05"), output)
	paths, err := writeArtifacts(result.Artifacts, opts.Formats, basePath("", input))
	if err != nil {
		printError("%v", err)
		return
	}
	for _, p := range paths {
		printFile(p)
	}
	printStats(result.Solution, result.CacheInfo.SolveHit)
}

// watchFile sends on the returned channel once per burst of changes to
// path. The directory is watched rather than the file so that editors that
// save by rename keep being tracked. The channel closes when ctx ends.
func watchFile(ctx context.Context, path string, debounce time.Duration) (<-chan struct{}, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer w.Close()

		timer := time.NewTimer(debounce)
		timer.Stop()
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				timer.Reset(debounce)
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			case <-timer.C:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
