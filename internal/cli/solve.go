package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gearlayout/pkg/document"
	errs "github.com/matzehuels/gearlayout/pkg/errors"
	"github.com/matzehuels/gearlayout/pkg/pipeline"
	"github.com/matzehuels/gearlayout/pkg/storage"
)

// solveOpts holds the command-line flags for the solve command.
type solveOpts struct {
	solverFlags
	output      string // output file (single input) or directory (several)
	format      string // json, yaml or toml
	noCache     bool
	save        bool
	name        string
	concurrency int
}

// solveCommand creates the solve command.
func (c *CLI) solveCommand() *cobra.Command {
	var opts solveOpts

	cmd := &cobra.Command{
		Use:   "solve [file|glob]...",
		Short: "Solve layout documents",
		Long: `Solve one or more layout documents.

Inputs may be files, "-" for JSON on stdin, or glob patterns such as
"layouts/**/*.yaml". With a single input the solution is written to stdout
unless -o is given. With several inputs each solution is written next to its
document as <name>.solution.<format>, or into the -o directory.

Exit status is 0 when every layout converged, 3 when at least one did not,
2 for invalid input and 1 for other failures.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSolve(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single input) or directory (several inputs)")
	cmd.Flags().StringVar(&opts.format, "format", "", "solution format: json (default), yaml, toml")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.save, "save", false, "store solved layouts in the history")
	cmd.Flags().StringVar(&opts.name, "name", "", "name for stored layouts (default: file name)")
	cmd.Flags().IntVarP(&opts.concurrency, "jobs", "j", pipeline.DefaultConcurrency, "layouts solved in parallel")
	opts.register(cmd)

	return cmd
}

// runSolve expands inputs, solves them in parallel and writes the solutions.
func (c *CLI) runSolve(ctx context.Context, args []string, opts solveOpts) error {
	paths, err := expandInputs(args)
	if err != nil {
		return err
	}
	format, err := solutionFormat(opts.format, opts.output, len(paths))
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	var store storage.Store
	if opts.save {
		if store, err = c.openStore(ctx); err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		if store == nil {
			return errs.New(errs.ErrCodeUnsupported, "storage is disabled (storage.backend = none)")
		}
		defer store.Close()
	}

	pipeOpts := c.baseOptions()
	opts.apply(&pipeOpts)
	pipeOpts.Concurrency = opts.concurrency

	single := len(paths) == 1
	toStdout := single && opts.output == ""

	prog := newProgress(c.Logger)
	var spinner *Spinner
	if !toStdout {
		spinner = newSpinner(ctx, fmt.Sprintf("Solving %d layout(s)...", len(paths)))
		spinner.Start()
	}
	results, err := runner.SolveFiles(ctx, paths, pipeOpts)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}

	var (
		firstErr     error
		failed       int
		notConverged int
		savedID      string
	)
	for _, res := range results {
		if res.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = res.Err
			}
			if !toStdout {
				printError("%s: %s", res.Path, errs.UserMessage(res.Err))
			}
			continue
		}
		if !res.Solution.Converged() {
			notConverged++
		}

		if opts.save {
			rec := &storage.Record{Name: recordName(opts.name, res.Path, single), Document: res.Document, Solution: res.Solution}
			if err := store.Save(ctx, rec); err != nil {
				return fmt.Errorf("save %s: %w", res.Path, err)
			}
			res.Solution = rec.Solution
			savedID = rec.ID
			c.Logger.Info("saved layout", "id", rec.ID, "path", res.Path)
		}

		if toStdout {
			if err := writeSolution(stdout, res.Solution, format); err != nil {
				return err
			}
			continue
		}

		out := solutionPath(res.Path, opts.output, format, single)
		if err := writeSolutionFile(out, res.Solution, format); err != nil {
			return err
		}
		printSuccess("%s", res.Path)
		printFile(out)
		printStats(res.Solution, res.CacheHit)
		if opts.save {
			printKeyValue("  saved as", res.Solution.ID)
		}
	}
	prog.done("solved layouts", "ok", len(results)-failed, "failed", failed, "not_converged", notConverged)

	if savedID != "" && !toStdout {
		printNewline()
		printNextStep("Inspect a stored layout", appName+" history show "+savedID)
	}

	switch {
	case failed > 0 && single:
		return firstErr
	case failed > 0:
		return fmt.Errorf("%d of %d layouts failed: %w", failed, len(results), firstErr)
	case notConverged > 0:
		return errs.New(errs.ErrCodeNotConverged, "%d of %d layouts did not converge", notConverged, len(results))
	}
	return nil
}

// expandInputs resolves glob patterns. Plain paths and "-" pass through
// unchecked so that missing files surface as per-file errors.
func expandInputs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		if arg == document.Stdin || !strings.ContainsAny(arg, "*?[{") {
			add(arg)
			continue
		}
		if !doublestar.ValidatePathPattern(arg) {
			return nil, errs.New(errs.ErrCodeInvalidInput, "invalid glob pattern %q", arg)
		}
		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, errs.New(errs.ErrCodeFileNotFound, "no files match %q", arg)
		}
		for _, m := range matches {
			add(m)
		}
	}
	return paths, nil
}

// solutionFormat picks the output encoding from the flag, then from the
// extension of a single output file, then JSON.
func solutionFormat(flag, output string, inputs int) (document.Format, error) {
	if flag != "" {
		return document.ParseFormat(flag)
	}
	if output != "" && inputs == 1 {
		return document.FormatFromPath(output), nil
	}
	return document.FormatJSON, nil
}

// solutionPath returns where the solution for input is written.
func solutionPath(input, output string, format document.Format, single bool) string {
	if single && output != "" {
		return output
	}
	base := filepath.Base(input)
	if input == document.Stdin {
		base = "stdin"
	}
	name := strings.TrimSuffix(base, filepath.Ext(base)) + ".solution." + string(format)
	if output != "" {
		return filepath.Join(output, name)
	}
	return filepath.Join(filepath.Dir(input), name)
}

// recordName is the stored name for a layout solved from path.
func recordName(flag, path string, single bool) string {
	if flag != "" && single {
		return flag
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if path == document.Stdin {
		stem = "stdin"
	}
	if flag != "" {
		return flag + "-" + stem
	}
	return stem
}

func writeSolution(w io.Writer, sol document.Solution, format document.Format) error {
	data, err := document.Marshal(sol, format)
	if err != nil {
		return fmt.Errorf("encode solution: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func writeSolutionFile(path string, sol document.Solution, format document.Format) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write output %s: %w", path, err)
	}
	defer f.Close()
	return writeSolution(f, sol, format)
}
