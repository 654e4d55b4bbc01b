package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/gearlayout/pkg/document"
)

// FileResult is the outcome of solving one file in a batch.
type FileResult struct {
	Path     string
	Document *document.Document
	Solution document.Solution
	CacheHit bool
	Err      error
}

// SolveFiles reads and solves each path with at most opts.Concurrency
// solves in flight. Per-file failures are recorded in the result rather than
// aborting the batch; only context cancellation stops it early. Results are
// returned in input order.
func (r *Runner) SolveFiles(ctx context.Context, paths []string, opts Options) ([]FileResult, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForSolve(); err != nil {
		return nil, err
	}

	results := make([]FileResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := FileResult{Path: path}
			defer func() { results[i] = res }()

			doc, err := document.ReadFile(path)
			if err != nil {
				res.Err = err
				return nil
			}
			res.Document = doc
			res.Solution, res.CacheHit, res.Err = r.SolveWithCacheInfo(ctx, doc, opts)
			if res.Err != nil {
				r.Logger.Warn("solve failed", "path", path, "err", res.Err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
