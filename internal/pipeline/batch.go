package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Target identifies one PR to build.
type Target struct {
	Repo     string
	PRNumber int
}

// BuildBatch builds several targets concurrently, each in its own workspace
// directory. Per-target failures are captured in the result rather than
// aborting the batch; only context cancellation stops early. Results keep
// the input order.
func (b *Builder) BuildBatch(ctx context.Context, targets []Target, concurrency int) ([]Result, error) {
	if concurrency <= 0 {
		concurrency = 2
	}

	results := make([]Result, len(targets))
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(concurrency)

	for i, tgt := range targets {
		i, tgt := i, tgt
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := b.Build(ctx, tgt.Repo, tgt.PRNumber)
			if err != nil {
				slog.Error("build failed", "repo", tgt.Repo, "pr", tgt.PRNumber, "error", err)
				results[i] = Result{Repo: tgt.Repo, PRNumber: tgt.PRNumber, Err: err}
				return nil
			}
			results[i] = *res
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
