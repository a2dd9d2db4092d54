package mirror

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
)

// MirrorQuery reconciles every repository returned by a saved forge query.
// Listing failures are returned before any repository is touched. The
// sequence is lazy: each repository is processed when the consumer pulls
// it, one at a time, and a failure on one does not stop the rest. Overrides
// in opts are ignored since they only make sense for one repository.
func (r *Reconciler) MirrorQuery(ctx context.Context, queryKey string, opts Options) (iter.Seq[Result], error) {
	phids, err := r.list(ctx, queryKey)
	if err != nil {
		return nil, err
	}
	opts.Overrides = Overrides{}
	return r.each(ctx, phids, func(id Identifier) Result {
		return r.Reconcile(ctx, id, opts)
	}), nil
}

// UpdateQuery refreshes host metadata for every repository returned by a
// saved forge query.
func (r *Reconciler) UpdateQuery(ctx context.Context, queryKey string, dryRun bool) (iter.Seq[Result], error) {
	phids, err := r.list(ctx, queryKey)
	if err != nil {
		return nil, err
	}
	return r.each(ctx, phids, func(id Identifier) Result {
		return r.Update(ctx, id, dryRun)
	}), nil
}

func (r *Reconciler) list(ctx context.Context, queryKey string) ([]string, error) {
	phids, err := r.forge.QueryRepositoryPHIDs(ctx, queryKey)
	if err != nil {
		return nil, fmt.Errorf("listing saved query %q: %w", queryKey, err)
	}
	slog.Info("saved query listed", "query", queryKey, "repositories", len(phids))
	return phids, nil
}

// each yields one result per PHID. Once ctx is done the remaining
// repositories fail with the context error without any call being made.
func (r *Reconciler) each(ctx context.Context, phids []string, fn func(Identifier) Result) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		for _, phid := range phids {
			var res Result
			if err := ctx.Err(); err != nil {
				res = Result{Repo: phid, Kind: OutcomeFailed, Err: err}
			} else {
				res = fn(Name(phid))
			}
			if !yield(res) {
				return
			}
		}
	}
}
