package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/lawrag/internal/domain"
	"github.com/kailas-cloud/lawrag/internal/domain/search/hit"
)

// expand rewrites every seed into cfg.Expansions sub-queries, concurrently.
// A seed whose expansion fails is searched verbatim and the response is marked degraded.
// Only context errors abort. Output keeps seed order.
func (r *run) expand(ctx context.Context, seeds []string) ([]string, error) {
	cfg := &r.svc.cfg
	n := cfg.Expansions

	if r.svc.deps.Expander == nil {
		r.resp.Degraded = true
		r.warn("query expansion unavailable, searching verbatim")
		return seeds, nil
	}

	// Seeds past the sub-query budget would be dropped anyway.
	if limit := cfg.maxSubQueries(); limit > 0 {
		if need := (limit + n - 1) / n; len(seeds) > need {
			r.warn("%d of %d inputs not expanded: raw hit limit %d", len(seeds)-need, len(seeds), cfg.MaxRawHits)
			seeds = seeds[:need]
		}
	}

	slots := make([][]string, len(seeds))
	failed := make([]error, len(seeds))

	// Без WithContext: отказ одного расширения не отменяет соседей.
	var g errgroup.Group
	g.SetLimit(cfg.ExpandConcurrency)
	for i, seed := range seeds {
		g.Go(func() error {
			qs, err := r.svc.deps.Expander.Expand(ctx, seed, n, r.req.Language())
			if err != nil {
				failed[i] = err
				slots[i] = []string{seed}
				return nil
			}
			slots[i] = qs
			return nil
		})
	}
	_ = g.Wait()
	r.resp.Stats.Expansions += len(seeds)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}

	out := make([]string, 0, len(seeds)*n)
	fallbacks := 0
	for i := range slots {
		if failed[i] != nil {
			fallbacks++
			r.log.Warn("Query expansion failed, using verbatim input",
				zap.Int("input", i),
				zap.Error(failed[i]),
			)
		}
		out = append(out, slots[i]...)
	}
	if fallbacks > 0 {
		r.resp.Degraded = true
		r.warn("query expansion failed for %d of %d inputs, searched verbatim", fallbacks, len(seeds))
	}
	return out, nil
}

// search runs one similarity lookup per sub-query. Each goroutine writes only its own slot,
// so batches come back in generation order. The first failure cancels the rest.
func (r *run) search(ctx context.Context, subQueries []string, vectors [][]float32) ([]hit.Batch, error) {
	cfg := &r.svc.cfg
	lang := r.req.Language()
	batches := make([]hit.Batch, len(vectors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.SearchConcurrency)
	for i := range vectors {
		g.Go(func() error {
			hits, err := r.svc.deps.Store.Search(gctx, lang, vectors[i], cfg.TopK)
			if err != nil {
				return fmt.Errorf("sub-query %d: %w", i, err)
			}
			batches[i] = hit.NewBatch(i, subQueries[i], hits)
			return nil
		})
	}
	r.resp.Stats.Searches += len(vectors)

	if err := g.Wait(); err != nil {
		return nil, classify(err, domain.ErrStore)
	}

	r.resp.Stats.RawHits = hit.Size(batches)
	return batches, nil
}
