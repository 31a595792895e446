package engine

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"arbcore/internal/model"
	"arbcore/internal/venue"
)

// Target is one venue and the pair to quote on it.
type Target struct {
	Venue venue.Venue
	Pair  model.Pair
}

// Collect fetches all targets concurrently. A failed fetch is logged and
// dropped without cancelling the others. Quotes come back in target order.
func (r *Runner) Collect(ctx context.Context, targets []Target) []model.Quote {
	results := make([]*model.Quote, len(targets))

	policy := quoteRetryPolicy(r.cfg.QuoteRetries, r.cfg.RetryBaseDelay)
	var g errgroup.Group
	g.SetLimit(r.cfg.FetchConcurrency)
	for i, target := range targets {
		g.Go(func() error {
			var q model.Quote
			err := policy.do(ctx, func(ctx context.Context) error {
				var err error
				q, err = target.Venue.Quote(ctx, target.Pair)
				return err
			})
			if err != nil {
				r.logger.Warn("quote fetch failed",
					zap.String("venue", target.Venue.ID()),
					zap.Stringer("pair", target.Pair),
					zap.Error(err),
				)
				return nil
			}
			results[i] = &q
			return nil
		})
	}
	_ = g.Wait()

	quotes := make([]model.Quote, 0, len(results))
	for _, q := range results {
		if q != nil {
			quotes = append(quotes, *q)
		}
	}
	return quotes
}
