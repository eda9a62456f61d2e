package txn

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Map runs one transaction per request concurrently, all with the same
// operation and config. Results are returned in request order.
//
// The first failure fails the whole batch: the remaining transactions are
// cancelled and only the error is returned. Use Start or Do per request when
// partial results are needed.
func Map(ctx context.Context, reqs []Request, op Operation, cfg Config) ([]*Result, error) {
	results := make([]*Result, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := Do(gctx, req, op, cfg)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
