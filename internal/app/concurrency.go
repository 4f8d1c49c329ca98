package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// MapLimit applies fn to every item with at most limit calls in flight and
// returns the results in item order. The first error cancels the remaining
// calls and is returned wrapped.
//
// Example:
//
//	recs, err := MapLimit(ctx, 4, files, func(ctx context.Context, f string) (Rec, error) {
//	    return evaluate(ctx, f)
//	})
func MapLimit[T, R any](ctx context.Context, limit int, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	if limit < 1 {
		limit = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	results := make([]R, len(items))

	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			result, err := fn(ctx, item)
			if err != nil {
				return err
			}

			results[i] = result

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parallel execution failed: %w", err)
	}

	return results, nil
}
