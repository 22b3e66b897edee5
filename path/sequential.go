package path

import (
	"context"
	"time"

	"github.com/adaizjx/abess/core/parallel"
	"github.com/adaizjx/abess/pkg/log"
	"github.com/adaizjx/abess/splicing"
)

type entry struct {
	size   int
	lambda float64
	// index into the returned slice
	slot int
}

// Sequential fits every (size, lambda) pair and returns the candidates ordered by size,
// then by the position of lambda in lambdas. Nil lambdas mean {0}.
//
// With warm start the grid is visited sizes ascending and lambdas in serpentine order
// (forward for even size rows, backward for odd ones) so that consecutive entries are
// neighbours; the context is checked between entries.
func (r *Runner) Sequential(ctx context.Context, sizes []int, lambdas []float64) ([]*Candidate, error) {
	sizes, err := r.checkSizes("path.Sequential", sizes)
	if err != nil {
		return nil, err
	}
	lambdas, err = checkLambdas(lambdas)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	order := serpentine(sizes, lambdas)
	out := make([]*Candidate, len(order))

	if r.WarmStart {
		var warm *splicing.Warm
		for _, e := range order {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			c, err := r.Fit(ctx, e.size, e.lambda, warm)
			if err != nil {
				return nil, err
			}
			out[e.slot] = c
			warm = c.Warm()
		}
	} else {
		err := parallel.ForEach(ctx, len(order), r.Workers, func(ctx context.Context, i int) error {
			e := order[i]
			c, err := r.Fit(ctx, e.size, e.lambda, nil)
			if err != nil {
				return err
			}
			out[e.slot] = c
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	r.logger().Debug("path finished",
		log.OperationKey, log.OperationPath,
		log.CandidatesKey, len(out),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return out, nil
}

func serpentine(sizes []int, lambdas []float64) []entry {
	order := make([]entry, 0, len(sizes)*len(lambdas))
	for row, s := range sizes {
		for i := range lambdas {
			li := i
			if row%2 == 1 {
				li = len(lambdas) - 1 - i
			}
			order = append(order, entry{size: s, lambda: lambdas[li], slot: row*len(lambdas) + li})
		}
	}
	return order
}
