package path

import (
	"context"
	"math"
	"sort"

	"github.com/adaizjx/abess/pkg/errors"
	"github.com/adaizjx/abess/pkg/log"
	"github.com/adaizjx/abess/splicing"
)

// ScoreFunc scores a candidate; lower is better.
type ScoreFunc func(ctx context.Context, c *Candidate) (float64, error)

// Golden searches [sMin, sMax] for the support size minimizing score at a fixed lambda.
//
// The bracket shrinks by golden-section steps, probing Tl = round(0.618·lo+0.382·hi) and
// Tr = round(0.382·lo+0.618·hi), until at most three sizes remain; those are then all fitted.
// Every size fitted along the way is returned, sorted by size.
func (r *Runner) Golden(ctx context.Context, sMin, sMax int, lambda float64, score ScoreFunc) ([]*Candidate, error) {
	if sMin > sMax {
		return nil, errors.NewEmptyPathError("path.Golden")
	}
	if _, err := r.checkSizes("path.Golden", []int{sMin, sMax}); err != nil {
		return nil, err
	}
	if _, err := checkLambdas([]float64{lambda}); err != nil {
		return nil, err
	}

	fitted := make(map[int]*Candidate)
	scores := make(map[int]float64)
	var warm *splicing.Warm
	eval := func(size int) (float64, error) {
		if v, ok := scores[size]; ok {
			return v, nil
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if !r.WarmStart {
			warm = nil
		}
		c, err := r.Fit(ctx, size, lambda, warm)
		if err != nil {
			return 0, err
		}
		v, err := score(ctx, c)
		if err != nil {
			return 0, err
		}
		fitted[size] = c
		scores[size] = v
		warm = c.Warm()
		return v, nil
	}

	lo, hi := sMin, sMax
	for hi-lo > 2 {
		tl := int(math.Round(0.618*float64(lo) + 0.382*float64(hi)))
		tr := int(math.Round(0.382*float64(lo) + 0.618*float64(hi)))
		if tl <= lo {
			tl = lo + 1
		}
		if tr >= hi {
			tr = hi - 1
		}
		if tr <= tl {
			tr = tl + 1
		}
		sl, err := eval(tl)
		if err != nil {
			return nil, err
		}
		sr, err := eval(tr)
		if err != nil {
			return nil, err
		}
		if sl <= sr {
			hi = tr
		} else {
			lo = tl
		}
	}
	for s := lo; s <= hi; s++ {
		if _, err := eval(s); err != nil {
			return nil, err
		}
	}

	out := make([]*Candidate, 0, len(fitted))
	for _, c := range fitted {
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Size < out[b].Size })

	r.logger().Debug("golden search finished",
		log.OperationKey, log.OperationPath,
		log.CandidatesKey, len(out),
		log.SupportSizeKey, lo,
	)
	return out, nil
}
