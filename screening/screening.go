// Package screening ranks predictors by marginal utility and keeps the strongest ones.
// With column groups the unit of ranking is the group, and m counts groups.
package screening

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/adaizjx/abess/core/parallel"
	"github.com/adaizjx/abess/data"
	"github.com/adaizjx/abess/family"
	"github.com/adaizjx/abess/linear"
	"github.com/adaizjx/abess/performance"
	"github.com/adaizjx/abess/pkg/errors"
	"github.com/adaizjx/abess/pkg/log"
)

// Options constrain a screening call.
type Options struct {
	// AlwaysSelect columns are kept, with their groups, regardless of their score.
	AlwaysSelect []int
	// MaxSupport is the largest support size the path will ask for; m may not be smaller.
	MaxSupport int
	// Workers bounds concurrent score computations. Values below 1 mean one per CPU.
	Workers int
}

// Ranking is the outcome of a screening pass.
type Ranking struct {
	// Scores holds the marginal utility of every group.
	Scores []float64
	// Order lists all groups by decreasing score, ties by lower index.
	Order []int
	// Keep is the sorted set of columns of the m retained groups.
	Keep []int
}

// Screen scores every column of d and keeps m of them.
//
// The Gaussian utility is the absolute weighted correlation between the column and the
// response; a group scores the root of the summed squared correlations of its columns.
// Other families use the loss decrease of the intercept-plus-group model over the null
// model, fitted with fitter. Always-selected groups are kept first.
func Screen(ctx context.Context, d *data.Data, fitter *linear.Fitter, m int, opts Options) (*Ranking, error) {
	p := d.P()
	groups := d.Groups
	g := groups.Len()
	if m <= 0 || m > g {
		return nil, errors.NewInvalidScreeningSizeError("screening.Screen", m, 1, g)
	}
	for _, j := range opts.AlwaysSelect {
		if j < 0 || j >= p {
			return nil, errors.NewValidationError("always_select", "index out of range", j)
		}
	}
	forced := groups.Cover(opts.AlwaysSelect)
	if m < len(forced) || m < opts.MaxSupport {
		need := len(forced)
		if opts.MaxSupport > need {
			need = opts.MaxSupport
		}
		return nil, errors.NewInvalidScreeningSizeError("screening.Screen", m, need, g)
	}

	var (
		scores []float64
		err    error
	)
	if d.Family.Kind() == family.Gaussian {
		scores, err = correlationScores(ctx, d, opts.Workers)
	} else {
		scores, err = fitScores(ctx, d, fitter, opts.Workers)
	}
	if err != nil {
		return nil, err
	}

	r := rank(scores, m, forced)
	r.Keep = groups.Columns(r.Keep)
	log.GetLoggerWithName("screening").Debug("screening finished",
		log.OperationKey, log.OperationScreen,
		log.FeaturesKey, p,
		log.ScreenedKey, len(r.Keep),
	)
	return r, nil
}

func correlationScores(ctx context.Context, d *data.Data, workers int) ([]float64, error) {
	cols, err := parallel.Map(ctx, d.P(), workers, func(_ context.Context, j int) (float64, error) {
		col := mat.Col(nil, j, d.X)
		c := stat.Correlation(col, d.Resp.Y, d.Resp.W)
		if math.IsNaN(c) {
			return 0, nil
		}
		return math.Abs(c), nil
	})
	if err != nil || d.Groups.Singleton() {
		return cols, err
	}
	out := make([]float64, d.Groups.Len())
	for i := range out {
		var ss float64
		for _, j := range d.Groups.Members(i) {
			ss += cols[j] * cols[j]
		}
		out[i] = math.Sqrt(ss)
	}
	return out, nil
}

func fitScores(ctx context.Context, d *data.Data, fitter *linear.Fitter, workers int) ([]float64, error) {
	pool := performance.NewPool(d.N() * 3)
	ws := pool.Get()
	null, err := fitter.Fit(linear.Problem{X: d.X, Resp: d.Resp, Workspace: ws})
	pool.Put(ws)
	if err != nil && !errors.IsRecoverable(err) {
		return nil, err
	}

	return parallel.Map(ctx, d.Groups.Len(), workers, func(_ context.Context, g int) (float64, error) {
		ws := pool.Get()
		defer pool.Put(ws)
		res, err := fitter.Fit(linear.Problem{X: d.X, Resp: d.Resp, Active: d.Groups.Members(g), Workspace: ws})
		if err != nil {
			switch errors.KindOf(err) {
			case errors.KindNonConvergence:
			case errors.KindSingularFit:
				return 0, nil
			default:
				return 0, err
			}
		}
		return math.Max(null.Loss-res.Loss, 0), nil
	})
}

// rank orders units by decreasing score with ties broken by lower index and keeps
// the always-selected units plus the best of the rest, m in total.
func rank(scores []float64, m int, always []int) *Ranking {
	p := len(scores)
	order := make([]int, p)
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	kept := make(map[int]bool, m)
	keep := make([]int, 0, m)
	for _, j := range always {
		if !kept[j] {
			kept[j] = true
			keep = append(keep, j)
		}
	}
	for _, j := range order {
		if len(keep) == m {
			break
		}
		if !kept[j] {
			kept[j] = true
			keep = append(keep, j)
		}
	}
	sort.Ints(keep)

	return &Ranking{Scores: scores, Order: order, Keep: keep}
}
