// Package path fits one splicing model per (support size, lambda) pair.
//
// A Runner walks either a full grid (Sequential) or a golden-section search over the
// support size (Golden). With warm start on, each entry starts from the previous one
// and entries are fitted in order; otherwise entries are independent and run concurrently.
package path

import (
	"context"
	"math"
	"sort"

	"github.com/adaizjx/abess/data"
	"github.com/adaizjx/abess/linear"
	"github.com/adaizjx/abess/performance"
	"github.com/adaizjx/abess/pkg/errors"
	"github.com/adaizjx/abess/pkg/log"
	"github.com/adaizjx/abess/splicing"
)

// Candidate is the model fitted for one (size, lambda) entry. It is not modified after
// the path returns.
type Candidate struct {
	Size      int
	Lambda    float64
	Active    []int     // working columns, sorted
	Coef      []float64 // over Active, normalized scale
	Intercept float64
	Eta       []float64
	TrainLoss float64
	Objective float64
	// Iterations counts outer splicing iterations.
	Iterations int
	Converged  bool
	// TestLoss is the mean held-out loss under cross-validation, else NaN.
	TestLoss float64
}

// Warm returns the candidate as a warm start for a neighbouring entry.
func (c *Candidate) Warm() *splicing.Warm {
	return &splicing.Warm{Active: c.Active, Coef: c.Coef, Intercept: c.Intercept}
}

// Runner fits path entries on one Data.
type Runner struct {
	Data *data.Data
	// Fitter is the base fitter; each entry uses a copy with the entry's lambda.
	Fitter *linear.Fitter
	Config splicing.Config
	// WarmStart chains each entry to the previous one.
	WarmStart bool
	// Workers bounds concurrent entries when WarmStart is off.
	Workers int

	// shared scratch memory; nil lets every entry allocate its own
	pool *performance.Pool
}

// NewRunner returns a Runner with a shared scratch pool.
func NewRunner(d *data.Data, fitter *linear.Fitter, cfg splicing.Config, warmStart bool, workers int) *Runner {
	return &Runner{
		Data:      d,
		Fitter:    fitter,
		Config:    cfg,
		WarmStart: warmStart,
		Workers:   workers,
		pool:      performance.NewPool(3 * d.N()),
	}
}

// Fit fits a single entry. A NonConvergence outcome yields a flagged candidate and a warning,
// not an error.
func (r *Runner) Fit(ctx context.Context, size int, lambda float64, warm *splicing.Warm) (*Candidate, error) {
	res, err := splicing.Run(ctx, r.Config, splicing.Problem{
		Data:   r.Data,
		Fitter: r.Fitter.WithPenalty(lambda),
		Size:   size,
		Warm:   warm,
		Pool:   r.pool,
	})
	if err != nil {
		if !errors.IsRecoverable(err) {
			return nil, err
		}
		errors.Warn(err)
	}

	return &Candidate{
		Size:       size,
		Lambda:     lambda,
		Active:     res.Active,
		Coef:       res.Coef,
		Intercept:  res.Intercept,
		Eta:        res.Eta,
		TrainLoss:  res.Loss,
		Objective:  res.Objective,
		Iterations: res.Iterations,
		Converged:  res.Converged,
		TestLoss:   math.NaN(),
	}, nil
}

// DefaultSizes returns 1..min(p, max(1, ⌊n/log n⌋)), raised so that no size is below
// the number of always-selected groups. p counts groups.
func DefaultSizes(n, p, always int) []int {
	hi := 1
	if n > 1 {
		hi = int(math.Floor(float64(n) / math.Log(float64(n))))
	}
	if hi < 1 {
		hi = 1
	}
	if hi > p {
		hi = p
	}
	lo := 1
	if always > lo {
		lo = always
	}
	if hi < lo {
		hi = lo
	}
	sizes := make([]int, 0, hi-lo+1)
	for s := lo; s <= hi; s++ {
		sizes = append(sizes, s)
	}
	return sizes
}

// checkSizes validates and returns the sorted distinct sizes, which count groups.
func (r *Runner) checkSizes(op string, sizes []int) ([]int, error) {
	if len(sizes) == 0 {
		return nil, errors.NewEmptyPathError(op)
	}
	p := r.Data.Groups.Len()
	lo := len(r.Config.ForcedGroups(r.Data.Groups))
	out := append([]int(nil), sizes...)
	sort.Ints(out)
	uniq := out[:0]
	for i, s := range out {
		if s < lo || s > p {
			return nil, errors.NewInvalidScreeningSizeError(op, s, lo, p)
		}
		if i == 0 || s != out[i-1] {
			uniq = append(uniq, s)
		}
	}
	return uniq, nil
}

func checkLambdas(lambdas []float64) ([]float64, error) {
	if len(lambdas) == 0 {
		return []float64{0}, nil
	}
	for _, l := range lambdas {
		if l < 0 || math.IsNaN(l) || math.IsInf(l, 0) {
			return nil, errors.NewValidationError("lambda", "must be finite and non-negative", l)
		}
	}
	return lambdas, nil
}

func (r *Runner) logger() log.Logger {
	return log.GetLoggerWithName("path").With(
		log.SamplesKey, r.Data.N(),
		log.FeaturesKey, r.Data.P(),
	)
}
