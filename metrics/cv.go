package metrics

import (
	"context"
	"math/rand/v2"
	"sort"

	"github.com/adaizjx/abess/core/parallel"
	"github.com/adaizjx/abess/data"
	"github.com/adaizjx/abess/family"
	"github.com/adaizjx/abess/path"
	"github.com/adaizjx/abess/pkg/errors"
	"github.com/adaizjx/abess/pkg/log"
	"github.com/adaizjx/abess/splicing"
)

// Fold is one train/test split. Both index lists are sorted.
type Fold struct {
	Train []int
	Test  []int
}

// KFold splits n samples into k folds of near-equal size after a seeded shuffle.
// The same (n, k, seed) always yields the same folds.
func KFold(n, k int, seed uint64) ([]Fold, error) {
	if err := checkFolds(n, k); err != nil {
		return nil, err
	}
	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	assign := make([]int, n)
	for pos, i := range perm {
		assign[i] = pos % k
	}
	return buildFolds(assign, k), nil
}

// StratifiedKFold splits samples so that every distinct label value is spread evenly
// over the k folds.
func StratifiedKFold(labels []float64, k int, seed uint64) ([]Fold, error) {
	n := len(labels)
	if err := checkFolds(n, k); err != nil {
		return nil, err
	}
	groups := make(map[float64][]int)
	for i, v := range labels {
		groups[v] = append(groups[v], i)
	}
	keys := make([]float64, 0, len(groups))
	for v := range groups {
		keys = append(keys, v)
	}
	sort.Float64s(keys)

	rng := rand.New(rand.NewPCG(seed, seed))
	assign := make([]int, n)
	next := 0
	for _, v := range keys {
		idx := groups[v]
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		for _, i := range idx {
			assign[i] = next % k
			next++
		}
	}
	return buildFolds(assign, k), nil
}

// Split returns the folds for d: stratified by class for Binomial, by event status for
// Cox, plain otherwise.
func Split(d *data.Data, k int, seed uint64) ([]Fold, error) {
	switch d.Family.Kind() {
	case family.Binomial:
		return StratifiedKFold(d.Resp.Y, k, seed)
	case family.Cox:
		return StratifiedKFold(d.Resp.Status, k, seed)
	default:
		return KFold(d.N(), k, seed)
	}
}

func checkFolds(n, k int) error {
	if k < 2 {
		return errors.NewValidationError("cv_folds", "must be at least 2", k)
	}
	if k > n {
		return errors.NewValidationError("cv_folds", "must not exceed the number of samples", k)
	}
	return nil
}

func buildFolds(assign []int, k int) []Fold {
	folds := make([]Fold, k)
	for i, f := range assign {
		for j := range folds {
			if j == f {
				folds[j].Test = append(folds[j].Test, i)
			} else {
				folds[j].Train = append(folds[j].Train, i)
			}
		}
	}
	return folds
}

// HeldOutLoss returns the family loss of c on test divided by the test weight sum, or
// zero when every test weight is zero.
func HeldOutLoss(test *data.Data, c *path.Candidate) float64 {
	n := test.N()
	eta := make([]float64, n)
	for i := 0; i < n; i++ {
		row := test.X.RawRowView(i)
		s := c.Intercept
		for k, j := range c.Active {
			s += row[j] * c.Coef[k]
		}
		eta[i] = s
	}
	return errors.SafeDivide(test.Family.Loss(test.Resp, eta), test.Resp.SumW())
}

// RunnerFunc builds a path runner over one Data.
type RunnerFunc func(d *data.Data) *path.Runner

// CV scores path entries by cross-validated held-out loss.
type CV struct {
	Folds []Fold
	// Runner builds the runner for a training split and for the full data.
	Runner RunnerFunc
	// Workers bounds concurrent folds and refits.
	Workers int
}

type foldResult struct {
	cands  []*path.Candidate
	losses []float64
}

// Sequential runs the sequential path on every fold, averages the held-out loss of each
// (size, lambda) entry over the folds and refits every entry on the full data starting
// from its fold-averaged coefficients. The returned candidates carry TestLoss.
func (cv *CV) Sequential(ctx context.Context, d *data.Data, sizes []int, lambdas []float64) ([]*path.Candidate, error) {
	folds, err := cv.runFolds(ctx, d, func(ctx context.Context, train *data.Data) ([]*path.Candidate, error) {
		return cv.Runner(train).Sequential(ctx, sizes, lambdas)
	})
	if err != nil {
		return nil, err
	}

	entries := len(folds[0].cands)
	for _, f := range folds {
		if len(f.cands) != entries {
			return nil, errors.NewDimensionError("CV.Sequential", entries, len(f.cands), 0)
		}
	}

	full := cv.Runner(d)
	return parallel.Map(ctx, entries, cv.Workers, func(ctx context.Context, e int) (*path.Candidate, error) {
		var testLoss float64
		fc := make([]*path.Candidate, len(folds))
		for f, fr := range folds {
			testLoss += fr.losses[e]
			fc[f] = fr.cands[e]
		}
		ref := fc[0]
		c, err := full.Fit(ctx, ref.Size, ref.Lambda, averageWarm(fc))
		if err != nil {
			return nil, err
		}
		c.TestLoss = testLoss / float64(len(folds))
		return c, nil
	})
}

// Golden runs a golden-section search over support size on the full data, scoring each
// probed size by its cross-validated held-out loss.
func (cv *CV) Golden(ctx context.Context, d *data.Data, sMin, sMax int, lambda float64) ([]*path.Candidate, error) {
	score := func(ctx context.Context, c *path.Candidate) (float64, error) {
		folds, err := cv.runFolds(ctx, d, func(ctx context.Context, train *data.Data) ([]*path.Candidate, error) {
			fc, err := cv.Runner(train).Fit(ctx, c.Size, c.Lambda, nil)
			if err != nil {
				return nil, err
			}
			return []*path.Candidate{fc}, nil
		})
		if err != nil {
			return 0, err
		}
		var loss float64
		for _, f := range folds {
			loss += f.losses[0]
		}
		c.TestLoss = loss / float64(len(folds))
		return c.TestLoss, nil
	}
	return cv.Runner(d).Golden(ctx, sMin, sMax, lambda, score)
}

// runFolds fits every fold concurrently and evaluates each candidate on the held-out rows.
func (cv *CV) runFolds(ctx context.Context, d *data.Data, fit func(context.Context, *data.Data) ([]*path.Candidate, error)) ([]foldResult, error) {
	if len(cv.Folds) < 2 {
		return nil, errors.NewValidationError("cv_folds", "must be at least 2", len(cv.Folds))
	}
	logger := log.GetLoggerWithName("metrics")
	return parallel.Map(ctx, len(cv.Folds), cv.Workers, func(ctx context.Context, f int) (foldResult, error) {
		fold := cv.Folds[f]
		train, test := d.Rows(fold.Train), d.Rows(fold.Test)
		cands, err := fit(ctx, train)
		if err != nil {
			return foldResult{}, errors.Wrapf(err, "fold %d", f)
		}
		losses := make([]float64, len(cands))
		for i, c := range cands {
			losses[i] = HeldOutLoss(test, c)
		}
		logger.Debug("fold finished",
			log.PhaseKey, log.PhaseValidation,
			log.FoldKey, f,
			log.CandidatesKey, len(cands),
		)
		return foldResult{cands: cands, losses: losses}, nil
	})
}

// averageWarm averages fold coefficients over the union of their active sets.
func averageWarm(cands []*path.Candidate) *splicing.Warm {
	sum := make(map[int]float64)
	var b0 float64
	for _, c := range cands {
		b0 += c.Intercept
		for k, j := range c.Active {
			sum[j] += c.Coef[k]
		}
	}
	active := make([]int, 0, len(sum))
	for j := range sum {
		active = append(active, j)
	}
	sort.Ints(active)
	nf := float64(len(cands))
	coef := make([]float64, len(active))
	for k, j := range active {
		coef[k] = sum[j] / nf
	}
	return &splicing.Warm{Active: active, Coef: coef, Intercept: b0 / nf}
}
