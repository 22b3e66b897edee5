package abess

import (
	"context"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/adaizjx/abess/core/model"
	"github.com/adaizjx/abess/data"
	"github.com/adaizjx/abess/family"
	"github.com/adaizjx/abess/linear"
	"github.com/adaizjx/abess/metrics"
	"github.com/adaizjx/abess/path"
	"github.com/adaizjx/abess/pkg/errors"
	"github.com/adaizjx/abess/pkg/log"
	"github.com/adaizjx/abess/screening"
	"github.com/adaizjx/abess/splicing"
)

// Solver is a best-subset selection estimator. Fit may be called repeatedly; each call
// replaces the fitted model. A fitted Solver is safe for concurrent Predict calls.
type Solver struct {
	cfg    config
	state  *model.StateManager
	logger log.Logger

	fam    family.Family
	result *Result
}

var _ model.Regressor = (*Solver)(nil)

// New returns an unfitted Solver. Options are validated by Fit.
func New(opts ...Option) *Solver {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = log.GetLoggerWithName("abess")
	}
	return &Solver{
		cfg:    cfg,
		state:  model.NewStateManager(),
		logger: logger.With(log.FamilyKey, cfg.family.String()),
	}
}

// Fit selects the best subset for (X, y). Data options carry weights, column groups
// and, for Cox, the event status; the family and normalization come from the Solver
// options. With groups, support sizes count groups.
func (s *Solver) Fit(ctx context.Context, X mat.Matrix, y []float64, opts ...data.Option) (res *Result, err error) {
	defer errors.Recover(&err, "Solver.Fit")
	start := time.Now()
	cfg := s.cfg
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts = append(append([]data.Option(nil), opts...),
		data.WithFamily(cfg.family),
		data.WithNormalize(cfg.normalize),
	)
	d, err := data.New(X, y, opts...)
	if err != nil {
		return nil, err
	}
	n, p := d.N(), d.P()
	logger := s.logger.With(log.SamplesKey, n, log.FeaturesKey, p)

	for _, j := range cfg.alwaysSelect {
		if j < 0 || j >= p {
			return nil, errors.NewValidationError("always_select", "index out of range", j)
		}
	}
	always := append([]int(nil), cfg.alwaysSelect...)
	sort.Ints(always)

	// sizes and the screening size count groups
	nGroups := d.Groups.Len()
	pWork := nGroups
	if cfg.screeningSize != 0 {
		if cfg.screeningSize < 0 || cfg.screeningSize > nGroups {
			return nil, errors.NewInvalidScreeningSizeError("Solver.Fit", cfg.screeningSize, 1, nGroups)
		}
		pWork = cfg.screeningSize
	}
	sizes, sMin, sMax, err := s.supportSizes(n, pWork, len(d.Groups.Cover(always)))
	if err != nil {
		return nil, err
	}

	fitter, err := linear.NewFitter(d.Family, linear.WithMaxIter(cfg.fitMaxIter), linear.WithTol(cfg.fitTol))
	if err != nil {
		return nil, err
	}

	work := d
	var screened []int
	if cfg.screeningSize != 0 {
		ranking, err := screening.Screen(ctx, d, fitter, cfg.screeningSize, screening.Options{
			AlwaysSelect: always,
			MaxSupport:   sMax,
			Workers:      cfg.workers,
		})
		if err != nil {
			return nil, err
		}
		screened = ranking.Keep
		work = d.Columns(ranking.Keep)
		always = workingIndices(ranking.Keep, always)
	}

	splice := splicing.Config{
		Exchange:     cfg.exchange,
		MaxIter:      cfg.maxIter,
		Tau:          cfg.tau,
		AlwaysSelect: always,
		Workers:      cfg.workers,
	}
	if err := splice.Validate(work.P()); err != nil {
		return nil, err
	}
	newRunner := func(dd *data.Data) *path.Runner {
		return path.NewRunner(dd, fitter, splice, cfg.warmStart, cfg.workers)
	}

	cands, scores, err := s.runPath(ctx, d, work, newRunner, sizes, sMin, sMax)
	if err != nil {
		return nil, err
	}
	best, err := metrics.Select(scores, cands)
	if err != nil {
		return nil, err
	}

	null, err := fitter.Fit(linear.Problem{X: work.X, Resp: work.Resp})
	if err != nil && !errors.IsRecoverable(err) {
		return nil, err
	}

	res = &Result{Screened: screened, NullLoss: null.Loss}
	res.Path = make([]PathEntry, len(cands))
	for i, c := range cands {
		active, coef, b0 := restore(work, c)
		res.Path[i] = PathEntry{
			SupportSize: c.Size,
			Lambda:      c.Lambda,
			Score:       scores[i],
			TrainLoss:   c.TrainLoss,
			TestLoss:    c.TestLoss,
			Iterations:  c.Iterations,
			Converged:   c.Converged,
			Active:      active,
			Coef:        coef,
			Intercept:   b0,
		}
	}
	sel := cands[best]
	entry := res.Path[best]
	res.Active = entry.Active
	res.Coef = entry.Coef
	res.Intercept = entry.Intercept
	res.SupportSize = sel.Size
	res.Lambda = sel.Lambda
	res.TrainLoss = sel.TrainLoss
	res.TestLoss = sel.TestLoss
	res.Score = scores[best]
	res.Converged = sel.Converged
	for _, v := range []float64{res.Score, res.Intercept} {
		if err := errors.CheckScalar("Solver.Fit", v, 0); err != nil {
			return nil, err
		}
	}
	res.ActiveGroups = groupLabels(work, sel)
	res.Criteria = metrics.Report(d.Family.Kind(), sel.TrainLoss, n, nGroups, len(sel.Active))

	err = s.state.WithStateMut(func() error {
		s.fam = d.Family
		s.result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.state.SetFitted(p, n)

	logger.Info("fit finished",
		log.OperationKey, log.OperationFit,
		log.SupportSizeKey, res.SupportSize,
		log.LambdaKey, res.Lambda,
		log.CandidatesKey, len(cands),
		log.ScoreKey, res.Score,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

// supportSizes resolves the configured sizes against pWork working predictors.
func (s *Solver) supportSizes(n, pWork, nAlways int) (sizes []int, sMin, sMax int, err error) {
	cfg := s.cfg
	switch {
	case cfg.sizes != nil:
		sizes = append([]int(nil), cfg.sizes...)
		sort.Ints(sizes)
	case cfg.sizeMax > 0:
		for k := cfg.sizeMin; k <= cfg.sizeMax; k++ {
			sizes = append(sizes, k)
		}
	default:
		sizes = path.DefaultSizes(n, pWork, nAlways)
	}
	if len(sizes) == 0 {
		return nil, 0, 0, errors.NewEmptyPathError("Solver.Fit")
	}
	sMin, sMax = sizes[0], sizes[len(sizes)-1]
	if sMax > pWork {
		return nil, 0, 0, errors.NewInvalidScreeningSizeError("Solver.Fit", sMax, nAlways, pWork)
	}
	if sMin < nAlways {
		return nil, 0, 0, errors.NewInvalidSupportSizeError("Solver.Fit", sMin, nAlways, pWork)
	}
	return sizes, sMin, sMax, nil
}

// runPath fits the candidates and scores them by cross-validation or by the criterion.
func (s *Solver) runPath(ctx context.Context, d, work *data.Data, newRunner metrics.RunnerFunc, sizes []int, sMin, sMax int) ([]*path.Candidate, []float64, error) {
	cfg := s.cfg
	lambdas := cfg.lambdas
	if len(lambdas) == 0 {
		lambdas = []float64{0}
	}
	kind := d.Family.Kind()

	var (
		cands []*path.Candidate
		err   error
	)
	if cfg.cvFolds > 0 {
		folds, ferr := metrics.Split(work, cfg.cvFolds, cfg.cvSeed)
		if ferr != nil {
			return nil, nil, ferr
		}
		cv := &metrics.CV{Folds: folds, Runner: newRunner, Workers: cfg.workers}
		if cfg.pathType == PathGolden {
			for _, l := range lambdas {
				cs, gerr := cv.Golden(ctx, work, sMin, sMax, l)
				if gerr != nil {
					return nil, nil, gerr
				}
				cands = append(cands, cs...)
			}
		} else {
			cands, err = cv.Sequential(ctx, work, sizes, lambdas)
		}
		if err != nil {
			return nil, nil, err
		}
		scores := make([]float64, len(cands))
		for i, c := range cands {
			scores[i] = c.TestLoss
		}
		return cands, scores, nil
	}

	runner := newRunner(work)
	if cfg.pathType == PathGolden {
		score := func(_ context.Context, c *path.Candidate) (float64, error) {
			return cfg.criterion.Score(kind, c.TrainLoss, d.N(), d.Groups.Len(), len(c.Active)), nil
		}
		for _, l := range lambdas {
			cs, gerr := runner.Golden(ctx, sMin, sMax, l, score)
			if gerr != nil {
				return nil, nil, gerr
			}
			cands = append(cands, cs...)
		}
	} else {
		cands, err = runner.Sequential(ctx, sizes, lambdas)
		if err != nil {
			return nil, nil, err
		}
	}
	return cands, cfg.criterion.ScorePath(kind, d.N(), d.Groups.Len(), cands), nil
}

// restore maps a candidate to original indices and the original scale.
func restore(work *data.Data, c *path.Candidate) (active []int, coef []float64, intercept float64) {
	full := make([]float64, work.P())
	for k, j := range c.Active {
		full[j] = c.Coef[k]
	}
	coef, intercept = work.Norm.Coefficients(work.Expand(full), c.Intercept)
	active = make([]int, len(c.Active))
	for k, j := range c.Active {
		active[k] = work.Original(j)
	}
	sort.Ints(active)
	return active, coef, intercept
}

// groupLabels returns the sorted labels of the groups selected by c.
func groupLabels(work *data.Data, c *path.Candidate) []int {
	g := work.Groups
	sel := g.Cover(c.Active)
	out := make([]int, len(sel))
	for k, i := range sel {
		out[k] = g.Label(i)
	}
	sort.Ints(out)
	return out
}

func workingIndices(keep, original []int) []int {
	out := make([]int, 0, len(original))
	for _, j := range original {
		if k := sort.SearchInts(keep, j); k < len(keep) && keep[k] == j {
			out = append(out, k)
		}
	}
	return out
}

// Predict returns the mean response for each row of X: η for Gaussian, the probability
// for Binomial, the rate for Poisson and the relative risk exp(η) for Cox.
func (s *Solver) Predict(X mat.Matrix) (*mat.VecDense, error) {
	if err := s.state.RequireFitted("Solver", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.state.RequireFeatures("Solver.Predict", c); err != nil {
		return nil, err
	}

	out := mat.NewVecDense(r, nil)
	err := s.state.WithState(func() error {
		res := s.result
		for i := 0; i < r; i++ {
			eta := res.Intercept
			for _, j := range res.Active {
				eta += X.At(i, j) * res.Coef[j]
			}
			out.SetVec(i, s.fam.Mean(eta))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Score returns R² of the predicted mean response against y. It is not defined for Cox.
func (s *Solver) Score(X mat.Matrix, y []float64) (float64, error) {
	if err := s.state.RequireFitted("Solver", "Score"); err != nil {
		return 0, err
	}
	var kind family.Kind
	_ = s.state.WithState(func() error {
		kind = s.fam.Kind()
		return nil
	})
	if kind == family.Cox {
		return 0, errors.NewValidationError("family", "Score is not defined for Cox models", kind.String())
	}
	r, _ := X.Dims()
	if len(y) != r {
		return 0, errors.NewDimensionError("Solver.Score", r, len(y), 0)
	}
	pred, err := s.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(mat.NewVecDense(len(y), append([]float64(nil), y...)), pred)
}

// Coef returns the fitted coefficients on the original scale, nil before Fit.
func (s *Solver) Coef() []float64 {
	var out []float64
	_ = s.state.WithState(func() error {
		if s.result != nil {
			out = append([]float64(nil), s.result.Coef...)
		}
		return nil
	})
	return out
}

// Intercept returns the fitted intercept on the original scale.
func (s *Solver) Intercept() float64 {
	var b0 float64
	_ = s.state.WithState(func() error {
		if s.result != nil {
			b0 = s.result.Intercept
		}
		return nil
	})
	return b0
}

// Result returns the last fit result, nil before Fit.
func (s *Solver) Result() *Result {
	var res *Result
	_ = s.state.WithState(func() error {
		res = s.result
		return nil
	})
	return res
}
