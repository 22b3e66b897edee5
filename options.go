package abess

import (
	"math"

	"github.com/adaizjx/abess/family"
	"github.com/adaizjx/abess/metrics"
	"github.com/adaizjx/abess/pkg/errors"
	"github.com/adaizjx/abess/pkg/log"
	"github.com/adaizjx/abess/splicing"
)

// PathType selects how support sizes are searched.
type PathType int

const (
	// PathSequential fits every support size.
	PathSequential PathType = iota
	// PathGolden runs a golden-section search over the support-size range.
	PathGolden
)

// String implements fmt.Stringer.
func (t PathType) String() string {
	if t == PathGolden {
		return "golden"
	}
	return "sequential"
}

// Option configures a Solver.
type Option func(*config)

type config struct {
	family family.Kind

	sizes    []int
	sizeMin  int
	sizeMax  int
	lambdas  []float64
	pathType PathType

	criterion metrics.Criterion
	cvFolds   int
	cvSeed    uint64

	screeningSize int
	alwaysSelect  []int

	exchange int
	maxIter  int
	tau      float64

	fitMaxIter int
	fitTol     float64

	warmStart bool
	normalize bool
	workers   int
	logger    log.Logger
}

func defaultConfig() config {
	return config{
		family:     family.Gaussian,
		pathType:   PathSequential,
		criterion:  metrics.NewCriterion(metrics.GIC),
		exchange:   splicing.DefaultExchange,
		maxIter:    splicing.DefaultMaxIter,
		fitMaxIter: 30,
		fitTol:     1e-6,
		warmStart:  true,
		normalize:  true,
		workers:    1,
	}
}

func (c *config) validate() error {
	if c.family < family.Gaussian || c.family > family.Cox {
		return errors.NewValidationError("family", "unknown family", int(c.family))
	}
	if err := c.criterion.Validate(); err != nil {
		return err
	}
	if c.sizes != nil && (c.sizeMin != 0 || c.sizeMax != 0) {
		return errors.NewValidationError("support_size", "sizes and range are exclusive", c.sizes)
	}
	for _, s := range c.sizes {
		if s < 0 {
			return errors.NewValidationError("support_size", "must be non-negative", s)
		}
	}
	if c.sizeMin < 0 || c.sizeMax < c.sizeMin {
		return errors.NewValidationError("support_range", "need 0 <= min <= max", []int{c.sizeMin, c.sizeMax})
	}
	for _, l := range c.lambdas {
		if l < 0 || math.IsNaN(l) || math.IsInf(l, 0) {
			return errors.NewValidationError("lambda", "must be finite and non-negative", l)
		}
	}
	if c.pathType != PathSequential && c.pathType != PathGolden {
		return errors.NewValidationError("path_type", "unknown path type", int(c.pathType))
	}
	if c.cvFolds == 1 || c.cvFolds < 0 {
		return errors.NewValidationError("cv_folds", "must be 0 (off) or at least 2", c.cvFolds)
	}
	if c.workers < 0 {
		return errors.NewValidationError("workers", "must be non-negative", c.workers)
	}
	return nil
}

// WithFamily sets the loss family. Default Gaussian.
func WithFamily(kind family.Kind) Option {
	return func(c *config) {
		c.family = kind
	}
}

// WithSupportSizes sets the support sizes to fit.
func WithSupportSizes(sizes ...int) Option {
	return func(c *config) {
		c.sizes = append([]int(nil), sizes...)
	}
}

// WithSupportRange sets the support sizes to lo..hi.
func WithSupportRange(lo, hi int) Option {
	return func(c *config) {
		c.sizeMin, c.sizeMax = lo, hi
	}
}

// WithLambdas sets the ridge penalties crossed with the support sizes. Default {0}.
func WithLambdas(lambdas ...float64) Option {
	return func(c *config) {
		c.lambdas = append([]float64(nil), lambdas...)
	}
}

// WithPath selects sequential or golden-section search.
func WithPath(t PathType) Option {
	return func(c *config) {
		c.pathType = t
	}
}

// WithIC sets the information criterion. Default GIC.
func WithIC(t metrics.CriterionType) Option {
	return func(c *config) {
		c.criterion.Type = t
	}
}

// WithICCoef sets the multiplier on the criterion penalty. Default 1.
func WithICCoef(coef float64) Option {
	return func(c *config) {
		c.criterion.Coef = coef
	}
}

// WithEBICGamma sets the EBIC weight on log C(p, k). Default 0.5.
func WithEBICGamma(gamma float64) Option {
	return func(c *config) {
		c.criterion.Gamma = gamma
	}
}

// WithCV selects models by K-fold cross-validation with a seeded split.
// folds == 0 turns cross-validation off.
func WithCV(folds int, seed uint64) Option {
	return func(c *config) {
		c.cvFolds = folds
		c.cvSeed = seed
	}
}

// WithScreeningSize keeps only the m predictors, or groups of predictors, with the
// largest marginal utility. Zero disables screening.
func WithScreeningSize(m int) Option {
	return func(c *config) {
		c.screeningSize = m
	}
}

// WithAlwaysSelect forces the given original predictor indices into every model.
func WithAlwaysSelect(idx ...int) Option {
	return func(c *config) {
		c.alwaysSelect = append([]int(nil), idx...)
	}
}

// WithExchange caps the number of predictors swapped per splicing trial. Default 5.
func WithExchange(n int) Option {
	return func(c *config) {
		c.exchange = n
	}
}

// WithMaxIter caps splicing iterations per support size. Default 20.
func WithMaxIter(n int) Option {
	return func(c *config) {
		c.maxIter = n
	}
}

// WithTau sets the loss decrease a splicing exchange must exceed.
// Zero selects 0.01·k·log p·log log n.
func WithTau(tau float64) Option {
	return func(c *config) {
		c.tau = tau
	}
}

// WithFitMaxIter caps IRLS and Newton iterations of each fit. Default 30.
func WithFitMaxIter(n int) Option {
	return func(c *config) {
		c.fitMaxIter = n
	}
}

// WithFitTol sets the relative convergence tolerance of each fit. Default 1e-6.
func WithFitTol(tol float64) Option {
	return func(c *config) {
		c.fitTol = tol
	}
}

// WithWarmStart toggles warm starts between neighbouring path entries. Default on.
func WithWarmStart(on bool) Option {
	return func(c *config) {
		c.warmStart = on
	}
}

// WithNormalize toggles predictor normalization. Default on.
func WithNormalize(on bool) Option {
	return func(c *config) {
		c.normalize = on
	}
}

// WithWorkers bounds the goroutines used for folds, path entries, splicing trials and
// screening. Zero means one per CPU. Default 1.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithLogger sets the logger. Default log.GetLoggerWithName("abess").
func WithLogger(l log.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
