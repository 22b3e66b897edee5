// Package linear fits a loss family on a fixed active set of columns.
//
// Gaussian problems are one weighted least-squares solve. Binomial and Poisson problems use
// iteratively reweighted least squares with step halving. Cox problems use Newton's method
// on the Breslow partial likelihood through gonum/optimize. All least-squares systems are
// solved by QR decomposition; ill-conditioned systems are retried with a small ridge.
package linear

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/adaizjx/abess/family"
	"github.com/adaizjx/abess/performance"
	"github.com/adaizjx/abess/pkg/errors"
	"github.com/adaizjx/abess/pkg/log"
)

const (
	defaultMaxIter = 30
	defaultTol     = 1e-6

	// ridge retries after an ill-conditioned solve: 1e-8·trace/k, then ×100 each time
	ridgeSeed    = 1e-8
	ridgeGrowth  = 100
	ridgeRetries = 3

	maxHalvings = 12

	// systems with a larger estimated condition number are treated as singular
	maxCondition = 1e10
)

// Fitter fits one family with fixed iteration limits and ridge penalty.
// A Fitter is immutable and safe for concurrent use.
type Fitter struct {
	family  family.Family
	maxIter int
	tol     float64
	lambda  float64
	logger  log.Logger
}

// NewFitter returns a Fitter for fam.
func NewFitter(fam family.Family, opts ...Option) (*Fitter, error) {
	f := &Fitter{
		family:  fam,
		maxIter: defaultMaxIter,
		tol:     defaultTol,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.maxIter < 1 {
		return nil, errors.NewValidationError("fit_max_iter", "must be at least 1", f.maxIter)
	}
	if !(f.tol > 0) {
		return nil, errors.NewValidationError("fit_tol", "must be positive", f.tol)
	}
	if f.lambda < 0 || math.IsNaN(f.lambda) || math.IsInf(f.lambda, 0) {
		return nil, errors.NewValidationError("lambda", "must be finite and non-negative", f.lambda)
	}
	f.logger = log.GetLoggerWithName("linear").With(log.FamilyKey, fam.Kind().String())
	return f, nil
}

// WithPenalty returns a copy of f with ridge penalty lambda.
func (f *Fitter) WithPenalty(lambda float64) *Fitter {
	c := *f
	c.lambda = lambda
	return &c
}

// Family returns the loss family.
func (f *Fitter) Family() family.Family { return f.family }

// Lambda returns the ridge penalty.
func (f *Fitter) Lambda() float64 { return f.lambda }

// Problem is one fit: the columns Active of X against Resp.
type Problem struct {
	// X is the shared n×p working design matrix. It is never written.
	X    *mat.Dense
	Resp *family.Response
	// Active lists the columns of X in the model, sorted.
	Active []int

	// Init, when non-nil, is the starting coefficient vector over Active.
	Init          []float64
	InitIntercept float64

	// Workspace supplies scratch memory. It may be nil.
	Workspace *performance.Workspace
}

// Result is a fitted model over the active set.
type Result struct {
	Coef       []float64 // over Active
	Intercept  float64
	Eta        []float64 // linear predictor, length n
	Loss       float64   // family loss, unpenalized
	Objective  float64   // Loss + ½λ‖Coef‖²
	Iterations int
	Converged  bool
}

// Fit fits the problem.
//
// On hitting the iteration cap it returns the best iterate together with a NonConvergence
// error; callers that accept best-effort results check errors.IsRecoverable. A system
// that stays singular after ridge retries yields a SingularFit error and no result.
func (f *Fitter) Fit(p Problem) (res *Result, err error) {
	defer errors.Recover(&err, "Fitter.Fit")

	n, cols := p.X.Dims()
	if p.Resp.Len() != n {
		return nil, errors.NewDimensionError("Fitter.Fit", n, p.Resp.Len(), 0)
	}
	for _, j := range p.Active {
		if j < 0 || j >= cols {
			return nil, errors.NewDimensionError("Fitter.Fit", cols, j, 1)
		}
	}
	if p.Init != nil && len(p.Init) != len(p.Active) {
		return nil, errors.NewDimensionError("Fitter.Fit", len(p.Active), len(p.Init), 1)
	}

	switch f.family.Kind() {
	case family.Gaussian:
		return f.fitGaussian(p)
	case family.Cox:
		return f.fitCox(p)
	default:
		return f.fitIRLS(p)
	}
}

// Evaluate returns the loss and objective of the given coefficients without fitting.
// Iterations is zero and Converged is false.
func (f *Fitter) Evaluate(p Problem, b0 float64, beta []float64) (*Result, error) {
	n, cols := p.X.Dims()
	if p.Resp.Len() != n {
		return nil, errors.NewDimensionError("Fitter.Evaluate", n, p.Resp.Len(), 0)
	}
	if len(beta) != len(p.Active) {
		return nil, errors.NewDimensionError("Fitter.Evaluate", len(p.Active), len(beta), 1)
	}
	for _, j := range p.Active {
		if j < 0 || j >= cols {
			return nil, errors.NewDimensionError("Fitter.Evaluate", cols, j, 1)
		}
	}
	return f.evaluate(p, b0, beta), nil
}

func (f *Fitter) fitGaussian(p Problem) (*Result, error) {
	b0, beta, err := f.solveWLS(p, p.Resp.Y, p.Resp.W)
	if err != nil {
		return nil, err
	}
	res := f.evaluate(p, b0, beta)
	res.Iterations = 1
	res.Converged = true
	return res, nil
}

// fitIRLS runs Newton steps in the form of weighted least squares on the working response.
func (f *Fitter) fitIRLS(p Problem) (*Result, error) {
	k := len(p.Active)
	n := p.Resp.Len()

	beta := make([]float64, k)
	b0 := f.family.InitEta(p.Resp)
	if p.Init != nil {
		copy(beta, p.Init)
		b0 = p.InitIntercept
	}
	cur := f.evaluate(p, b0, beta)

	g := p.Workspace.Floats(n)
	h := p.Workspace.Floats(n)
	z := p.Workspace.Floats(n)

	for iter := 1; iter <= f.maxIter; iter++ {
		f.family.Derivatives(p.Resp, cur.Eta, g, h)
		for i := range z {
			z[i] = cur.Eta[i]
			if h[i] > 0 {
				z[i] -= g[i] / h[i]
			}
		}

		nb0, nbeta, err := f.solveWLS(p, z, h)
		if err != nil {
			return nil, err
		}
		next := f.evaluate(p, nb0, nbeta)

		// step halving toward the current iterate until the objective does not increase
		step := 1.0
		for halving := 0; next.Objective > cur.Objective && halving < maxHalvings; halving++ {
			step /= 2
			for j := range nbeta {
				nbeta[j] = cur.Coef[j] + step*(nbeta[j]-cur.Coef[j])
			}
			nb0 = cur.Intercept + step*(nb0-cur.Intercept)
			next = f.evaluate(p, nb0, nbeta)
		}
		if next.Objective > cur.Objective || math.IsNaN(next.Objective) {
			// no descent direction left at working precision
			cur.Iterations = iter
			cur.Converged = true
			return cur, nil
		}

		decrease := (cur.Objective - next.Objective) / math.Max(math.Abs(cur.Objective), 1)
		next.Iterations = iter
		cur = next
		if decrease < f.tol {
			cur.Converged = true
			return cur, nil
		}
	}

	f.logger.Debug("irls hit iteration cap",
		log.IterationKey, f.maxIter,
		log.LossKey, cur.Loss,
		log.SupportSizeKey, k,
	)
	return cur, errors.NewNonConvergenceError("IRLS", f.maxIter, "")
}

// evaluate builds a Result with η, loss and objective for (b0, beta).
func (f *Fitter) evaluate(p Problem, b0 float64, beta []float64) *Result {
	n := p.Resp.Len()
	eta := make([]float64, n)
	if !f.family.HasIntercept() {
		b0 = 0
	}
	for i := range eta {
		row := p.X.RawRowView(i)
		s := b0
		for c, j := range p.Active {
			s += row[j] * beta[c]
		}
		eta[i] = s
	}
	loss := f.family.Loss(p.Resp, eta)
	return &Result{
		Coef:      append([]float64(nil), beta...),
		Intercept: b0,
		Eta:       eta,
		Loss:      loss,
		Objective: loss + 0.5*f.lambda*floats.Dot(beta, beta),
	}
}

// solveWLS minimizes Σ h_i (z_i - b0 - x_iᵀβ)² + λ‖β‖² over the active columns by QR.
// Rows with zero weight drop out. When there are fewer informative rows than unknowns,
// or QR reports an ill-conditioned system, a ridge of 1e-8·trace/k is added and grown
// ×100 up to three times before giving up with SingularFit.
func (f *Fitter) solveWLS(p Problem, z, h []float64) (float64, []float64, error) {
	n := p.Resp.Len()
	k := len(p.Active)
	off := 0
	if f.family.HasIntercept() {
		off = 1
	}
	cols := k + off
	if cols == 0 {
		return 0, nil, nil
	}

	var trace float64
	informative := 0
	for i := 0; i < n; i++ {
		if h[i] <= 0 {
			continue
		}
		informative++
		row := p.X.RawRowView(i)
		for _, j := range p.Active {
			trace += h[i] * row[j] * row[j]
		}
	}
	if informative == 0 {
		return 0, make([]float64, k), nil
	}

	auto := 0.0
	if informative < cols && k > 0 {
		auto = ridgeFor(trace, k)
	}

	var lastCond float64
	for attempt := 0; attempt <= ridgeRetries; attempt++ {
		ridge := f.lambda + auto
		b0, beta, cond, ok := f.qrSolve(p, z, h, ridge)
		if ok {
			return b0, beta, nil
		}
		lastCond = cond
		if k == 0 {
			break
		}
		if auto == 0 {
			auto = ridgeFor(trace, k)
		} else {
			auto *= ridgeGrowth
		}
	}
	return 0, nil, errors.NewSingularFitError("Fitter.solveWLS", lastCond, f.lambda+auto)
}

func ridgeFor(trace float64, k int) float64 {
	r := ridgeSeed * trace / float64(k)
	if r <= 0 {
		r = ridgeSeed
	}
	return r
}

// qrSolve solves one augmented least-squares system. ok is false when QR reports an
// ill-conditioned system or the solution is not finite.
func (f *Fitter) qrSolve(p Problem, z, h []float64, ridge float64) (b0 float64, beta []float64, cond float64, ok bool) {
	n := p.Resp.Len()
	k := len(p.Active)
	off := 0
	if f.family.HasIntercept() {
		off = 1
	}
	cols := k + off
	extra := 0
	if ridge > 0 {
		extra = k
	}

	ws := p.Workspace
	A := ws.Dense(n+extra, cols)
	b := ws.Vec(n + extra)
	for i := 0; i < n; i++ {
		s := math.Sqrt(math.Max(h[i], 0))
		if s == 0 {
			continue
		}
		row := p.X.RawRowView(i)
		if off == 1 {
			A.Set(i, 0, s)
		}
		for c, j := range p.Active {
			A.Set(i, off+c, s*row[j])
		}
		b.SetVec(i, s*z[i])
	}
	if extra > 0 {
		sr := math.Sqrt(ridge)
		for c := 0; c < k; c++ {
			A.Set(n+c, off+c, sr)
		}
	}

	var qr mat.QR
	qr.Factorize(A)
	if c := qr.Cond(); c > maxCondition {
		return 0, nil, c, false
	}
	x := mat.NewVecDense(cols, nil)
	if err := qr.SolveVecTo(x, false, b); err != nil {
		var c mat.Condition
		if errors.As(err, &c) {
			cond = float64(c)
		}
		return 0, nil, cond, false
	}
	raw := x.RawVector().Data
	for _, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, nil, math.Inf(1), false
		}
	}
	if off == 1 {
		b0 = raw[0]
	}
	return b0, append([]float64(nil), raw[off:]...), 0, true
}
