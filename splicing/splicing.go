// Package splicing searches for the best active set of a fixed size.
//
// Starting from an initial set of k columns, each outer iteration ranks the active
// columns by the loss they would cost if dropped (backward sacrifice) and the inactive
// columns by the loss they would save if added (forward gain, one Newton step from the
// current fit). For c = 1..C it swaps the c weakest active columns for the c strongest
// inactive ones, refits every trial set and keeps the best trial when it lowers the
// objective by more than tau. The search stops when no trial improves enough.
//
// When the Data carries column groups the search runs over groups instead: a group's
// sacrifice and gain are the sums over its columns, and whole groups are swapped.
package splicing

import (
	"context"
	"math"
	"sort"

	"github.com/adaizjx/abess/core/parallel"
	"github.com/adaizjx/abess/data"
	"github.com/adaizjx/abess/linear"
	"github.com/adaizjx/abess/performance"
	"github.com/adaizjx/abess/pkg/errors"
	"github.com/adaizjx/abess/pkg/log"
)

// Warm is a starting point carried over from a neighbouring fit.
type Warm struct {
	// Active is a sorted set of working columns. Its size may differ from the target size
	// and groups it covers only partly are completed.
	Active []int
	// Coef holds the coefficients over Active. It may be nil.
	Coef      []float64
	Intercept float64
}

// Problem is one fixed-size search.
type Problem struct {
	Data   *data.Data
	Fitter *linear.Fitter
	// Size is the target support size k, counted in groups.
	Size int
	// Warm, when non-nil, seeds the initial active set.
	Warm *Warm
	// Pool supplies scratch memory for fits. It may be nil.
	Pool *performance.Pool
}

// Result is the final state of a search.
type Result struct {
	Active []int
	// Groups lists the selected groups, sorted.
	Groups    []int
	Coef      []float64 // over Active
	Intercept float64
	Eta       []float64
	Loss      float64
	Objective float64
	// Iterations counts outer splicing iterations.
	Iterations int
	// FitIterations is the iteration count of the final fit.
	FitIterations int
	// Exchanges counts accepted trials.
	Exchanges int
	// Converged is false when MaxIter was hit or the final fit did not converge.
	Converged bool
}

// Run searches for the best active set of size prob.Size.
//
// When cfg.MaxIter is reached the best state found is returned together with a
// NonConvergence error, which callers accept via errors.IsRecoverable.
func Run(ctx context.Context, cfg Config, prob Problem) (res *Result, err error) {
	defer errors.Recover(&err, "splicing.Run")

	d := prob.Data
	n, p := d.N(), d.P()
	k := prob.Size
	if err := cfg.Validate(p); err != nil {
		return nil, err
	}
	forced := cfg.ForcedGroups(d.Groups)
	if k < len(forced) || k > d.Groups.Len() {
		return nil, errors.NewInvalidSupportSizeError("splicing.Run", k, len(forced), d.Groups.Len())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pool := prob.Pool
	if pool == nil {
		pool = performance.NewPool(3 * n)
	}
	s := &searcher{
		cfg:    cfg,
		d:      d,
		groups: d.Groups,
		fitter: prob.Fitter,
		pool:   pool,
		k:      k,
		lambda: prob.Fitter.Lambda(),
		forced: forced,
		always: make(map[int]bool, len(forced)),
		logger: log.GetLoggerWithName("splicing").With(log.SupportSizeKey, k, log.LambdaKey, prob.Fitter.Lambda()),
	}
	for _, g := range forced {
		s.always[g] = true
	}

	cur, err := s.initial(prob.Warm)
	if err != nil {
		return nil, err
	}

	out := &Result{}
	converged := false
	for iter := 1; iter <= cfg.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out.Iterations = iter

		next, err := s.step(ctx, cur)
		if err != nil {
			return nil, err
		}
		if next == nil {
			converged = true
			break
		}
		out.Exchanges++
		s.logger.Debug("exchange accepted",
			log.OperationKey, log.OperationSplice,
			log.IterationKey, iter,
			log.ExchangeKey, next.exchanged,
			log.LossKey, next.fit.Loss,
		)
		cur = next
	}

	out.Active = cur.active
	out.Groups = cur.groups
	out.Coef = cur.fit.Coef
	out.Intercept = cur.fit.Intercept
	out.Eta = cur.fit.Eta
	out.Loss = cur.fit.Loss
	out.Objective = cur.fit.Objective
	out.FitIterations = cur.fit.Iterations
	out.Converged = converged && cur.fit.Converged
	if !converged {
		return out, errors.NewNonConvergenceError("splicing", cfg.MaxIter, "exchange still improving")
	}
	return out, nil
}

// columns below which gradients are computed on the calling goroutine
const gradientChunk = 512

type state struct {
	groups    []int // sorted
	active    []int // columns of groups, sorted
	fit       *linear.Result
	exchanged int
}

type searcher struct {
	cfg    Config
	d      *data.Data
	groups *data.Groups
	fitter *linear.Fitter
	pool   *performance.Pool
	k      int
	lambda float64
	forced []int
	always map[int]bool // forced groups
	logger log.Logger
}



// fit fits the sorted active set. A recoverable non-convergence keeps the result.
func (s *searcher) fit(active []int, init []float64, b0 float64) (*linear.Result, error) {
	ws := s.pool.Get()
	defer s.pool.Put(ws)
	res, err := s.fitter.Fit(linear.Problem{
		X:             s.d.X,
		Resp:          s.d.Resp,
		Active:        active,
		Init:          init,
		InitIntercept: b0,
		Workspace:     ws,
	})
	if err != nil && !errors.IsRecoverable(err) {
		return nil, err
	}
	return res, nil
}

// initial builds the starting state: the warm groups resized to k, or the forced
// groups topped up by forward gain at the model they span.
func (s *searcher) initial(warm *Warm) (*state, error) {
	var (
		groups []int
		coef   []float64
		b0     float64
	)
	if warm != nil {
		groups = s.groups.Cover(warm.Active)
		groups = union(groups, s.forced)
		b0 = warm.Intercept
		cols := s.groups.Columns(groups)
		coef = make([]float64, len(cols))
		if len(warm.Coef) == len(warm.Active) {
			for c, j := range cols {
				if w := indexOf(warm.Active, j); w >= 0 {
					coef[c] = warm.Coef[w]
				}
			}
		}
	} else {
		groups = append([]int(nil), s.forced...)
	}

	base, err := s.seed(groups, coef, b0)
	if err != nil {
		return nil, err
	}
	if len(groups) == s.k {
		if warm == nil || base.fit.Iterations > 0 {
			return base, nil
		}
		return s.refit(base, base.fit)
	}

	dj, hjj := s.gradients(base.fit.Eta)
	if len(groups) > s.k {
		// trim the weakest non-forced groups
		cands := s.removable(base.groups)
		back := s.backward(base, hjj)
		sort.SliceStable(cands, func(a, b int) bool { return back[cands[a]] < back[cands[b]] })
		drop := cands[:len(base.groups)-s.k]
		next, init := s.exchange(base, drop, nil)
		res, err := s.fit(next.active, init, base.fit.Intercept)
		if err != nil {
			return nil, err
		}
		next.fit = res
		return next, nil
	}

	gain := s.forward(dj, hjj)
	out := s.inactive(base.groups)
	sort.SliceStable(out, func(a, b int) bool { return gain[out[a]] > gain[out[b]] })
	next, init := s.exchange(base, nil, out[:s.k-len(base.groups)])
	res, err := s.fit(next.active, init, base.fit.Intercept)
	if err != nil {
		return nil, err
	}
	next.fit = res
	return next, nil
}

// seed evaluates the starting groups. Without warm coefficients they are fitted; with
// them the warm coefficients are evaluated as given and Iterations is left at zero.
func (s *searcher) seed(groups []int, coef []float64, b0 float64) (*state, error) {
	active := s.groups.Columns(groups)
	if coef == nil {
		res, err := s.fit(active, nil, 0)
		if err != nil {
			return nil, err
		}
		return &state{groups: groups, active: active, fit: res}, nil
	}
	res, err := s.fitter.Evaluate(linear.Problem{
		X:      s.d.X,
		Resp:   s.d.Resp,
		Active: active,
	}, b0, coef)
	if err != nil {
		return nil, err
	}
	return &state{groups: groups, active: active, fit: res}, nil
}

func (s *searcher) refit(st *state, from *linear.Result) (*state, error) {
	res, err := s.fit(st.active, from.Coef, from.Intercept)
	if err != nil {
		return nil, err
	}
	return &state{groups: st.groups, active: st.active, fit: res}, nil
}

// step runs one outer iteration. It returns nil when no trial improves enough.
func (s *searcher) step(ctx context.Context, cur *state) (*state, error) {
	in := s.removable(cur.groups)
	out := s.inactive(cur.groups)
	c := s.cfg.Exchange
	if len(in) < c {
		c = len(in)
	}
	if len(out) < c {
		c = len(out)
	}
	if c == 0 {
		return nil, nil
	}

	dj, hjj := s.gradients(cur.fit.Eta)
	back := s.backward(cur, hjj)
	gain := s.forward(dj, hjj)
	sort.SliceStable(in, func(a, b int) bool { return back[in[a]] < back[in[b]] })
	sort.SliceStable(out, func(a, b int) bool { return gain[out[a]] > gain[out[b]] })

	trials, err := parallel.Map(ctx, c, s.cfg.Workers, func(_ context.Context, t int) (*state, error) {
		next, init := s.exchange(cur, in[:t+1], out[:t+1])
		res, err := s.fit(next.active, init, cur.fit.Intercept)
		if err != nil {
			if errors.KindOf(err) == errors.KindSingularFit {
				return nil, nil
			}
			return nil, err
		}
		next.fit = res
		next.exchanged = t + 1
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	var best *state
	for _, t := range trials {
		if t == nil || math.IsNaN(t.fit.Objective) {
			continue
		}
		if best == nil || t.fit.Objective < best.fit.Objective {
			best = t
		}
	}
	if best == nil {
		return nil, nil
	}
	tau := s.cfg.threshold(s.k, s.d.N(), s.groups.Len(), cur.fit.Objective)
	if best.fit.Objective < cur.fit.Objective-tau {
		return best, nil
	}
	return nil, nil
}

// gradients returns d_j = -x_jᵀg and H_jj = Σ h_i x_ij² at eta for every column.
func (s *searcher) gradients(eta []float64) (dj, hjj []float64) {
	n, p := s.d.N(), s.d.P()
	ws := s.pool.Get()
	defer s.pool.Put(ws)
	g := ws.Floats(n)
	h := ws.Floats(n)
	s.fitter.Family().Derivatives(s.d.Resp, eta, g, h)

	dj = make([]float64, p)
	hjj = make([]float64, p)
	parallel.ParallelizeWithThreshold(p, gradientChunk, func(start, end int) {
		for i := 0; i < n; i++ {
			row := s.d.X.RawRowView(i)[start:end]
			gi, hi := g[i], h[i]
			for c, x := range row {
				dj[start+c] -= gi * x
				hjj[start+c] += hi * x * x
			}
		}
	})
	return dj, hjj
}

// backward returns the sacrifice Σ ½(H_jj+λ)β_j² over each active group's columns,
// indexed by group.
func (s *searcher) backward(st *state, hjj []float64) map[int]float64 {
	out := make(map[int]float64, len(st.groups))
	for c, j := range st.active {
		b := st.fit.Coef[c]
		out[s.groups.Of(j)] += 0.5 * (hjj[j] + s.lambda) * b * b
	}
	return out
}

// forward returns the gain Σ ½d_j²/(H_jj+λ) over each group's columns, indexed by group.
func (s *searcher) forward(dj, hjj []float64) []float64 {
	out := make([]float64, s.groups.Len())
	for j := range dj {
		den := hjj[j] + s.lambda
		if den <= 0 {
			continue
		}
		out[s.groups.Of(j)] += 0.5 * dj[j] * dj[j] / den
	}
	return out
}

// removable lists the active groups that may be swapped out.
func (s *searcher) removable(groups []int) []int {
	out := make([]int, 0, len(groups))
	for _, g := range groups {
		if !s.always[g] {
			out = append(out, g)
		}
	}
	return out
}

func (s *searcher) inactive(groups []int) []int {
	in := make(map[int]bool, len(groups))
	for _, g := range groups {
		in[g] = true
	}
	out := make([]int, 0, s.groups.Len()-len(groups))
	for g := 0; g < s.groups.Len(); g++ {
		if !in[g] {
			out = append(out, g)
		}
	}
	return out
}

// exchange swaps the groups drop for add and returns the trial state, without a fit,
// and its starting coefficients over the trial columns.
func (s *searcher) exchange(cur *state, drop, add []int) (*state, []float64) {
	dropped := make(map[int]bool, len(drop))
	for _, g := range drop {
		dropped[g] = true
	}
	groups := make([]int, 0, len(cur.groups)+len(add))
	for _, g := range cur.groups {
		if !dropped[g] {
			groups = append(groups, g)
		}
	}
	groups = append(groups, add...)
	sort.Ints(groups)

	active := make([]int, 0, len(cur.active))
	init := make([]float64, 0, len(cur.active))
	for c, j := range cur.active {
		if !dropped[s.groups.Of(j)] {
			active = append(active, j)
			init = append(init, cur.fit.Coef[c])
		}
	}
	for _, g := range add {
		for _, j := range s.groups.Members(g) {
			active = append(active, j)
			init = append(init, 0)
		}
	}
	sortTogether(active, init)
	return &state{groups: groups, active: active}, init
}

// union merges two sorted sets.
func union(a, b []int) []int {
	out := append([]int(nil), a...)
	for _, v := range b {
		if indexOf(out, v) < 0 {
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

func sortTogether(idx []int, vals []float64) {
	sort.Sort(pairs{idx, vals})
}

type pairs struct {
	idx  []int
	vals []float64
}

func (p pairs) Len() int           { return len(p.idx) }
func (p pairs) Less(a, b int) bool { return p.idx[a] < p.idx[b] }
func (p pairs) Swap(a, b int) {
	p.idx[a], p.idx[b] = p.idx[b], p.idx[a]
	p.vals[a], p.vals[b] = p.vals[b], p.vals[a]
}

func indexOf(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
