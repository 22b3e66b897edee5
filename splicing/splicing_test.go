package splicing

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/adaizjx/abess/data"
	"github.com/adaizjx/abess/family"
	"github.com/adaizjx/abess/internal/synth"
	"github.com/adaizjx/abess/linear"
	"github.com/adaizjx/abess/pkg/errors"
)

var support = []int{2, 7, 11}

func problem(t *testing.T, kind family.Kind, coef []float64) Problem {
	t.Helper()
	gen := synth.Generate(kind, synth.Config{
		N: 400, P: 20, Support: support, Coef: coef,
		Noise: 0.5, Rho: 0.3, Seed: 5,
	})
	opts := []data.Option{data.WithFamily(kind)}
	if gen.Status != nil {
		opts = append(opts, data.WithStatus(gen.Status))
	}
	d, err := data.New(gen.X, gen.Y, opts...)
	require.NoError(t, err)
	f, err := linear.NewFitter(d.Family)
	require.NoError(t, err)
	return Problem{Data: d, Fitter: f, Size: 3}
}

func TestRunRecoversSupport(t *testing.T) {
	tests := []struct {
		kind family.Kind
		coef []float64
	}{
		{family.Gaussian, []float64{3, -2, 2}},
		{family.Binomial, []float64{2, -2, 2}},
		{family.Poisson, []float64{0.6, -0.6, 0.6}},
		{family.Cox, []float64{1, -1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			prob := problem(t, tt.kind, tt.coef)
			res, err := Run(context.Background(), DefaultConfig(), prob)
			require.NoError(t, err)
			assert.Equal(t, support, res.Active)
			assert.Len(t, res.Coef, 3)
			assert.Len(t, res.Eta, prob.Data.N())
			assert.True(t, res.Converged)
			assert.GreaterOrEqual(t, res.Iterations, 1)
		})
	}
}

func TestRunRecoversFromBadWarmStart(t *testing.T) {
	prob := problem(t, family.Gaussian, []float64{3, -2, 2})
	prob.Warm = &Warm{Active: []int{0, 1, 4}}

	res, err := Run(context.Background(), DefaultConfig(), prob)
	require.NoError(t, err)
	assert.Equal(t, support, res.Active)
	assert.Positive(t, res.Exchanges)
}

func TestRunResizesWarmStart(t *testing.T) {
	prob := problem(t, family.Gaussian, []float64{3, -2, 2})

	t.Run("trim", func(t *testing.T) {
		p := prob
		p.Warm = &Warm{Active: []int{0, 2, 5, 7, 11}, Coef: []float64{0.01, 3, 0.02, -2, 2}}
		res, err := Run(context.Background(), DefaultConfig(), p)
		require.NoError(t, err)
		assert.Equal(t, support, res.Active)
	})

	t.Run("top up", func(t *testing.T) {
		p := prob
		p.Warm = &Warm{Active: []int{7}}
		res, err := Run(context.Background(), DefaultConfig(), p)
		require.NoError(t, err)
		assert.Equal(t, support, res.Active)
	})
}

func TestRunEdgeSizes(t *testing.T) {
	prob := problem(t, family.Gaussian, []float64{3, -2, 2})

	t.Run("empty", func(t *testing.T) {
		p := prob
		p.Size = 0
		res, err := Run(context.Background(), DefaultConfig(), p)
		require.NoError(t, err)
		assert.Empty(t, res.Active)
		assert.True(t, res.Converged)
		// centered response: the intercept-only fit predicts zero
		assert.InDelta(t, 0, res.Intercept, 1e-9)
	})

	t.Run("full", func(t *testing.T) {
		p := prob
		p.Size = prob.Data.P()
		res, err := Run(context.Background(), DefaultConfig(), p)
		require.NoError(t, err)
		assert.Len(t, res.Active, prob.Data.P())
		assert.Equal(t, 1, res.Iterations)
		assert.Zero(t, res.Exchanges)
	})

	t.Run("too large", func(t *testing.T) {
		p := prob
		p.Size = prob.Data.P() + 1
		_, err := Run(context.Background(), DefaultConfig(), p)
		require.Error(t, err)
		assert.Equal(t, errors.KindInvalidScreeningSize, errors.KindOf(err))
	})

	t.Run("below always-select", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AlwaysSelect = []int{0, 1}
		p := prob
		p.Size = 1
		_, err := Run(context.Background(), cfg, p)
		require.Error(t, err)
		assert.Equal(t, errors.KindInvalidScreeningSize, errors.KindOf(err))
	})
}

func TestRunKeepsAlwaysSelect(t *testing.T) {
	prob := problem(t, family.Gaussian, []float64{3, -2, 2})
	cfg := DefaultConfig()
	cfg.AlwaysSelect = []int{0}
	prob.Size = 4

	res, err := Run(context.Background(), cfg, prob)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 7, 11}, res.Active)
}

func TestRunParallelMatchesSequential(t *testing.T) {
	prob := problem(t, family.Binomial, []float64{2, -2, 2})
	prob.Warm = &Warm{Active: []int{0, 1, 4}}

	seq, err := Run(context.Background(), DefaultConfig(), prob)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Workers = 4
	par, err := Run(context.Background(), cfg, prob)
	require.NoError(t, err)

	assert.Equal(t, seq.Active, par.Active)
	assert.Equal(t, seq.Exchanges, par.Exchanges)
	assert.InDelta(t, seq.Loss, par.Loss, 1e-12)
}

func TestRunIterationCap(t *testing.T) {
	prob := problem(t, family.Gaussian, []float64{3, -2, 2})
	prob.Warm = &Warm{Active: []int{0, 1, 4}}
	cfg := DefaultConfig()
	cfg.MaxIter = 1
	cfg.Exchange = 1

	res, err := Run(context.Background(), cfg, prob)
	require.Error(t, err)
	assert.True(t, errors.IsRecoverable(err))
	require.NotNil(t, res)
	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Exchanges)
}

func TestRunCancelled(t *testing.T) {
	prob := problem(t, family.Gaussian, []float64{3, -2, 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, DefaultConfig(), prob)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"exchange", func(c *Config) { c.Exchange = 0 }},
		{"max iter", func(c *Config) { c.MaxIter = 0 }},
		{"tau", func(c *Config) { c.Tau = -1 }},
		{"always out of range", func(c *Config) { c.AlwaysSelect = []int{20} }},
		{"always duplicate", func(c *Config) { c.AlwaysSelect = []int{1, 1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate(20)
			require.Error(t, err)
			assert.Equal(t, errors.KindInvalidParameter, errors.KindOf(err))
		})
	}
	assert.NoError(t, DefaultConfig().Validate(20))
}

func TestThreshold(t *testing.T) {
	cfg := DefaultConfig()
	assert.Greater(t, cfg.threshold(3, 100, 20, 50), 0.0)
	assert.InDelta(t, 1e-10*1e6, cfg.threshold(3, 2, 1, 1e6), 1e-12)

	cfg.Tau = 0.5
	assert.Equal(t, 0.5, cfg.threshold(3, 100, 20, 50))
}

// pairs of neighbouring columns share a group: columns 2j and 2j+1 form group j
func groupedProblem(t *testing.T) Problem {
	t.Helper()
	gen := synth.Generate(family.Gaussian, synth.Config{
		N: 300, P: 12, Support: []int{4, 5, 9}, Coef: []float64{2, -1.5, 2},
		Noise: 0.5, Rho: 0.3, Seed: 7,
	})
	labels := make([]int, 12)
	for j := range labels {
		labels[j] = j / 2
	}
	d, err := data.New(gen.X, gen.Y, data.WithGroups(labels))
	require.NoError(t, err)
	f, err := linear.NewFitter(d.Family)
	require.NoError(t, err)
	return Problem{Data: d, Fitter: f, Size: 2}
}

func TestRunSelectsWholeGroups(t *testing.T) {
	prob := groupedProblem(t)

	t.Run("cold", func(t *testing.T) {
		res, err := Run(context.Background(), DefaultConfig(), prob)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 4}, res.Groups)
		assert.Equal(t, []int{4, 5, 8, 9}, res.Active)
		assert.Len(t, res.Coef, 4)
		assert.True(t, res.Converged)
	})

	t.Run("partial warm group", func(t *testing.T) {
		p := prob
		p.Warm = &Warm{Active: []int{1, 5}, Coef: []float64{0.1, -1.5}}
		res, err := Run(context.Background(), DefaultConfig(), p)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 4}, res.Groups)
		assert.Equal(t, []int{4, 5, 8, 9}, res.Active)
	})

	t.Run("always-select keeps the group", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AlwaysSelect = []int{1}
		p := prob
		p.Size = 3
		res, err := Run(context.Background(), cfg, p)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 2, 4}, res.Groups)
		assert.Equal(t, []int{0, 1, 4, 5, 8, 9}, res.Active)
	})

	t.Run("size counts groups", func(t *testing.T) {
		p := prob
		p.Size = 7
		_, err := Run(context.Background(), DefaultConfig(), p)
		require.Error(t, err)
		assert.Equal(t, errors.KindInvalidScreeningSize, errors.KindOf(err))

		p.Size = 6
		res, err := Run(context.Background(), DefaultConfig(), p)
		require.NoError(t, err)
		assert.Len(t, res.Active, 12)
	})
}

// Columns 0 and 1 are noisy copies of the signal e. Columns 2 and 3 are u+e and u-e
// for a large u, so each alone says little about y ≈ 2e but together they fit it.
// Replacing one of {0, 1} by one of {2, 3} loses fit; replacing both wins.
func pairSwapProblem(t *testing.T) Problem {
	t.Helper()
	const n = 200
	rng := rand.New(rand.NewPCG(17, 29))
	X := mat.NewDense(n, 4, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		e := rng.NormFloat64()
		u := 3 * rng.NormFloat64()
		X.SetRow(i, []float64{
			e + 0.5*rng.NormFloat64(),
			e + 0.5*rng.NormFloat64(),
			u + e,
			u - e,
		})
		y[i] = 2*e + 0.1*rng.NormFloat64()
	}
	d, err := data.New(X, y)
	require.NoError(t, err)
	f, err := linear.NewFitter(d.Family)
	require.NoError(t, err)
	return Problem{Data: d, Fitter: f, Size: 2}
}

func TestRunNeedsPairExchange(t *testing.T) {
	prob := pairSwapProblem(t)

	single := DefaultConfig()
	single.Exchange = 1
	res, err := Run(context.Background(), single, prob)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, res.Active, "single swaps cannot leave the marginal optimum")
	assert.Zero(t, res.Exchanges)

	pair := DefaultConfig()
	pair.Exchange = 2
	res, err = Run(context.Background(), pair, prob)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, res.Active)
	assert.Equal(t, 1, res.Exchanges)
	assert.Less(t, res.Loss, 0.05*float64(prob.Data.N()))
}
