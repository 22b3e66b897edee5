package abess

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/adaizjx/abess/data"
	"github.com/adaizjx/abess/family"
	"github.com/adaizjx/abess/internal/synth"
	"github.com/adaizjx/abess/metrics"
	"github.com/adaizjx/abess/pkg/errors"
	"github.com/adaizjx/abess/pkg/log"
)

func gaussian(n, p int, support []int, coef []float64, seed uint64) *synth.Problem {
	return synth.Generate(family.Gaussian, synth.Config{
		N: n, P: p, Support: support, Coef: coef,
		Intercept: 1.5, Noise: 1, Rho: 0.3, Seed: seed,
	})
}

func TestBICRecoversSupport(t *testing.T) {
	gen := gaussian(100, 20, []int{1, 5, 12}, []float64{3, -2, 2.5}, 3)

	s := New(WithIC(metrics.BIC))
	res, err := s.Fit(context.Background(), gen.X, gen.Y)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 5, 12}, res.Active)
	assert.Equal(t, res.Active, res.ActiveGroups)
	assert.Equal(t, 3, res.SupportSize)
	require.Len(t, res.Coef, 20)
	for j, b := range res.Coef {
		assert.InDelta(t, gen.Coef[j], b, 0.5, "coef %d", j)
	}
	assert.InDelta(t, 1.5, res.Intercept, 0.5)
	assert.True(t, res.Converged)
	assert.True(t, math.IsNaN(res.TestLoss))
	assert.Greater(t, res.NullLoss, res.TrainLoss)
	assert.InDelta(t, res.Score, res.Criteria.BIC, 1e-9)
	assert.Len(t, res.Path, len(path20()))
	assert.Nil(t, res.Screened)

	assert.Equal(t, res.Coef, s.Coef())
	assert.Equal(t, res.Intercept, s.Intercept())
	assert.Same(t, res, s.Result())
}

// BIC adds one of the 17 noise columns in roughly half of these draws (21 of 40 when
// measured); the true columns are never lost.
func TestBICSelectionRate(t *testing.T) {
	if testing.Short() {
		t.Skip("fits 40 paths")
	}
	const trials = 40
	exact := 0
	for seed := uint64(1); seed <= trials; seed++ {
		gen := gaussian(100, 20, []int{1, 5, 12}, []float64{3, -2, 2.5}, seed)
		res, err := New(WithIC(metrics.BIC)).Fit(context.Background(), gen.X, gen.Y)
		require.NoError(t, err)
		assert.Subset(t, res.Active, []int{1, 5, 12}, "seed %d", seed)
		if res.SupportSize == 3 {
			exact++
		}
	}
	assert.GreaterOrEqual(t, exact, 12, "exact support in %d of %d draws", exact, trials)
}

// default sizes for n = 100, p = 20
func path20() []int {
	out := make([]int, 20)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestSupportLargerThanFeatures(t *testing.T) {
	gen := gaussian(50, 20, []int{0}, []float64{1}, 1)
	_, err := New(WithSupportSizes(3, 25)).Fit(context.Background(), gen.X, gen.Y)
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidScreeningSize, errors.KindOf(err))

	_, err = New(WithScreeningSize(5), WithSupportSizes(6)).Fit(context.Background(), gen.X, gen.Y)
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidScreeningSize, errors.KindOf(err))
}

func TestNormalizationRoundTrip(t *testing.T) {
	gen := gaussian(120, 8, []int{0, 3, 6}, []float64{2, -1, 1.5}, 9)
	X := mat.DenseCopyOf(gen.X)
	scales := []float64{1, 10, 0.1, 3, 100, 0.5, 7, 2}
	for i := 0; i < 120; i++ {
		for j, sc := range scales {
			X.Set(i, j, X.At(i, j)*sc+float64(j))
		}
	}

	on, err := New(WithSupportSizes(3), WithNormalize(true)).Fit(context.Background(), X, gen.Y)
	require.NoError(t, err)
	off, err := New(WithSupportSizes(3), WithNormalize(false)).Fit(context.Background(), X, gen.Y)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 3, 6}, on.Active)
	assert.Equal(t, on.Active, off.Active)
	for j := range on.Coef {
		assert.InDelta(t, off.Coef[j], on.Coef[j], 1e-6)
	}
	assert.InDelta(t, off.Intercept, on.Intercept, 1e-5)
	assert.InDelta(t, 2.0/scales[0], on.Coef[0], 0.3)
}

func TestZeroResponse(t *testing.T) {
	gen := gaussian(40, 6, []int{0}, []float64{1}, 4)
	y := make([]float64, 40)

	res, err := New().Fit(context.Background(), gen.X, y)
	require.NoError(t, err)
	for _, b := range res.Coef {
		assert.InDelta(t, 0, b, 1e-10)
	}
	assert.InDelta(t, 0, res.Intercept, 1e-10)
}

func TestFullModelMatchesLeastSquares(t *testing.T) {
	gen := gaussian(60, 5, []int{0, 2}, []float64{1, -1}, 12)

	res, err := New(WithSupportSizes(5)).Fit(context.Background(), gen.X, gen.Y)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, res.Active)

	A := mat.NewDense(60, 6, nil)
	for i := 0; i < 60; i++ {
		A.Set(i, 0, 1)
		for j := 0; j < 5; j++ {
			A.Set(i, j+1, gen.X.At(i, j))
		}
	}
	var beta mat.VecDense
	require.NoError(t, beta.SolveVec(A, mat.NewVecDense(60, gen.Y)))

	assert.InDelta(t, beta.AtVec(0), res.Intercept, 1e-6)
	for j := 0; j < 5; j++ {
		assert.InDelta(t, beta.AtVec(j+1), res.Coef[j], 1e-6)
	}
}

func TestCrossValidationIsDeterministic(t *testing.T) {
	gen := gaussian(150, 12, []int{2, 8}, []float64{2, -2}, 21)
	fit := func(workers int) *Result {
		res, err := New(WithCV(5, 42), WithSupportRange(1, 5), WithWorkers(workers)).
			Fit(context.Background(), gen.X, gen.Y)
		require.NoError(t, err)
		return res
	}

	a, b := fit(1), fit(4)
	require.Len(t, a.Path, 5)
	for i := range a.Path {
		assert.Equal(t, a.Path[i].TestLoss, b.Path[i].TestLoss)
		assert.Equal(t, a.Path[i].Active, b.Path[i].Active)
		assert.Equal(t, a.Path[i].TestLoss, a.Path[i].Score)
	}
	assert.Subset(t, a.Active, []int{2, 8})
	assert.Equal(t, a.Active, b.Active)
	assert.False(t, math.IsNaN(a.TestLoss))
}

func TestScreeningRestoresOriginalIndices(t *testing.T) {
	gen := gaussian(200, 50, []int{3, 27, 41}, []float64{2, -2, 2}, 8)

	res, err := New(WithScreeningSize(10), WithSupportSizes(1, 2, 3, 4, 5), WithIC(metrics.EBIC)).
		Fit(context.Background(), gen.X, gen.Y)
	require.NoError(t, err)

	assert.Len(t, res.Screened, 10)
	assert.Subset(t, res.Screened, []int{3, 27, 41})
	assert.Equal(t, []int{3, 27, 41}, res.Active)
	require.Len(t, res.Coef, 50)
	for _, e := range res.Path {
		assert.Subset(t, res.Screened, e.Active)
		assert.Len(t, e.Coef, 50)
	}
}

func TestGoldenPath(t *testing.T) {
	gen := gaussian(200, 30, []int{4, 9, 16, 22}, []float64{2, -2, 1.5, 2}, 13)

	res, err := New(WithPath(PathGolden), WithIC(metrics.BIC), WithSupportRange(1, 20)).
		Fit(context.Background(), gen.X, gen.Y)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 9, 16, 22}, res.Active)
	assert.Less(t, len(res.Path), 20)
}

func TestAlwaysSelectAndLambdas(t *testing.T) {
	gen := gaussian(100, 10, []int{1, 5}, []float64{2, 2}, 6)

	res, err := New(WithAlwaysSelect(0), WithSupportSizes(2, 3), WithLambdas(0, 0.5)).
		Fit(context.Background(), gen.X, gen.Y)
	require.NoError(t, err)
	assert.Len(t, res.Path, 4)
	for _, e := range res.Path {
		assert.Contains(t, e.Active, 0)
	}
	assert.Equal(t, []int{0, 1, 5}, res.Active)
}

func TestFamilies(t *testing.T) {
	tests := []struct {
		kind family.Kind
		coef []float64
	}{
		{family.Binomial, []float64{2, -2}},
		{family.Poisson, []float64{0.6, -0.6}},
		{family.Cox, []float64{1, -1}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			gen := synth.Generate(tt.kind, synth.Config{
				N: 300, P: 10, Support: []int{2, 6}, Coef: tt.coef, Seed: 31,
			})
			var opts []data.Option
			if gen.Status != nil {
				opts = append(opts, data.WithStatus(gen.Status))
			}

			s := New(WithFamily(tt.kind), WithIC(metrics.BIC), WithSupportRange(1, 5))
			res, err := s.Fit(context.Background(), gen.X, gen.Y, opts...)
			require.NoError(t, err)
			assert.Equal(t, []int{2, 6}, res.Active)

			pred, err := s.Predict(gen.X)
			require.NoError(t, err)
			assert.Equal(t, 300, pred.Len())
			for i := 0; i < pred.Len(); i++ {
				assert.Positive(t, pred.AtVec(i))
			}

			_, err = s.Score(gen.X, gen.Y)
			if tt.kind == family.Cox {
				assert.Equal(t, errors.KindInvalidParameter, errors.KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPredictAndScore(t *testing.T) {
	gen := gaussian(100, 6, []int{0, 4}, []float64{3, -3}, 2)
	s := New()

	_, err := s.Predict(gen.X)
	assert.Equal(t, errors.KindInvalidParameter, errors.KindOf(err))
	assert.Nil(t, s.Coef())
	assert.Nil(t, s.Result())

	_, err = s.Fit(context.Background(), gen.X, gen.Y)
	require.NoError(t, err)

	r2, err := s.Score(gen.X, gen.Y)
	require.NoError(t, err)
	assert.Greater(t, r2, 0.8)

	_, err = s.Predict(mat.NewDense(2, 3, nil))
	assert.Equal(t, errors.KindDimensionMismatch, errors.KindOf(err))
	_, err = s.Score(gen.X, gen.Y[:10])
	assert.Equal(t, errors.KindDimensionMismatch, errors.KindOf(err))
}

func TestFitValidation(t *testing.T) {
	gen := gaussian(30, 5, []int{0}, []float64{1}, 1)
	ctx := context.Background()

	tests := []struct {
		name string
		opts []Option
		kind errors.Kind
	}{
		{"one fold", []Option{WithCV(1, 0)}, errors.KindInvalidParameter},
		{"always-select out of range", []Option{WithAlwaysSelect(7)}, errors.KindInvalidParameter},
		{"negative lambda", []Option{WithLambdas(-1)}, errors.KindInvalidParameter},
		{"bad range", []Option{WithSupportRange(4, 2)}, errors.KindInvalidParameter},
		{"exchange", []Option{WithExchange(0)}, errors.KindInvalidParameter},
		{"fit tolerance", []Option{WithFitTol(0)}, errors.KindInvalidParameter},
		{"ic coef", []Option{WithICCoef(-1)}, errors.KindInvalidParameter},
		{"size below always-select", []Option{WithAlwaysSelect(0, 1), WithSupportSizes(1)}, errors.KindInvalidScreeningSize},
		{"negative screening size", []Option{WithScreeningSize(-1)}, errors.KindInvalidScreeningSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...).Fit(ctx, gen.X, gen.Y)
			require.Error(t, err)
			assert.Equal(t, tt.kind, errors.KindOf(err))
		})
	}

	_, err := New().Fit(ctx, gen.X, gen.Y[:10])
	assert.Equal(t, errors.KindDimensionMismatch, errors.KindOf(err))

	w := make([]float64, 30)
	w[3] = -1
	_, err = New().Fit(ctx, gen.X, gen.Y, data.WithWeights(w))
	assert.Equal(t, errors.KindInvalidWeight, errors.KindOf(err))

	res, err := New(WithSupportSizes(1)).Fit(ctx, gen.X, gen.Y, data.WithWeights(make([]float64, 30)))
	assert.Equal(t, errors.KindInvalidWeight, errors.KindOf(err))
	assert.Nil(t, res)
}

func TestGroupedFit(t *testing.T) {
	gen := gaussian(300, 12, []int{4, 5, 9}, []float64{2, -1.5, 2}, 7)
	labels := make([]int, 12)
	for j := range labels {
		labels[j] = 10 + j/2
	}
	ctx := context.Background()

	res, err := New(WithSupportSizes(2)).Fit(ctx, gen.X, gen.Y, data.WithGroups(labels))
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5, 8, 9}, res.Active)
	assert.Equal(t, []int{12, 14}, res.ActiveGroups)
	assert.Equal(t, 2, res.SupportSize)
	assert.InDelta(t, 2, res.Coef[9], 0.3)
	assert.InDelta(t, 0, res.Coef[8], 0.3)

	res, err = New(WithSupportSizes(1, 2), WithScreeningSize(3)).
		Fit(ctx, gen.X, gen.Y, data.WithGroups(labels))
	require.NoError(t, err)
	assert.Len(t, res.Screened, 6)
	assert.Subset(t, res.Screened, []int{4, 5, 8, 9})
	assert.Len(t, res.Active, 2*len(res.ActiveGroups))

	_, err = New(WithSupportSizes(7)).Fit(ctx, gen.X, gen.Y, data.WithGroups(labels))
	assert.Equal(t, errors.KindInvalidScreeningSize, errors.KindOf(err))
}

func TestFitCancelled(t *testing.T) {
	gen := gaussian(50, 8, []int{0}, []float64{1}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Fit(ctx, gen.X, gen.Y)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFitLogs(t *testing.T) {
	gen := gaussian(60, 6, []int{1}, []float64{2}, 5)
	logger, _ := log.NewTestLogger(log.LevelInfo)

	_, err := New(WithLogger(logger), WithSupportSizes(1, 2)).Fit(context.Background(), gen.X, gen.Y)
	require.NoError(t, err)
	assert.True(t, logger.ContainsMessage("fit finished"))
	assert.True(t, logger.ContainsField(log.SupportSizeKey, 1.0))
	assert.True(t, logger.ContainsField(log.FamilyKey, "gaussian"))
}
