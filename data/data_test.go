package data

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/adaizjx/abess/family"
	"github.com/adaizjx/abess/pkg/errors"
)

func smallX() *mat.Dense {
	return mat.NewDense(4, 2, []float64{
		1, 2,
		2, 4,
		3, 1,
		4, 3,
	})
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		y    []float64
		opts []Option
		kind errors.Kind
	}{
		{"short y", []float64{1, 2, 3}, nil, errors.KindDimensionMismatch},
		{"short weights", []float64{1, 2, 3, 4}, []Option{WithWeights([]float64{1, 1})}, errors.KindDimensionMismatch},
		{"negative weight", []float64{1, 2, 3, 4}, []Option{WithWeights([]float64{1, -1, 1, 1})}, errors.KindInvalidWeight},
		{"nan weight", []float64{1, 2, 3, 4}, []Option{WithWeights([]float64{1, math.NaN(), 1, 1})}, errors.KindInvalidWeight},
		{"zero total weight", []float64{1, 2, 3, 4}, []Option{WithWeights([]float64{0, 0, 0, 0})}, errors.KindInvalidWeight},
		{"short groups", []float64{1, 2, 3, 4}, []Option{WithGroups([]int{0})}, errors.KindDimensionMismatch},
		{"short status", []float64{1, 2, 3, 4}, []Option{WithFamily(family.Cox), WithStatus([]float64{1})}, errors.KindDimensionMismatch},
		{"nan response", []float64{1, math.NaN(), 3, 4}, nil, errors.KindNumericalInstability},
		{"binomial response", []float64{0, 1, 2, 0}, []Option{WithFamily(family.Binomial)}, errors.KindInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(smallX(), tt.y, tt.opts...)
			require.Error(t, err)
			assert.Equal(t, tt.kind, errors.KindOf(err))
		})
	}
}

func TestNewNormalizesAndCenters(t *testing.T) {
	d, err := New(smallX(), []float64{1, 2, 3, 6})
	require.NoError(t, err)
	assert.Equal(t, 4, d.N())
	assert.Equal(t, 2, d.P())
	assert.Equal(t, family.Gaussian, d.Family.Kind())

	var sum float64
	for _, v := range d.Resp.Y {
		sum += v
	}
	assert.InDelta(t, 0, sum, 1e-12, "gaussian response is centered")
	assert.InDelta(t, 3.0, d.Norm.YMean, 1e-12)
	assert.InDelta(t, 0, mat.Sum(d.X.ColView(0)), 1e-12)
}

func TestNewWithoutNormalization(t *testing.T) {
	X := smallX()
	d, err := New(X, []float64{0, 1, 1, 0}, WithFamily(family.Binomial), WithNormalize(false))
	require.NoError(t, err)
	assert.True(t, mat.Equal(X, d.X))
	assert.Equal(t, []float64{0, 1, 1, 0}, d.Resp.Y)
}

func TestNewCopiesInputs(t *testing.T) {
	y := []float64{1, 2, 3, 4}
	w := []float64{1, 1, 2, 2}
	d, err := New(smallX(), y, WithWeights(w), WithNormalize(false))
	require.NoError(t, err)
	w[0] = 100
	y[0] = 100
	assert.Equal(t, 1.0, d.Resp.W[0])
	assert.NotEqual(t, 100.0, d.Resp.Y[0])
}

func TestRowsAndColumns(t *testing.T) {
	d, err := New(smallX(), []float64{1, 2, 3, 4}, WithNormalize(false))
	require.NoError(t, err)

	rows := d.Rows([]int{3, 1})
	assert.Equal(t, 2, rows.N())
	assert.Equal(t, []float64{4, 3}, rows.X.RawRowView(0))
	assert.Equal(t, 2, len(rows.Resp.Y))

	cols := d.Columns([]int{1})
	assert.Equal(t, 1, cols.P())
	assert.Equal(t, 1, cols.Original(0))
	assert.Equal(t, 2.0, cols.X.At(0, 0))
	assert.Equal(t, []float64{0, 7}, cols.Expand([]float64{7}))

	nested := cols.Rows([]int{0})
	assert.Equal(t, 1, nested.Original(0))
}

func TestNewGroups(t *testing.T) {
	X := mat.NewDense(4, 5, []float64{
		1, 2, 0, 1, 3,
		2, 4, 1, 0, 1,
		3, 1, 0, 2, 2,
		4, 3, 1, 1, 0,
	})
	y := []float64{1, 2, 3, 4}

	d, err := New(X, y)
	require.NoError(t, err)
	assert.Equal(t, 5, d.Groups.Len())
	assert.True(t, d.Groups.Singleton())

	d, err = New(X, y, WithGroups([]int{7, 3, 7, 3, 9}))
	require.NoError(t, err)
	g := d.Groups
	assert.Equal(t, 3, g.Len())
	assert.False(t, g.Singleton())
	assert.Equal(t, []int{0, 2}, g.Members(0))
	assert.Equal(t, []int{1, 3}, g.Members(1))
	assert.Equal(t, []int{4}, g.Members(2))
	assert.Equal(t, 7, g.Label(0))
	assert.Equal(t, 1, g.Of(3))
	assert.Equal(t, []int{0, 2}, g.Cover([]int{4, 2, 0}))
	assert.Equal(t, []int{0, 2, 4}, g.Columns([]int{2, 0}))

	sub := d.Columns([]int{1, 2, 4})
	assert.Equal(t, 3, sub.Groups.Len())
	assert.Equal(t, 3, sub.Groups.Label(0))
	assert.Equal(t, 7, sub.Groups.Label(1))
	assert.Same(t, sub.Groups, sub.Rows([]int{0, 1}).Groups)
}

func TestNewRejectsZeroTotalWeight(t *testing.T) {
	_, err := New(smallX(), []float64{1, 2, 3, 4}, WithWeights([]float64{0, 0, 0, 0}))
	require.Error(t, err)
	var we *errors.InvalidWeightError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, -1, we.Index)
	assert.Contains(t, err.Error(), "positive total")
}
