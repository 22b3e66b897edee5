package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "abess: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "abess: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			formatted := fmt.Sprintf("%+v", err)
			assert.True(t, strings.Contains(formatted, "errors_test.go"), "stack trace should reference the caller")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", New("boom"), KindUnknown},
		{"dimension", NewDimensionError("Fit", 10, 9, 0), KindDimensionMismatch},
		{"weight", NewInvalidWeightError("Fit", 3, -1), KindInvalidWeight},
		{"screening size", NewInvalidScreeningSizeError("Screen", 30, 1, 20), KindInvalidScreeningSize},
		{"support size", NewInvalidSupportSizeError("Path", 30, 0, 20), KindInvalidScreeningSize},
		{"non convergence", NewNonConvergenceError("IRLS", 100, ""), KindNonConvergence},
		{"empty path", NewEmptyPathError("Select"), KindEmptyPath},
		{"singular", NewSingularFitError("LeastSquares", math.Inf(1), 1e-6), KindSingularFit},
		{"validation", NewValidationError("cv", "must be at least 2", 1), KindInvalidParameter},
		{"not fitted", NewNotFittedError("Solver", "Predict"), KindInvalidParameter},
		{"numerical", NewNumericalInstabilityError("fit", []float64{math.NaN()}, 0), KindNumericalInstability},
		{"wrapped", Wrap(NewEmptyPathError("Select"), "selecting"), KindEmptyPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(NewNonConvergenceError("Newton", 20, "")))
	assert.False(t, IsRecoverable(NewSingularFitError("QR", 1e20, 1e-8)))
	assert.False(t, IsRecoverable(nil))
}

func TestSingularFitErrorUnwrapsSentinel(t *testing.T) {
	err := NewSingularFitError("LeastSquares", 1e18, 1e-4)
	assert.True(t, Is(err, ErrSingularMatrix))
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 8, 1)
	assert.Equal(t, "abess: Predict: dimension mismatch on axis 1 (features). Expected 10, got 8", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 10, dimErr.Expected)
	assert.Equal(t, 8, dimErr.Got)
}

func TestInvalidSizeErrorMessage(t *testing.T) {
	err := NewInvalidScreeningSizeError("Screen", 0, 1, 5)
	assert.Contains(t, err.Error(), "screening_size 0 is out of range [1, 5]")
}

func TestWarn(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(func(w error) {})

	prev := zerologWarnFunc
	SetZerologWarnFunc(nil)
	defer SetZerologWarnFunc(prev)

	Warn(NewConvergenceWarning("IRLS", 50, ""))
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Error(), "IRLS failed to converge after 50 iterations")
}

func TestWarnPrefersZerologSink(t *testing.T) {
	var plain, structured int
	SetWarningHandler(func(w error) { plain++ })
	defer SetWarningHandler(func(w error) {})

	prev := zerologWarnFunc
	SetZerologWarnFunc(func(w error) { structured++ })
	defer SetZerologWarnFunc(prev)

	Warn(NewConvergenceWarning("Cox", 20, "step halving exhausted"))
	assert.Equal(t, 0, plain)
	assert.Equal(t, 1, structured)
}

func TestNumericalHelpers(t *testing.T) {
	assert.NoError(t, CheckNumericalStability("ok", []float64{1, 2, 3}, 0))
	assert.Error(t, CheckNumericalStability("nan", []float64{1, math.NaN()}, 2))
	assert.Error(t, CheckScalar("inf", math.Inf(-1), 0))

	assert.Equal(t, 0.0, SafeDivide(1, 0))
	assert.Equal(t, 2.0, SafeDivide(4, 2))
	assert.Equal(t, 1.0, ClipValue(3, 0, 1))

	assert.InDelta(t, math.Log(1e-10), StabilizeLog(0), 1e-12)
	assert.False(t, math.IsInf(StabilizeExp(1000), 0))
	assert.Equal(t, 0.0, StabilizeExp(-1000))

	assert.InDelta(t, math.Log(2), Log1pExp(0), 1e-12)
	assert.Equal(t, 100.0, Log1pExp(100))
	assert.InDelta(t, 0.5, Sigmoid(0), 1e-12)
	assert.InDelta(t, 1.0, Sigmoid(800), 1e-12)
	assert.InDelta(t, 0.0, Sigmoid(-800), 1e-12)
}
