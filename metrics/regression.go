package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/adaizjx/abess/pkg/errors"
)

// MSE returns the mean squared error.
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// R2Score returns the coefficient of determination 1 - RSS/TSS.
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.AtVec(i)
	}
	yMean /= float64(n)

	var tss float64
	for i := 0; i < n; i++ {
		d := yTrue.AtVec(i) - yMean
		tss += d * d
	}
	if tss == 0 {
		return 0, errors.NewValidationError("y", "total sum of squares is zero (no variance in yTrue)", yMean)
	}

	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - mse*float64(n)/tss, nil
}

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, op)
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}
