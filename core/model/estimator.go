package model

import "gonum.org/v1/gonum/mat"

// Predictor maps rows of X to predicted mean responses.
type Predictor interface {
	Predict(X mat.Matrix) (*mat.VecDense, error)
}

// Scorer evaluates predictions against observed responses.
type Scorer interface {
	Score(X mat.Matrix, y []float64) (float64, error)
}

// LinearModel exposes coefficients on the original feature scale.
type LinearModel interface {
	// Coef returns one coefficient per original feature, zero outside the support.
	Coef() []float64
	Intercept() float64
}

// Regressor is a fitted linear predictor that can score itself.
type Regressor interface {
	Predictor
	Scorer
	LinearModel
}
