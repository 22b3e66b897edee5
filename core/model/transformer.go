package model

import "gonum.org/v1/gonum/mat"

// Transformer is an invertible column-wise transform learned from data.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (*mat.Dense, error)
	InverseTransform(X mat.Matrix) (*mat.Dense, error)
}
