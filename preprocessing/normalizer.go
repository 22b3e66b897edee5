package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/adaizjx/abess/core/model"
	"github.com/adaizjx/abess/pkg/errors"
)

// scaleFloor is the smallest column scale treated as non-degenerate.
// Columns with a smaller population standard deviation keep scale 1.
const scaleFloor = 1e-8

// InterceptRule says how the original-scale intercept is recovered.
type InterceptRule int

const (
	// InterceptCentered adds back the response mean (Gaussian).
	InterceptCentered InterceptRule = iota
	// InterceptLink keeps the fitted intercept on the link scale (Binomial, Poisson).
	InterceptLink
	// InterceptNone reports a zero intercept (Cox).
	InterceptNone
)

// Normalizer centers and scales predictor columns to zero weighted mean and unit weighted
// population standard deviation, and optionally centers the response.
//
// The transform is affine per column, X' = (X - XMean) / XScale, so a linear model fitted
// on X' with an intercept maps back to the original scale exactly through Coefficients.
//
// Example:
//
//	norm := preprocessing.NewNormalizer(preprocessing.InterceptCentered)
//	if err := norm.FitWeighted(X, y, w); err != nil {
//	    return err
//	}
//	Xn, _ := norm.Transform(X)
//	yc := norm.TransformResponse(y)
//	// fit on (Xn, yc), then
//	coef, intercept := norm.Coefficients(coefNorm, interceptNorm)
type Normalizer struct {
	state *model.StateManager

	// XMean is the weighted mean of each column.
	XMean []float64
	// XScale is the weighted population standard deviation of each column, floored to 1.
	XScale []float64
	// YMean is the weighted response mean, zero unless the response is centered.
	YMean float64
	// Rule selects the intercept recovery of Coefficients.
	Rule InterceptRule
}

// NewNormalizer returns an unfitted Normalizer. The response is centered only for
// InterceptCentered.
func NewNormalizer(rule InterceptRule) *Normalizer {
	return &Normalizer{
		state: model.NewStateManager(),
		Rule:  rule,
	}
}

// NewIdentity returns a fitted Normalizer that leaves p columns unchanged.
// It is used when normalization is disabled.
func NewIdentity(p int, rule InterceptRule) *Normalizer {
	n := NewNormalizer(rule)
	n.XMean = make([]float64, p)
	n.XScale = make([]float64, p)
	for j := range n.XScale {
		n.XScale[j] = 1
	}
	n.state.SetFitted(p, 0)
	return n
}

var _ model.Transformer = (*Normalizer)(nil)

// Fit learns unweighted column statistics of X. The response is not touched.
func (n *Normalizer) Fit(X mat.Matrix) error {
	return n.FitWeighted(X, nil, nil)
}

// FitWeighted learns column statistics of X and the response mean of y under weights w.
//
// Parameters:
//   - X: n×p design matrix
//   - y: response of length n, or nil
//   - w: non-negative weights of length n, or nil for unit weights
func (n *Normalizer) FitWeighted(X mat.Matrix, y, w []float64) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("Normalizer.Fit", "empty data", errors.ErrEmptyData)
	}
	if y != nil && len(y) != r {
		return errors.NewDimensionError("Normalizer.Fit", r, len(y), 0)
	}
	if w != nil && len(w) != r {
		return errors.NewDimensionError("Normalizer.Fit", r, len(w), 0)
	}

	n.XMean = make([]float64, c)
	n.XScale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, w)
		n.XMean[j] = mean
		if std < scaleFloor {
			std = 1
		}
		n.XScale[j] = std
	}

	n.YMean = 0
	if y != nil && n.Rule == InterceptCentered {
		n.YMean = stat.Mean(y, w)
	}

	n.state.SetFitted(c, r)
	return nil
}

// Transform returns (X - XMean) / XScale as a new matrix.
func (n *Normalizer) Transform(X mat.Matrix) (*mat.Dense, error) {
	if err := n.check("Transform", X); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - n.XMean[j]) / n.XScale[j]
	}, X)
	return out, nil
}

// InverseTransform maps normalized columns back to the original scale.
func (n *Normalizer) InverseTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := n.check("InverseTransform", X); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return v*n.XScale[j] + n.XMean[j]
	}, X)
	return out, nil
}

// TransformResponse returns y - YMean.
func (n *Normalizer) TransformResponse(y []float64) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = v - n.YMean
	}
	return out
}

// Coefficients maps a normalized-space fit back to the original scale.
//
// coefNorm holds one coefficient per column; the result has the same length.
// The slope is β_j = β'_j / XScale_j and the intercept follows Rule:
// YMean + b'_0 - Σ β_j·XMean_j, b'_0 - Σ β_j·XMean_j, or 0.
func (n *Normalizer) Coefficients(coefNorm []float64, interceptNorm float64) ([]float64, float64) {
	coef := make([]float64, len(coefNorm))
	shift := 0.0
	for j, b := range coefNorm {
		if b == 0 {
			continue
		}
		coef[j] = b / n.XScale[j]
		shift += coef[j] * n.XMean[j]
	}

	switch n.Rule {
	case InterceptCentered:
		return coef, n.YMean + interceptNorm - shift
	case InterceptLink:
		return coef, interceptNorm - shift
	default:
		return coef, 0
	}
}

// IsFitted reports whether statistics are available.
func (n *Normalizer) IsFitted() bool {
	return n.state.IsFitted()
}

func (n *Normalizer) check(method string, X mat.Matrix) error {
	if err := n.state.RequireFitted("Normalizer", method); err != nil {
		return err
	}
	_, c := X.Dims()
	return n.state.RequireFeatures("Normalizer."+method, c)
}

// String implements fmt.Stringer.
func (n *Normalizer) String() string {
	if !n.IsFitted() {
		return "Normalizer(unfitted)"
	}
	return fmt.Sprintf("Normalizer(features=%d, y_mean=%.4g)", len(n.XMean), n.YMean)
}
