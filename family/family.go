// Package family defines the loss families of the solver as a closed set of variants.
//
// Each family works on the linear predictor η = intercept + X_A·β and exposes the weighted
// negative log-likelihood together with its first and second derivatives in η. The fitter,
// the splicing scores and the cross-validation losses only use this capability set, so a
// fit dispatches on the family once instead of branching throughout.
package family

import (
	"sort"
	"strings"

	"github.com/adaizjx/abess/pkg/errors"
)

// Kind identifies a loss family.
type Kind int

const (
	Gaussian Kind = iota
	Binomial
	Poisson
	Cox
)

func (k Kind) String() string {
	switch k {
	case Gaussian:
		return "gaussian"
	case Binomial:
		return "binomial"
	case Poisson:
		return "poisson"
	case Cox:
		return "cox"
	default:
		return "unknown"
	}
}

// ParseKind parses a case-insensitive family name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "gaussian":
		return Gaussian, nil
	case "binomial", "logistic":
		return Binomial, nil
	case "poisson":
		return Poisson, nil
	case "cox":
		return Cox, nil
	}
	return 0, errors.NewValidationError("family", "unknown loss family", s)
}

// Response is the response side of a problem: y, weights and, for Cox, event status.
// It is read-only once built and may be shared by concurrent fits.
type Response struct {
	Y      []float64
	W      []float64
	Status []float64

	// order lists sample indices by decreasing time; ties keep index order.
	order []int
	sumW  float64
}

// NewResponse builds a Response. w must have the length of y; status may be nil
// for families other than Cox.
func NewResponse(y, w, status []float64) *Response {
	r := &Response{Y: y, W: w, Status: status}
	for _, v := range w {
		r.sumW += v
	}
	if status != nil {
		r.order = make([]int, len(y))
		for i := range r.order {
			r.order[i] = i
		}
		sort.SliceStable(r.order, func(a, b int) bool {
			return y[r.order[a]] > y[r.order[b]]
		})
	}
	return r
}

// Len returns the number of samples.
func (r *Response) Len() int { return len(r.Y) }

// SumW returns the total weight.
func (r *Response) SumW() float64 { return r.sumW }

// Subset returns the Response restricted to rows idx, in idx order.
func (r *Response) Subset(idx []int) *Response {
	y := make([]float64, len(idx))
	w := make([]float64, len(idx))
	var status []float64
	if r.Status != nil {
		status = make([]float64, len(idx))
	}
	for k, i := range idx {
		y[k] = r.Y[i]
		w[k] = r.W[i]
		if status != nil {
			status[k] = r.Status[i]
		}
	}
	return NewResponse(y, w, status)
}

// Family is the capability set shared by all loss families.
type Family interface {
	// Kind returns the variant tag.
	Kind() Kind

	// HasIntercept reports whether the model carries an intercept.
	HasIntercept() bool

	// Loss returns the weighted negative log-likelihood at η, dropping constants.
	Loss(r *Response, eta []float64) float64

	// Derivatives writes g_i = ∂Loss/∂η_i and h_i, the diagonal of ∂²Loss/∂η². h_i > 0.
	Derivatives(r *Response, eta, g, h []float64)

	// Mean maps η to the mean response (identity, logistic, exp, or relative risk).
	Mean(eta float64) float64

	// InitEta returns the intercept of the null model, the starting point of a fit.
	InitEta(r *Response) float64

	// Validate checks that the response is admissible for the family.
	Validate(r *Response) error
}

// New returns the Family for kind.
func New(kind Kind) (Family, error) {
	switch kind {
	case Gaussian:
		return gaussian{}, nil
	case Binomial:
		return binomial{}, nil
	case Poisson:
		return poisson{}, nil
	case Cox:
		return cox{}, nil
	}
	return nil, errors.NewValidationError("family", "unknown loss family", int(kind))
}

// MustNew is New for statically known kinds.
func MustNew(kind Kind) Family {
	f, err := New(kind)
	if err != nil {
		panic(err)
	}
	return f
}

// hFloor keeps working weights positive so weighted least squares stays well posed.
const hFloor = 1e-10
