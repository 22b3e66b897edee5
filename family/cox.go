package family

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/adaizjx/abess/pkg/errors"
)

// cox is the proportional hazards model with the Breslow partial likelihood.
// Y holds survival times and Status the event indicators. The partial likelihood is
// invariant to a constant shift of η, so the model has no intercept and every pass
// subtracts max η before exponentiating.
type cox struct{}

func (cox) Kind() Kind                  { return Cox }
func (cox) HasIntercept() bool          { return false }
func (cox) Mean(eta float64) float64    { return errors.StabilizeExp(eta) }
func (cox) InitEta(r *Response) float64 { return 0 }

func (cox) Validate(r *Response) error {
	if r.Status == nil {
		return errors.NewValidationError("status", "cox family requires an event status vector", nil)
	}
	for i, s := range r.Status {
		if s != 0 && s != 1 {
			return errors.NewValidationError("status", "event status must be 0 or 1", s)
		}
		if r.Y[i] < 0 {
			return errors.NewValidationError("y", "survival times must be non-negative", r.Y[i])
		}
	}
	return nil
}

// riskGroups returns the boundaries in r.order of runs of equal time.
func riskGroups(r *Response) []int {
	bounds := []int{0}
	for k := 1; k < len(r.order); k++ {
		if r.Y[r.order[k]] != r.Y[r.order[k-1]] {
			bounds = append(bounds, k)
		}
	}
	return append(bounds, len(r.order))
}

// riskWeights returns w_i·exp(η_i - max η) and max η.
func riskWeights(r *Response, eta []float64) ([]float64, float64) {
	mx := floats.Max(eta)
	rw := make([]float64, len(eta))
	for i, e := range eta {
		rw[i] = r.W[i] * math.Exp(e-mx)
	}
	return rw, mx
}

func (cox) Loss(r *Response, eta []float64) float64 {
	if len(eta) == 0 {
		return 0
	}
	rw, mx := riskWeights(r, eta)
	bounds := riskGroups(r)

	var loss, s0 float64
	for b := 0; b+1 < len(bounds); b++ {
		var d float64
		for _, i := range r.order[bounds[b]:bounds[b+1]] {
			s0 += rw[i]
			if r.Status[i] == 1 {
				d += r.W[i]
				loss -= r.W[i] * (eta[i] - mx)
			}
		}
		if d > 0 {
			loss += d * math.Log(s0)
		}
	}
	return loss
}

func (cox) Derivatives(r *Response, eta, g, h []float64) {
	rw, _ := riskWeights(r, eta)
	bounds := riskGroups(r)
	nGroups := len(bounds) - 1

	// forward pass over decreasing time: risk set sums
	a := make([]float64, nGroups) // d/S0
	b := make([]float64, nGroups) // d/S0²
	var s0 float64
	for k := 0; k < nGroups; k++ {
		var d float64
		for _, i := range r.order[bounds[k]:bounds[k+1]] {
			s0 += rw[i]
			if r.Status[i] == 1 {
				d += r.W[i]
			}
		}
		if d > 0 && s0 > 0 {
			a[k] = d / s0
			b[k] = d / (s0 * s0)
		}
	}

	// backward pass: sample i is at risk at every event time not after its own
	var cumA, cumB float64
	for k := nGroups - 1; k >= 0; k-- {
		cumA += a[k]
		cumB += b[k]
		for _, i := range r.order[bounds[k]:bounds[k+1]] {
			g[i] = rw[i]*cumA - r.W[i]*r.Status[i]
			h[i] = math.Max(rw[i]*cumA-rw[i]*rw[i]*cumB, hFloor*r.W[i])
		}
	}
}

// CoxHessian writes the exact Hessian of the Breslow loss with respect to the
// coefficients of the columns of X (n×q) into dst, which must be q×q.
func CoxHessian(r *Response, eta []float64, X mat.Matrix, dst *mat.SymDense) {
	_, q := X.Dims()
	dst.Zero()
	if q == 0 {
		return
	}
	rw, _ := riskWeights(r, eta)
	bounds := riskGroups(r)

	s1 := make([]float64, q)
	s2 := mat.NewSymDense(q, nil)
	x := make([]float64, q)
	var s0 float64
	for k := 0; k+1 < len(bounds); k++ {
		var d float64
		for _, i := range r.order[bounds[k]:bounds[k+1]] {
			mat.Row(x, i, X)
			s0 += rw[i]
			floats.AddScaled(s1, rw[i], x)
			s2.SymRankOne(s2, rw[i], mat.NewVecDense(q, x))
			if r.Status[i] == 1 {
				d += r.W[i]
			}
		}
		if d == 0 || s0 == 0 {
			continue
		}
		for j1 := 0; j1 < q; j1++ {
			for j2 := j1; j2 < q; j2++ {
				v := dst.At(j1, j2) + d*(s2.At(j1, j2)/s0-s1[j1]*s1[j2]/(s0*s0))
				dst.SetSym(j1, j2, v)
			}
		}
	}
}
