package family

import (
	"math"

	"github.com/adaizjx/abess/pkg/errors"
)

type gaussian struct{}

func (gaussian) Kind() Kind         { return Gaussian }
func (gaussian) HasIntercept() bool { return true }
func (gaussian) Mean(eta float64) float64 {
	return eta
}

// Loss is half the weighted residual sum of squares.
func (gaussian) Loss(r *Response, eta []float64) float64 {
	var loss float64
	for i, y := range r.Y {
		d := y - eta[i]
		loss += r.W[i] * d * d
	}
	return 0.5 * loss
}

func (gaussian) Derivatives(r *Response, eta, g, h []float64) {
	for i, y := range r.Y {
		g[i] = r.W[i] * (eta[i] - y)
		h[i] = r.W[i]
	}
}

func (gaussian) InitEta(r *Response) float64 {
	return weightedMean(r)
}

func (gaussian) Validate(r *Response) error {
	return nil
}

type binomial struct{}

func (binomial) Kind() Kind         { return Binomial }
func (binomial) HasIntercept() bool { return true }
func (binomial) Mean(eta float64) float64 {
	return errors.Sigmoid(eta)
}

func (binomial) Loss(r *Response, eta []float64) float64 {
	var loss float64
	for i, y := range r.Y {
		if r.W[i] == 0 {
			continue
		}
		loss += r.W[i] * (errors.Log1pExp(eta[i]) - y*eta[i])
	}
	return loss
}

func (binomial) Derivatives(r *Response, eta, g, h []float64) {
	for i, y := range r.Y {
		mu := errors.Sigmoid(eta[i])
		g[i] = r.W[i] * (mu - y)
		h[i] = r.W[i] * math.Max(mu*(1-mu), hFloor)
	}
}

func (binomial) InitEta(r *Response) float64 {
	p := errors.ClipValue(weightedMean(r), 1e-10, 1-1e-10)
	return math.Log(p / (1 - p))
}

func (binomial) Validate(r *Response) error {
	for _, y := range r.Y {
		if y != 0 && y != 1 {
			return errors.NewValidationError("y", "binomial response must be 0 or 1", y)
		}
	}
	return nil
}

type poisson struct{}

func (poisson) Kind() Kind         { return Poisson }
func (poisson) HasIntercept() bool { return true }
func (poisson) Mean(eta float64) float64 {
	return errors.StabilizeExp(eta)
}

func (poisson) Loss(r *Response, eta []float64) float64 {
	var loss float64
	for i, y := range r.Y {
		if r.W[i] == 0 {
			continue
		}
		loss += r.W[i] * (errors.StabilizeExp(eta[i]) - y*eta[i])
	}
	return loss
}

func (poisson) Derivatives(r *Response, eta, g, h []float64) {
	for i, y := range r.Y {
		mu := errors.StabilizeExp(eta[i])
		g[i] = r.W[i] * (mu - y)
		h[i] = r.W[i] * math.Max(mu, hFloor)
	}
}

func (poisson) InitEta(r *Response) float64 {
	return errors.StabilizeLog(weightedMean(r))
}

func (poisson) Validate(r *Response) error {
	for _, y := range r.Y {
		if y < 0 {
			return errors.NewValidationError("y", "poisson response must be non-negative", y)
		}
	}
	return nil
}

func weightedMean(r *Response) float64 {
	if r.sumW == 0 {
		return 0
	}
	var s float64
	for i, y := range r.Y {
		s += r.W[i] * y
	}
	return s / r.sumW
}
