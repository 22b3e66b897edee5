// Package synth generates sparse regression problems with a known support.
package synth

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/adaizjx/abess/family"
)

// Problem is a generated design with its true coefficients.
type Problem struct {
	X         *mat.Dense
	Y         []float64
	Status    []float64 // Cox only
	Coef      []float64 // length p, zero off the support
	Support   []int
	Intercept float64
}

// Config describes a problem. Support columns get Coef values in order.
type Config struct {
	N, P      int
	Support   []int
	Coef      []float64
	Intercept float64
	Noise     float64 // Gaussian noise standard deviation
	Rho       float64 // correlation between neighbouring columns, in [0, 1)
	Seed      uint64
}

// Generate draws X with AR(1)-correlated columns and a response of the given family.
func Generate(kind family.Kind, cfg Config) *Problem {
	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	rng := rand.New(src)
	z := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	X := mat.NewDense(cfg.N, cfg.P, nil)
	scale := math.Sqrt(1 - cfg.Rho*cfg.Rho)
	for i := 0; i < cfg.N; i++ {
		prev := z.Rand()
		X.Set(i, 0, prev)
		for j := 1; j < cfg.P; j++ {
			prev = cfg.Rho*prev + scale*z.Rand()
			X.Set(i, j, prev)
		}
	}

	coef := make([]float64, cfg.P)
	for k, j := range cfg.Support {
		coef[j] = cfg.Coef[k]
	}
	eta := make([]float64, cfg.N)
	mat.NewVecDense(cfg.N, eta).MulVec(X, mat.NewVecDense(cfg.P, coef))

	p := &Problem{
		X:         X,
		Y:         make([]float64, cfg.N),
		Coef:      coef,
		Support:   append([]int(nil), cfg.Support...),
		Intercept: cfg.Intercept,
	}
	noise := distuv.Normal{Mu: 0, Sigma: math.Max(cfg.Noise, 1e-12), Src: src}
	for i := range eta {
		e := eta[i] + cfg.Intercept
		switch kind {
		case family.Gaussian:
			p.Y[i] = e + noise.Rand()
		case family.Binomial:
			if rng.Float64() < 1/(1+math.Exp(-e)) {
				p.Y[i] = 1
			}
		case family.Poisson:
			p.Y[i] = distuv.Poisson{Lambda: math.Exp(e), Src: src}.Rand()
		case family.Cox:
			// exponential survival with hazard exp(η), uniform censoring
			p.Y[i] = distuv.Exponential{Rate: math.Exp(eta[i]), Src: src}.Rand()
		}
	}
	if kind == family.Cox {
		p.Status = make([]float64, cfg.N)
		censor := distuv.Exponential{Rate: 0.2, Src: src}
		for i := range p.Y {
			c := censor.Rand()
			if p.Y[i] <= c {
				p.Status[i] = 1
			} else {
				p.Y[i] = c
			}
		}
	}
	return p
}
