package linear

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/adaizjx/abess/family"
	"github.com/adaizjx/abess/pkg/errors"
	"github.com/adaizjx/abess/pkg/log"
)

// fitCox minimizes the penalized Breslow loss with gonum's Newton method. Newton adds a
// multiple of the identity whenever the Hessian is not positive definite.
func (f *Fitter) fitCox(p Problem) (*Result, error) {
	k := len(p.Active)
	if k == 0 {
		res := f.evaluate(p, 0, nil)
		res.Converged = true
		return res, nil
	}

	n := p.Resp.Len()
	XA := p.Workspace.Dense(n, k)
	for i := 0; i < n; i++ {
		row := p.X.RawRowView(i)
		for c, j := range p.Active {
			XA.Set(i, c, row[j])
		}
	}

	eta := make([]float64, n)
	g := make([]float64, n)
	h := make([]float64, n)
	linpred := func(beta []float64) {
		mat.NewVecDense(n, eta).MulVec(XA, mat.NewVecDense(k, beta))
	}

	problem := optimize.Problem{
		Func: func(beta []float64) float64 {
			linpred(beta)
			return f.family.Loss(p.Resp, eta) + 0.5*f.lambda*floats.Dot(beta, beta)
		},
		Grad: func(grad, beta []float64) {
			linpred(beta)
			f.family.Derivatives(p.Resp, eta, g, h)
			mat.NewVecDense(k, grad).MulVec(XA.T(), mat.NewVecDense(n, g))
			floats.AddScaled(grad, f.lambda, beta)
		},
		Hess: func(hess *mat.SymDense, beta []float64) {
			linpred(beta)
			family.CoxHessian(p.Resp, eta, XA, hess)
			for j := 0; j < k; j++ {
				hess.SetSym(j, j, hess.At(j, j)+f.lambda)
			}
		},
	}

	init := make([]float64, k)
	if p.Init != nil {
		copy(init, p.Init)
	}
	settings := &optimize.Settings{
		MajorIterations:   f.maxIter,
		GradientThreshold: 1e-9,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   f.tol,
			Iterations: 1,
		},
	}

	result, err := optimize.Minimize(problem, init, settings, &optimize.Newton{})
	if result == nil {
		return nil, errors.NewModelError("Fitter.fitCox", "newton failed", err)
	}

	res := f.evaluate(p, 0, result.X)
	res.Iterations = result.MajorIterations
	if result.Status == optimize.IterationLimit {
		f.logger.Debug("cox newton hit iteration cap",
			log.IterationKey, f.maxIter,
			log.LossKey, res.Loss,
			log.SupportSizeKey, k,
		)
		return res, errors.NewNonConvergenceError("Newton", f.maxIter, "")
	}
	if err != nil {
		// line search failures leave the best point found so far
		return res, errors.NewNonConvergenceError("Newton", result.MajorIterations, err.Error())
	}
	res.Converged = true
	return res, nil
}
