package linear

// Option configures a Fitter.
type Option func(*Fitter)

// WithMaxIter caps IRLS and Newton iterations. Default 30.
func WithMaxIter(n int) Option {
	return func(f *Fitter) {
		f.maxIter = n
	}
}

// WithTol sets the relative objective decrease that counts as converged. Default 1e-6.
func WithTol(tol float64) Option {
	return func(f *Fitter) {
		f.tol = tol
	}
}

// WithLambda sets the ridge penalty ½λ‖β‖². The intercept is never penalized. Default 0.
func WithLambda(lambda float64) Option {
	return func(f *Fitter) {
		f.lambda = lambda
	}
}
