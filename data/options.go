package data

import "github.com/adaizjx/abess/family"

// Option configures New.
type Option func(*config)

type config struct {
	weights   []float64
	status    []float64
	groups    []int
	normalize bool
	family    family.Kind
}

func defaultConfig() config {
	return config{
		normalize: true,
		family:    family.Gaussian,
	}
}

// WithWeights sets per-sample weights. The default is all ones.
func WithWeights(w []float64) Option {
	return func(c *config) {
		c.weights = w
	}
}

// WithStatus sets the event indicator (1 event, 0 censored) for the Cox family.
func WithStatus(status []float64) Option {
	return func(c *config) {
		c.status = status
	}
}

// WithNormalize toggles predictor normalization. Enabled by default.
func WithNormalize(normalize bool) Option {
	return func(c *config) {
		c.normalize = normalize
	}
}

// WithFamily sets the loss family, which decides response centering and validation.
func WithFamily(kind family.Kind) Option {
	return func(c *config) {
		c.family = kind
	}
}

// WithGroups assigns a group label to every column. Columns with the same label are
// selected together and a support size counts groups. The default puts each column
// in its own group.
func WithGroups(labels []int) Option {
	return func(c *config) {
		c.groups = labels
	}
}
