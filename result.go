package abess

import (
	"github.com/adaizjx/abess/metrics"
)

// Result is the selected model and the path it was chosen from. Indices and
// coefficients refer to the original, unscreened and unnormalized predictors.
type Result struct {
	// Active lists the selected predictors, sorted.
	Active []int
	// ActiveGroups lists the labels of the selected groups, sorted. Without groups
	// the labels are the predictor indices.
	ActiveGroups []int
	// Coef has one entry per predictor, zero outside Active.
	Coef      []float64
	Intercept float64

	SupportSize int
	Lambda      float64
	TrainLoss   float64
	// TestLoss is the cross-validated held-out loss, NaN without cross-validation.
	TestLoss float64
	// Score is the value the model was selected on.
	Score float64
	// NullLoss is the training loss of the intercept-only model.
	NullLoss float64
	// Criteria reports every information criterion for the selected model.
	Criteria  metrics.Criteria
	Converged bool

	// Path holds one entry per fitted candidate, in path order.
	Path []PathEntry
	// Screened lists the predictors kept by screening, nil without screening.
	Screened []int
}

// PathEntry summarizes one candidate of the path.
type PathEntry struct {
	SupportSize int
	Lambda      float64
	Score       float64
	TrainLoss   float64
	TestLoss    float64
	Iterations  int
	Converged   bool
	Active      []int
	Coef        []float64
	Intercept   float64
}
