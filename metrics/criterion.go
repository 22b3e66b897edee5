// Package metrics scores path candidates and selects the final model.
//
// Candidates are scored either by an information criterion computed from the training
// loss or by K-fold cross-validated held-out loss; Select then picks the minimum.
package metrics

import (
	"math"
	"strings"

	"github.com/adaizjx/abess/family"
	"github.com/adaizjx/abess/path"
	"github.com/adaizjx/abess/pkg/errors"
)

// CriterionType names an information criterion.
type CriterionType int

const (
	AIC CriterionType = iota
	BIC
	EBIC
	GIC
)

// String implements fmt.Stringer.
func (t CriterionType) String() string {
	switch t {
	case AIC:
		return "aic"
	case BIC:
		return "bic"
	case EBIC:
		return "ebic"
	case GIC:
		return "gic"
	default:
		return "unknown"
	}
}

// ParseCriterionType parses a criterion name, case-insensitively.
func ParseCriterionType(s string) (CriterionType, error) {
	switch strings.ToLower(s) {
	case "aic":
		return AIC, nil
	case "bic":
		return BIC, nil
	case "ebic":
		return EBIC, nil
	case "gic":
		return GIC, nil
	}
	return 0, errors.NewValidationError("ic_type", "must be one of aic, bic, ebic, gic", s)
}

// DefaultEBICGamma is the EBIC weight on log C(p, k).
const DefaultEBICGamma = 0.5

// Criterion is an information criterion with its penalty multiplier.
type Criterion struct {
	Type CriterionType
	// Coef multiplies the penalty term.
	Coef float64
	// Gamma weighs log C(p, k) in EBIC.
	Gamma float64
}

// NewCriterion returns t with unit penalty multiplier and the default EBIC gamma.
func NewCriterion(t CriterionType) Criterion {
	return Criterion{Type: t, Coef: 1, Gamma: DefaultEBICGamma}
}

// Validate checks the multiplier and gamma.
func (c Criterion) Validate() error {
	if c.Type < AIC || c.Type > GIC {
		return errors.NewValidationError("ic_type", "unknown criterion", int(c.Type))
	}
	if !(c.Coef > 0) || math.IsInf(c.Coef, 0) {
		return errors.NewValidationError("ic_coef", "must be positive and finite", c.Coef)
	}
	if c.Gamma < 0 || math.IsNaN(c.Gamma) {
		return errors.NewValidationError("ebic_gamma", "must be non-negative", c.Gamma)
	}
	return nil
}

// Score returns -2·loglik + Coef·penalty for a model with k active columns out of p,
// fitted on n samples with training loss.
func (c Criterion) Score(kind family.Kind, loss float64, n, p, k int) float64 {
	return NegTwoLogLik(kind, loss, n) + c.Coef*Penalty(c.Type, n, p, k, c.Gamma)
}

// ScorePath scores every candidate.
func (c Criterion) ScorePath(kind family.Kind, n, p int, cands []*path.Candidate) []float64 {
	out := make([]float64, len(cands))
	for i, cand := range cands {
		out[i] = c.Score(kind, cand.TrainLoss, n, p, len(cand.Active))
	}
	return out
}

// NegTwoLogLik returns n·log(RSS/n) for the Gaussian family, where RSS = 2·loss, and
// 2·loss for the others.
func NegTwoLogLik(kind family.Kind, loss float64, n int) float64 {
	if kind != family.Gaussian {
		return 2 * loss
	}
	nf := float64(n)
	rss := math.Max(2*loss, math.SmallestNonzeroFloat64)
	return nf * math.Log(rss/nf)
}

// Penalty returns the complexity term of criterion t.
func Penalty(t CriterionType, n, p, k int, gamma float64) float64 {
	kf, nf, pf := float64(k), float64(n), float64(p)
	switch t {
	case AIC:
		return 2 * kf
	case BIC:
		return kf * math.Log(nf)
	case EBIC:
		return kf*math.Log(nf) + 2*gamma*logChoose(p, k)
	case GIC:
		return kf * math.Log(pf) * math.Log(math.Log(nf))
	}
	return math.NaN()
}

func logChoose(p, k int) float64 {
	if k <= 0 || k >= p {
		return 0
	}
	a, _ := math.Lgamma(float64(p + 1))
	b, _ := math.Lgamma(float64(k + 1))
	c, _ := math.Lgamma(float64(p - k + 1))
	return a - b - c
}

// Criteria holds every criterion for one model.
type Criteria struct {
	AIC, BIC, EBIC, GIC float64
}

// Report evaluates all four criteria with unit multiplier and the default gamma.
func Report(kind family.Kind, loss float64, n, p, k int) Criteria {
	score := func(t CriterionType) float64 {
		return NewCriterion(t).Score(kind, loss, n, p, k)
	}
	return Criteria{
		AIC:  score(AIC),
		BIC:  score(BIC),
		EBIC: score(EBIC),
		GIC:  score(GIC),
	}
}
