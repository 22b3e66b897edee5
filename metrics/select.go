package metrics

import (
	"math"

	"github.com/adaizjx/abess/path"
	"github.com/adaizjx/abess/pkg/errors"
	"github.com/adaizjx/abess/pkg/log"
)

// Select returns the index of the candidate with the lowest score. NaN scores rank last.
// Ties go to the smaller support size, then the smaller lambda, then the
// lexicographically smaller active set.
func Select(scores []float64, cands []*path.Candidate) (int, error) {
	if len(cands) == 0 {
		return -1, errors.NewEmptyPathError("metrics.Select")
	}
	if len(scores) != len(cands) {
		return -1, errors.NewDimensionError("metrics.Select", len(cands), len(scores), 0)
	}

	best := 0
	for i := 1; i < len(cands); i++ {
		if better(scores[i], cands[i], scores[best], cands[best]) {
			best = i
		}
	}

	log.GetLoggerWithName("metrics").Debug("model selected",
		log.OperationKey, log.OperationSelect,
		log.CandidatesKey, len(cands),
		log.SupportSizeKey, cands[best].Size,
		log.LambdaKey, cands[best].Lambda,
		log.ScoreKey, scores[best],
	)
	return best, nil
}

func better(sa float64, a *path.Candidate, sb float64, b *path.Candidate) bool {
	if math.IsNaN(sa) {
		sa = math.Inf(1)
	}
	if math.IsNaN(sb) {
		sb = math.Inf(1)
	}
	if sa != sb {
		return sa < sb
	}
	if a.Size != b.Size {
		return a.Size < b.Size
	}
	if a.Lambda != b.Lambda {
		return a.Lambda < b.Lambda
	}
	for i := 0; i < len(a.Active) && i < len(b.Active); i++ {
		if a.Active[i] != b.Active[i] {
			return a.Active[i] < b.Active[i]
		}
	}
	return len(a.Active) < len(b.Active)
}
