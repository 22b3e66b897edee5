package splicing

import (
	"math"

	"github.com/adaizjx/abess/data"
	"github.com/adaizjx/abess/pkg/errors"
)

const (
	// DefaultExchange is the largest number of variables swapped in one trial.
	DefaultExchange = 5
	// DefaultMaxIter caps outer splicing iterations.
	DefaultMaxIter = 20
)

// Config holds the splicing parameters shared by every support size of a path.
type Config struct {
	// Exchange is the cap C on the number of variables swapped per trial.
	Exchange int
	// MaxIter caps outer iterations.
	MaxIter int
	// Tau is the loss decrease a trial must beat. Zero selects 0.01·k·log p·log log n.
	Tau float64
	// AlwaysSelect lists working columns that never leave the active set. The whole
	// group of each listed column is kept.
	AlwaysSelect []int
	// Workers bounds concurrent trial fits; 1 runs trials in order.
	Workers int
}

// DefaultConfig returns the default parameters.
func DefaultConfig() Config {
	return Config{
		Exchange: DefaultExchange,
		MaxIter:  DefaultMaxIter,
		Workers:  1,
	}
}

// Validate checks the parameters against a problem with p working columns.
func (c Config) Validate(p int) error {
	if c.Exchange < 1 {
		return errors.NewValidationError("exchange_num", "must be at least 1", c.Exchange)
	}
	if c.MaxIter < 1 {
		return errors.NewValidationError("max_iter", "must be at least 1", c.MaxIter)
	}
	if c.Tau < 0 || math.IsNaN(c.Tau) {
		return errors.NewValidationError("tau", "must be non-negative", c.Tau)
	}
	seen := make(map[int]bool, len(c.AlwaysSelect))
	for _, j := range c.AlwaysSelect {
		if j < 0 || j >= p {
			return errors.NewValidationError("always_select", "index out of range", j)
		}
		if seen[j] {
			return errors.NewValidationError("always_select", "duplicate index", j)
		}
		seen[j] = true
	}
	return nil
}

// ForcedGroups returns the sorted groups of g holding an always-selected column.
// Out-of-range indices are ignored; Validate reports them.
func (c Config) ForcedGroups(g *data.Groups) []int {
	cols := make([]int, 0, len(c.AlwaysSelect))
	for _, j := range c.AlwaysSelect {
		if j >= 0 && j < g.P() {
			cols = append(cols, j)
		}
	}
	return g.Cover(cols)
}

// threshold returns the loss decrease a trial must exceed, floored at 1e-10·|loss|.
// k and p count groups.
func (c Config) threshold(k, n, p int, loss float64) float64 {
	tau := c.Tau
	if tau == 0 {
		tau = defaultTau(k, n, p)
	}
	return math.Max(tau, 1e-10*math.Abs(loss))
}

func defaultTau(k, n, p int) float64 {
	if p < 2 || n < 3 {
		return 0
	}
	return 0.01 * float64(k) * math.Log(float64(p)) * math.Log(math.Log(float64(n)))
}
