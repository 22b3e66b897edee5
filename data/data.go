// Package data holds the validated, normalized view of a problem that every fit reads.
package data

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/adaizjx/abess/family"
	"github.com/adaizjx/abess/pkg/errors"
	"github.com/adaizjx/abess/preprocessing"
)

// Data is an immutable design matrix and response. Its X is already normalized and, for
// the Gaussian family, its response is centered. Data is shared read-only by concurrent fits.
type Data struct {
	// X is the n×p working design matrix.
	X *mat.Dense
	// Resp holds the (possibly centered) response, the weights and the Cox status.
	Resp *family.Response
	// Norm maps working coefficients back to the original scale.
	Norm *preprocessing.Normalizer
	// Family is the loss family the data was validated for.
	Family family.Family
	// Index maps working columns to original columns. Nil means the identity.
	Index []int
	// Groups partitions the working columns. Support sizes count groups.
	Groups *Groups

	n, p int
}

// New validates (X, y) and the options and returns the normalized Data.
//
// Errors: DimensionMismatch when y, weights or status disagree with the rows of X;
// InvalidWeight for a negative or non-finite weight or a zero total weight;
// NumericalInstability for NaN or Inf
// in X or y; InvalidParameter when y is not admissible for the family.
func New(X mat.Matrix, y []float64, opts ...Option) (*Data, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	n, p := X.Dims()
	if n == 0 || p == 0 {
		return nil, errors.NewModelError("data.New", "empty data", errors.ErrEmptyData)
	}
	if len(y) != n {
		return nil, errors.NewDimensionError("data.New", n, len(y), 0)
	}

	w := cfg.weights
	if w == nil {
		w = make([]float64, n)
		for i := range w {
			w[i] = 1
		}
	} else {
		if len(w) != n {
			return nil, errors.NewDimensionError("data.New", n, len(w), 0)
		}
		var total float64
		for i, v := range w {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.NewInvalidWeightError("data.New", i, v)
			}
			total += v
		}
		if total == 0 {
			return nil, errors.NewInvalidWeightError("data.New", -1, total)
		}
		w = append([]float64(nil), w...)
	}
	if cfg.status != nil && len(cfg.status) != n {
		return nil, errors.NewDimensionError("data.New", n, len(cfg.status), 0)
	}
	groups := Singletons(p)
	if cfg.groups != nil {
		g, err := NewGroups(cfg.groups, p)
		if err != nil {
			return nil, err
		}
		groups = g
	}

	if err := errors.CheckMatrix("data.New", X, n, p, 0); err != nil {
		return nil, err
	}
	if err := errors.CheckNumericalStability("data.New", y, 0); err != nil {
		return nil, err
	}

	fam, err := family.New(cfg.family)
	if err != nil {
		return nil, err
	}
	var status []float64
	if cfg.status != nil {
		status = append([]float64(nil), cfg.status...)
	}
	raw := family.NewResponse(append([]float64(nil), y...), w, status)
	if err := fam.Validate(raw); err != nil {
		return nil, err
	}

	rule := interceptRule(cfg.family)
	var norm *preprocessing.Normalizer
	if cfg.normalize {
		norm = preprocessing.NewNormalizer(rule)
		if err := norm.FitWeighted(X, y, w); err != nil {
			return nil, err
		}
	} else {
		norm = preprocessing.NewIdentity(p, rule)
	}

	Xn, err := norm.Transform(X)
	if err != nil {
		return nil, err
	}

	return &Data{
		X:      Xn,
		Resp:   family.NewResponse(norm.TransformResponse(y), w, status),
		Norm:   norm,
		Family: fam,
		Groups: groups,
		n:      n,
		p:      p,
	}, nil
}

func interceptRule(kind family.Kind) preprocessing.InterceptRule {
	switch kind {
	case family.Gaussian:
		return preprocessing.InterceptCentered
	case family.Cox:
		return preprocessing.InterceptNone
	default:
		return preprocessing.InterceptLink
	}
}

// N returns the number of samples.
func (d *Data) N() int { return d.n }

// P returns the number of working columns.
func (d *Data) P() int { return d.p }

// Original maps a working column to its original column.
func (d *Data) Original(j int) int {
	if d.Index == nil {
		return j
	}
	return d.Index[j]
}

// Rows returns the Data restricted to the samples idx, in idx order.
// Normalization statistics are shared with d.
func (d *Data) Rows(idx []int) *Data {
	X := mat.NewDense(len(idx), d.p, nil)
	for k, i := range idx {
		X.SetRow(k, d.X.RawRowView(i))
	}
	return &Data{
		X:      X,
		Resp:   d.Resp.Subset(idx),
		Norm:   d.Norm,
		Family: d.Family,
		Index:  d.Index,
		Groups: d.Groups,
		n:      len(idx),
		p:      d.p,
	}
}

// Columns returns the Data restricted to the working columns cols, which must be sorted.
// Original indices are composed so that Original still reports unscreened columns, and
// groups keep their labels.
func (d *Data) Columns(cols []int) *Data {
	X := mat.NewDense(d.n, len(cols), nil)
	for k, j := range cols {
		for i := 0; i < d.n; i++ {
			X.Set(i, k, d.X.At(i, j))
		}
	}
	index := make([]int, len(cols))
	for k, j := range cols {
		index[k] = d.Original(j)
	}
	return &Data{
		X:      X,
		Resp:   d.Resp,
		Norm:   d.Norm,
		Family: d.Family,
		Index:  index,
		Groups: d.Groups.restrict(cols),
		n:      d.n,
		p:      len(cols),
	}
}

// OriginalP returns the number of columns before screening.
func (d *Data) OriginalP() int { return len(d.Norm.XMean) }

// Expand scatters working coefficients into a vector over the original columns.
func (d *Data) Expand(coef []float64) []float64 {
	out := make([]float64, d.OriginalP())
	for j, v := range coef {
		out[d.Original(j)] = v
	}
	return out
}
