package linear

import (
	"testing"

	"github.com/adaizjx/abess/data"
	"github.com/adaizjx/abess/family"
	"github.com/adaizjx/abess/internal/synth"
	"github.com/adaizjx/abess/performance"
)

func benchmarkFit(b *testing.B, kind family.Kind, n, p int) {
	prob := synth.Generate(kind, synth.Config{
		N: n, P: p, Support: []int{0, 1, 2}, Coef: []float64{0.5, -0.5, 0.25},
		Noise: 1, Seed: 42,
	})
	opts := []data.Option{data.WithFamily(kind)}
	if prob.Status != nil {
		opts = append(opts, data.WithStatus(prob.Status))
	}
	d, err := data.New(prob.X, prob.Y, opts...)
	if err != nil {
		b.Fatal(err)
	}
	f, err := NewFitter(d.Family)
	if err != nil {
		b.Fatal(err)
	}
	active := make([]int, p)
	for j := range active {
		active[j] = j
	}
	pool := performance.NewPool(n * (p + 1))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ws := pool.Get()
		if _, err := f.Fit(Problem{X: d.X, Resp: d.Resp, Active: active, Workspace: ws}); err != nil {
			b.Fatal(err)
		}
		pool.Put(ws)
	}
}

func BenchmarkFit(b *testing.B) {
	sizes := []struct {
		name string
		kind family.Kind
		n, p int
	}{
		{"Gaussian_1000x10", family.Gaussian, 1000, 10},
		{"Gaussian_10000x20", family.Gaussian, 10000, 20},
		{"Binomial_1000x10", family.Binomial, 1000, 10},
		{"Poisson_1000x10", family.Poisson, 1000, 10},
		{"Cox_500x5", family.Cox, 500, 5},
	}
	for _, s := range sizes {
		b.Run(s.name, func(b *testing.B) {
			benchmarkFit(b, s.kind, s.n, s.p)
		})
	}
}
