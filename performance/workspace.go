// Package performance provides scratch memory for the numeric kernels.
//
// A Workspace is a bump allocator owned by one goroutine for the duration of one fit.
// A Pool recycles Workspaces between fits so that concurrent path entries and splicing
// trials do not share buffers and do not allocate their scratch space from scratch.
package performance

import (
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"
)

const minChunk = 1024

// WorkspaceStats counts the allocations served by a Workspace.
type WorkspaceStats struct {
	Requests int64 // slices handed out
	Floats   int64 // float64 elements handed out
	Grows    int64 // backing chunks allocated
	Peak     int   // largest offset reached in the current chunk
}

// Workspace hands out zeroed float64 slices from a growing chunk.
// Slices stay valid until the next Reset. A Workspace is not safe for concurrent use.
type Workspace struct {
	buf   []float64
	off   int
	stats WorkspaceStats
}

// NewWorkspace returns a Workspace with room for capacity elements.
func NewWorkspace(capacity int) *Workspace {
	if capacity < minChunk {
		capacity = minChunk
	}
	return &Workspace{buf: make([]float64, capacity)}
}

// Floats returns a zeroed slice of length n.
func (w *Workspace) Floats(n int) []float64 {
	if w == nil {
		return make([]float64, n)
	}
	w.stats.Requests++
	w.stats.Floats += int64(n)
	if w.off+n > len(w.buf) {
		size := 2 * len(w.buf)
		if size < n {
			size = n
		}
		if size < minChunk {
			size = minChunk
		}
		// earlier slices keep the old chunk alive until Reset
		w.buf = make([]float64, size)
		w.off = 0
		w.stats.Grows++
	}
	s := w.buf[w.off : w.off+n : w.off+n]
	for i := range s {
		s[i] = 0
	}
	w.off += n
	if w.off > w.stats.Peak {
		w.stats.Peak = w.off
	}
	return s
}

// Dense returns a zeroed r×c matrix backed by the workspace.
func (w *Workspace) Dense(r, c int) *mat.Dense {
	return mat.NewDense(r, c, w.Floats(r*c))
}

// Vec returns a zeroed vector of length n backed by the workspace.
func (w *Workspace) Vec(n int) *mat.VecDense {
	return mat.NewVecDense(n, w.Floats(n))
}

// Reset makes the whole current chunk available again.
func (w *Workspace) Reset() {
	w.off = 0
}

// Stats returns the allocation counters.
func (w *Workspace) Stats() WorkspaceStats {
	return w.stats
}

// PoolStats tracks Pool reuse.
type PoolStats struct {
	Created      int64
	Recycled     int64
	CurrentInUse int64
	ReuseRate    float64
}

// Pool recycles Workspaces. It is safe for concurrent use.
type Pool struct {
	pool     sync.Pool
	capacity int
	created  int64
	recycled int64
	inUse    int64
}

// NewPool returns a Pool whose new Workspaces start with capacity elements.
func NewPool(capacity int) *Pool {
	p := &Pool{capacity: capacity}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.created, 1)
		return NewWorkspace(p.capacity)
	}
	return p
}

// Get returns a reset Workspace owned by the caller until Put.
func (p *Pool) Get() *Workspace {
	atomic.AddInt64(&p.inUse, 1)
	w := p.pool.Get().(*Workspace)
	w.Reset()
	return w
}

// Put returns w to the pool. w must not be used afterwards.
func (p *Pool) Put(w *Workspace) {
	if w == nil {
		return
	}
	atomic.AddInt64(&p.inUse, -1)
	atomic.AddInt64(&p.recycled, 1)
	w.Reset()
	p.pool.Put(w)
}

// Stats returns the pool counters.
func (p *Pool) Stats() PoolStats {
	created := atomic.LoadInt64(&p.created)
	recycled := atomic.LoadInt64(&p.recycled)
	rate := 0.0
	if created > 0 {
		rate = float64(recycled) / float64(created)
	}
	return PoolStats{
		Created:      created,
		Recycled:     recycled,
		CurrentInUse: atomic.LoadInt64(&p.inUse),
		ReuseRate:    rate,
	}
}
