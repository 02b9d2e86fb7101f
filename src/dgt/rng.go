package dgt

import (
	"math/rand"
	"sync"
)

// lockedRand adapts *rand.Rand to randSource with its own mutex, since
// math/rand.Rand is not safe for concurrent use by multiple goroutines
// (the worker's Push/PushPull may run concurrently, spec.md §5).
type lockedRand struct {
	mu  sync.Mutex
	src *rand.Rand
}

// newRand seeds a worker-local random source. Two separate nondeterminism
// sources in this package (the SET_RANDOM shuffle and the classifier's
// tie-break) draw from the same injected source so tests can seed both for
// reproducibility (spec.md §9 design note).
func newRand(seed int64) *lockedRand {
	return &lockedRand{src: rand.New(rand.NewSource(seed))}
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Intn(n)
}

func (r *lockedRand) Shuffle(n int, swap func(i, j int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.src.Shuffle(n, swap)
}
