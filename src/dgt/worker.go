package dgt

import (
	"sync"

	"github.com/liuxiaotiao/DGT/src/dgtconfig"
	"github.com/liuxiaotiao/DGT/src/dgtlogs"
)

// Callback runs exactly once, when a Push/Pull/PushPull request completes.
type Callback func()

// AbsFunc extracts the scalar magnitude of one value element, used by the
// contribution scorer. Go generics have no numeric-abs constraint, so the
// caller supplies it once at construction (e.g. math.Abs for float32/64).
type AbsFunc[Val any] func(Val) float64

// Worker is a parameter-server worker: the send path of spec.md, §§2-7.
// Push, Pull, PushPull, Wait and inbound delivery (Process) may all run
// concurrently.
type Worker[Val any] struct {
	transport Transport[Val]
	topology  Topology
	abs       AbsFunc[Val]
	cfg       dgtconfig.Static
	log       dgtlogs.TopicLogger
	rng       randSource

	slicer Slicer[Val]
	tr     *tracker
	scorer *scorer
	rate   *rateController

	// mu guards callbacks and recvKVs only: the callback registry state
	// machine (pending -> satisfied -> retired), per spec.md §9 design
	// note and §5's locking discipline.
	mu        sync.Mutex
	callbacks map[int]Callback
	recvKVs   map[int][]KVPairs[Val]

	// dgtMu guards the DGT-specific step-boundary state (push_op_num, the
	// active drop rate and whether DGT has been initialized). Kept
	// separate from mu so the callback registry is never held while
	// dispatching blocks, and so a Push computing its step boundary never
	// blocks a concurrent Pull's reassembly bookkeeping.
	dgtMu          sync.Mutex
	pushOpNum      int64
	dmlcK          float64
	dgtInitialized bool
	dgtCfg         dgtconfig.DGT
}

// Options configures a new Worker.
type Options[Val any] struct {
	Transport Transport[Val]
	Topology  Topology
	Abs       AbsFunc[Val]
	Config    dgtconfig.Static
	LossFeed  LossFeed // optional; defaults to always-zero
	Logger    dgtlogs.TopicLogger
	Seed      int64
}

// NewWorker builds a Worker with the default slicer. Callers with a
// topology-aware partition scheme may replace it via SetSlicer.
func NewWorker[Val any](opts Options[Val]) *Worker[Val] {
	w := &Worker[Val]{
		transport: opts.Transport,
		topology:  opts.Topology,
		abs:       opts.Abs,
		cfg:       opts.Config,
		log:       opts.Logger,
		rng:       newRand(opts.Seed),
		slicer:    DefaultSlicer[Val],
		tr:        newTracker(),
		scorer:    newScorer(opts.Config.ContriAlpha),
		callbacks: make(map[int]Callback),
		recvKVs:   make(map[int][]KVPairs[Val]),
	}
	w.rate = newRateController(opts.LossFeed, false, 1, 0)
	return w
}

// SetSlicer installs a user-defined slicer in place of DefaultSlicer.
func (w *Worker[Val]) SetSlicer(s Slicer[Val]) { w.slicer = s }

// Push sends keys/vals (and optional lens) to all server shards. It
// returns immediately; use Wait or cb to know when the push lands.
func (w *Worker[Val]) Push(keys []Key, vals []Val, lens []int, cmd int, cb Callback, priority int) int {
	kvs := KVPairs[Val]{Keys: keys, Vals: vals, Lens: lens, Priority: priority}
	ts, shards, err := w.prepare(kvs)
	w.panicOnFatal(err)
	if cb != nil {
		w.registerCallback(ts, cb)
	}
	w.maybeRunNow(ts)
	w.finishDispatch(ts, w.dispatchPush(ts, cmd, false, shards))
	return ts
}

// Pull requests the values for keys from the server shards that own them.
// vals (and lens, if non-nil) are filled in once the pull completes.
func (w *Worker[Val]) Pull(keys []Key, vals *[]Val, lens *[]int, cmd int, cb Callback, priority int) int {
	kvs := KVPairs[Val]{Keys: keys, Priority: priority}
	ts, shards, err := w.prepare(kvs)
	w.panicOnFatal(err)
	w.registerCallback(ts, w.pullCompletion(ts, keys, vals, lens, cb))
	w.maybeRunNow(ts)
	w.finishDispatch(ts, w.dispatchPullRequests(ts, cmd, shards))
	return ts
}

// PushPull pushes keys/vals then pulls the (possibly updated) values back
// into outs. If *outs is empty it is allocated with len(vals) elements; the
// reassembled values are written into it directly.
func (w *Worker[Val]) PushPull(keys []Key, vals []Val, outs *[]Val, lens *[]int, cmd int, cb Callback, priority int) int {
	if len(*outs) == 0 {
		*outs = make([]Val, len(vals))
	}
	kvs := KVPairs[Val]{Keys: keys, Vals: vals, Lens: nil, Priority: priority}
	if lens != nil {
		kvs.Lens = *lens
	}
	ts, shards, err := w.prepare(kvs)
	w.panicOnFatal(err)
	w.registerCallback(ts, w.pullCompletion(ts, keys, outs, lens, cb))
	w.maybeRunNow(ts)
	w.finishDispatch(ts, w.dispatchPush(ts, cmd, true, shards))
	return ts
}

// Wait blocks until timestamp's request has been fully satisfied, or
// returns the transport error that aborted it (spec.md §7).
func (w *Worker[Val]) Wait(timestamp int) error { return w.tr.wait(timestamp) }

// finishDispatch handles the outcome of a dispatch call: a precondition
// violation (*FatalError) panics, matching every other fatal path in this
// package; any other error is a channel-0 transport failure, which is
// recorded on the tracker so a concurrent or later Wait(ts) observes it
// instead of hanging forever (spec.md §7's "propagated to the tracker").
func (w *Worker[Val]) finishDispatch(ts int, err error) {
	if err == nil {
		return
	}
	if fe, ok := err.(*FatalError); ok {
		panic(fe)
	}
	w.tr.fail(ts, err)
}

func (w *Worker[Val]) panicOnFatal(err error) {
	if err == nil {
		return
	}
	if fe, ok := err.(*FatalError); ok {
		panic(fe)
	}
}

// maybeRunNow runs ts's callback immediately if the tracker already
// considers it satisfied (the all-shards-skipped case).
func (w *Worker[Val]) maybeRunNow(ts int) {
	if w.tr.already(ts) {
		w.RunCallback(ts)
	}
}

func (w *Worker[Val]) registerCallback(ts int, cb Callback) {
	if cb == nil {
		return
	}
	w.mu.Lock()
	w.callbacks[ts] = cb
	w.mu.Unlock()
}

// RunCallback invokes and retires ts's callback exactly once. The callback
// runs outside the lock so it may itself call back into the Worker without
// deadlocking (spec.md §5).
func (w *Worker[Val]) RunCallback(timestamp int) {
	w.mu.Lock()
	cb, ok := w.callbacks[timestamp]
	w.mu.Unlock()
	if !ok {
		return
	}
	cb()
	w.mu.Lock()
	delete(w.callbacks, timestamp)
	w.mu.Unlock()
}
