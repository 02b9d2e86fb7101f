package dgt

import (
	"sort"

	"github.com/liuxiaotiao/DGT/src/dgtlogs"
)

// pullCompletion builds the callback that runs once a pull's (or
// pushpull's) replies have all arrived: it sorts the per-server reply
// fragments by their leading key, verifies they exactly cover the
// requested keys, concatenates them in request order, and erases the
// pending-pull bookkeeping before invoking the caller's own callback
// (spec.md §4.7).
func (w *Worker[Val]) pullCompletion(ts int, keys []Key, vals *[]Val, lens *[]int, userCB Callback) Callback {
	return func() {
		w.mu.Lock()
		entries := w.recvKVs[ts]
		w.mu.Unlock()

		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Keys[0] < entries[j].Keys[0]
		})

		totalKeys, totalVals := 0, 0
		for _, e := range entries {
			if len(e.Keys) == 0 {
				continue
			}
			span := FindRange(keys, e.Keys[0], e.Keys[len(e.Keys)-1]+1)
			if int(span.Size()) != len(e.Keys) {
				w.fatal("pull reassembly: unmatched key span from one server: got %d keys, range covers %d", len(e.Keys), span.Size())
				return
			}
			if lens != nil && len(e.Lens) != len(e.Keys) {
				w.fatal("pull reassembly: lens length %d does not match keys length %d", len(e.Lens), len(e.Keys))
				return
			}
			totalKeys += len(e.Keys)
			totalVals += len(e.Vals)
		}
		if totalKeys != len(keys) {
			w.fatal("pull reassembly: lost some servers: got %d of %d requested keys", totalKeys, len(keys))
			return
		}

		if len(*vals) == 0 {
			*vals = make([]Val, totalVals)
		} else if len(*vals) != totalVals {
			w.fatal("pull reassembly: output value buffer size %d does not match %d", len(*vals), totalVals)
			return
		}
		var plens []int
		if lens != nil {
			if len(*lens) == 0 {
				*lens = make([]int, len(keys))
			} else if len(*lens) != len(keys) {
				w.fatal("pull reassembly: output lens buffer size %d does not match %d", len(*lens), len(keys))
				return
			}
			plens = *lens
		}

		voff, loff := 0, 0
		for _, e := range entries {
			copy((*vals)[voff:], e.Vals)
			voff += len(e.Vals)
			if plens != nil {
				copy(plens[loff:], e.Lens)
				loff += len(e.Lens)
			}
		}

		w.mu.Lock()
		delete(w.recvKVs, ts)
		w.mu.Unlock()

		if userCB != nil {
			userCB()
		}
	}
}

// fatal logs and panics with a FatalError, matching the original's CHECK
// macros: reassembly coverage failure is a precondition violation, not an
// expected-failure return.
func (w *Worker[Val]) fatal(format string, a ...interface{}) {
	err := fatalf(format, a...)
	w.log.L(dgtlogs.Reassembler, "%v", err)
	panic(err)
}
