package dgt

// Process handles one inbound message for a pending request: a pull reply
// (or a pushpull's combined reply) is buffered for reassembly, then the
// response is counted against the request's target. When the target is
// reached, the callback runs (spec.md §4.6, §5).
func (w *Worker[Val]) Process(msg *Message[Val]) {
	ts := msg.Meta.Timestamp
	if msg.Meta.Pull {
		kvs := KVPairs[Val]{Keys: msg.Keys, Vals: msg.Vals, Lens: msg.Lens}
		w.mu.Lock()
		w.recvKVs[ts] = append(w.recvKVs[ts], kvs)
		w.mu.Unlock()
	}
	if w.tr.addResponse(ts) {
		w.RunCallback(ts)
	}
}
