package dgt

import (
	"github.com/liuxiaotiao/DGT/src/dgtconfig"
	"github.com/liuxiaotiao/DGT/src/dgtlogs"
)

// prepare slices kvs by server key range and allocates a tracker entry with
// a target response count of one per non-empty shard, pre-crediting every
// skipped (empty) shard implicitly (a zero target is satisfied on
// creation). The caller must register a callback before dispatching, so an
// in-process synchronous transport can never satisfy the tracker before
// the callback exists (spec.md §4.5 step 2).
func (w *Worker[Val]) prepare(kvs KVPairs[Val]) (ts int, shards []Shard[Val], err error) {
	ranges := w.topology.ServerKeyRanges()
	shards, err = w.slicer(kvs, ranges)
	if err != nil {
		return 0, nil, err
	}
	skipped := 0
	for _, s := range shards {
		if !s.NonEmpty {
			skipped++
		}
	}
	nonEmpty := len(shards) - skipped
	ts = w.tr.newRequest(nonEmpty)
	return ts, shards, nil
}

// dispatchPush walks the non-empty shards in server-rank order, advancing
// the step boundary exactly where a shard's own first key is 0, and
// emitting either a first-push bootstrap or a fragmented block-push for
// each, per spec.md §4.5.
func (w *Worker[Val]) dispatchPush(ts, cmd int, pull bool, shards []Shard[Val]) error {
	for i, s := range shards {
		if !s.NonEmpty {
			continue
		}
		recver := w.topology.ServerRankToID(i)

		opNum, isFirstOp, err := w.advanceStepBoundary(s.Batch)
		if err != nil {
			return err
		}

		var sendErr error
		if isFirstOp {
			sendErr = w.sendFirstPush(ts, cmd, recver, pull, opNum, s.Batch)
		} else {
			sendErr = w.sendBlockPush(ts, cmd, recver, pull, opNum, s.Batch)
		}
		if sendErr != nil {
			return sendErr
		}
	}
	return nil
}

// advanceStepBoundary detects keys[0]==0 on this shard and, if so,
// increments push_op_num and refreshes (or initializes) the rate
// controller. It returns the push_op_num to use for this shard and whether
// it is the first op; shards that don't themselves carry key 0 get the
// current counter unchanged — matching the original, where push_op_num==1
// routes every shard of the very first call through the first-push path.
func (w *Worker[Val]) advanceStepBoundary(batch KVPairs[Val]) (opNum int64, isFirstOp bool, err error) {
	w.dgtMu.Lock()
	defer w.dgtMu.Unlock()

	if len(batch.Keys) > 0 && batch.Keys[0] == 0 {
		w.pushOpNum++
		if w.pushOpNum > 1 {
			w.dmlcK = w.rate.refresh()
		} else if err = w.initDGTLocked(); err != nil {
			return w.pushOpNum, w.pushOpNum == 1, err
		}
	}
	return w.pushOpNum, w.pushOpNum == 1, nil
}

// initDGTLocked reads the DGT rate-control parameters from the environment,
// mirroring init_dgt(). Missing or unparseable required variables are a
// fatal precondition violation, per spec.md §9's open-question decision:
// "behavior if DMLC_K* are unset is undefined -- treat as fatal", applied
// unconditionally on the first push regardless of ENABLE_DGT, exactly as
// the original calls init_dgt() unconditionally. Called with dgtMu held.
func (w *Worker[Val]) initDGTLocked() error {
	cfg, loadErr := dgtconfig.LoadDGT()
	if loadErr != nil {
		return fatalf("missing DGT configuration on first push: %v", loadErr)
	}
	w.dgtCfg = cfg
	w.rate.adaptive = cfg.AdaptiveKFlag
	w.rate.kInit = cfg.KInit
	w.rate.kMin = cfg.KMin
	w.dmlcK = cfg.KInit
	w.dgtInitialized = true
	return nil
}

// currentDGTParams returns the drop rate and lossy-channel count to use for
// the block-push currently being built.
func (w *Worker[Val]) currentDGTParams() (k float64, udpChannelNum int) {
	w.dgtMu.Lock()
	defer w.dgtMu.Unlock()
	return w.dmlcK, w.dgtCfg.UDPChannelNum
}

func (w *Worker[Val]) sendFirstPush(ts, cmd, recver int, pull bool, opNum int64, batch KVPairs[Val]) error {
	msg := &Message[Val]{
		Keys: batch.Keys,
		Vals: batch.Vals,
		Lens: batch.Lens,
		Meta: MessageMeta{
			Timestamp:  ts,
			Recver:     recver,
			Request:    true,
			Push:       true,
			Pull:       pull,
			Head:       cmd,
			Priority:   batch.Priority,
			MsgType:    msgFirstPush,
			FirstKey:   batch.Keys[0],
			Seq:        0,
			SeqBegin:   0,
			SeqEnd:     0,
			ValBytes:   0,
			TotalBytes: len(batch.Vals),
			PushOpNum:  opNum,
			Channel:    0,
			KeysLen:    len(batch.Keys),
			ValsLen:    len(batch.Vals),
			LensLen:    len(batch.Lens),
		},
	}
	w.log.L(dgtlogs.Send, "first-push ts=%d recver=%d keys=%d", ts, recver, len(batch.Keys))
	return w.transport.Send(msg)
}
