package dgt

import "sort"

// sendBlockPush fragments batch into bounded-size blocks (spec.md §4.5
// step 3), scores and ranks them, assigns channels, and dispatches each.
func (w *Worker[Val]) sendBlockPush(ts, cmd, recver int, pull bool, opNum int64, batch KVPairs[Val]) error {
	totalBytes := len(batch.Vals)
	blockSize := totalBytes
	if w.cfg.EnableBlock && w.cfg.BlockSize > 0 {
		blockSize = w.cfg.BlockSize
	}

	var msgs []*Message[Val]
	if blockSize > 0 {
		seqEnd := ceilDiv(totalBytes, blockSize) - 1
		valBytes, seq := 0, 0
		for remain := totalBytes; remain != 0; {
			l := min(remain, blockSize)
			msg := &Message[Val]{
				Keys: batch.Keys,
				Vals: batch.Vals[valBytes : valBytes+l],
				Lens: batch.Lens,
				Meta: MessageMeta{
					Timestamp:  ts,
					Recver:     recver,
					Request:    true,
					Push:       true,
					Pull:       pull,
					Head:       cmd,
					Priority:   batch.Priority,
					MsgType:    msgBlockPush,
					FirstKey:   batch.Keys[0],
					Seq:        seq,
					SeqBegin:   0,
					SeqEnd:     seqEnd,
					ValBytes:   valBytes,
					TotalBytes: totalBytes,
					PushOpNum:  opNum,
					KeysLen:    len(batch.Keys),
					ValsLen:    l,
					LensLen:    len(batch.Lens),
				},
			}
			msg.Contri = w.scoreBlock(batch.Keys[0], seq, seqEnd, msg.Vals)

			valBytes += l
			remain -= l
			terminal := seq == seqEnd
			seq++

			if w.cfg.ClearZero && msg.Contri == 0 && !terminal {
				continue
			}
			msgs = append(msgs, msg)
		}
	}
	if len(msgs) == 0 {
		return nil
	}

	w.rankBlocks(msgs)

	k, channelCount := w.currentDGTParams()
	R := len(msgs)
	for idx, m := range msgs {
		ch := classify(idx, R, channelCount, k, w.rng)
		if m.Meta.Seq == m.Meta.SeqEnd {
			ch = 0
		}
		m.Meta.Channel = ch

		var err error
		if w.cfg.EnableDGT {
			err = w.transport.Classify(m, ch, 0)
		} else {
			err = w.transport.SendChannel(m, ch, 0)
		}
		if err != nil {
			if ch == 0 || !w.cfg.EnableDGT {
				return err
			}
			// Loss on a lossy channel is the contract; swallow it.
		}
	}
	return nil
}

// rankBlocks orders msgs contribution-descending (or shuffles them, when
// DGT_SET_RANDOM is set), always leaving the terminal block (seq==seqEnd)
// pinned last, matching the original's sort/shuffle over
// msg_vector[0:len-1].
func (w *Worker[Val]) rankBlocks(msgs []*Message[Val]) {
	last := len(msgs) - 1
	rest := msgs[:last]
	if w.cfg.SetRandom {
		w.rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
		return
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Contri > rest[j].Contri })
}

func (w *Worker[Val]) scoreBlock(firstKey Key, seq, seqEnd int, vals []Val) float64 {
	w.dgtMu.Lock()
	defer w.dgtMu.Unlock()
	return w.scorer.score(firstKey, seq, seqEnd, meanAbs(vals, w.abs))
}

func ceilDiv(total, block int) int {
	if block <= 0 {
		return 0
	}
	if total%block == 0 {
		return total / block
	}
	return total/block + 1
}

// dispatchPullRequests emits one msgPullReq per non-empty shard; Process
// (process.go) buffers the replies and the reassembler (reassembler.go)
// joins them.
func (w *Worker[Val]) dispatchPullRequests(ts, cmd int, shards []Shard[Val]) error {
	for i, s := range shards {
		if !s.NonEmpty {
			continue
		}
		recver := w.topology.ServerRankToID(i)
		msg := &Message[Val]{
			Keys: s.Batch.Keys,
			Meta: MessageMeta{
				Timestamp:  ts,
				Recver:     recver,
				Request:    true,
				Push:       false,
				Pull:       true,
				Head:       cmd,
				Priority:   s.Batch.Priority,
				MsgType:    msgPullReq,
				FirstKey:   s.Batch.Keys[0],
				TotalBytes: len(s.Batch.Vals),
				KeysLen:    len(s.Batch.Keys),
			},
		}
		if err := w.transport.Send(msg); err != nil {
			return err
		}
	}
	return nil
}
