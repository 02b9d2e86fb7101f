package dgt

// approximateChannelEstimate is the original's alternate, probabilistic
// channel estimator (Aproximate_channel_estimate in kv_app.h): it keys off
// a block's contribution ratio to contriMax[first_key] rather than its
// rank. The original's own Send path calls Get_channel, not this function,
// so it is kept unwired here for parity, per SPEC_FULL.md's
// supplemented-features note.
func approximateChannelEstimate(contri, contriMax float64, channelCount int, rng randSource) int {
	p := 1.0
	if contriMax != 0 {
		p = contri / contriMax
	}
	if p >= 1 {
		return 0
	}
	if p == 0 {
		return 9
	}
	channel := 0
	for i := 0; i < channelCount; i++ {
		lo := float64(i) / float64(channelCount)
		hi := float64(i+1) / float64(channelCount)
		if p >= lo && p < hi {
			lp := (hi - p) / (hi - lo)
			if float64(rng.Intn(100)+1)/100.0 <= lp {
				channel = i
			} else {
				channel = i + 1
			}
		}
		break
	}
	return channelCount - channel
}
