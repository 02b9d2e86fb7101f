package dgt

import "math"

// contribKey identifies one block for EMA bookkeeping.
type contribKey struct {
	FirstKey Key
	Seq      int
}

// scorer tracks the exponential moving average of mean absolute value per
// (first_key, seq) block, plus the running max within the current op and
// its snapshot from the previous op, per first_key.
type scorer struct {
	alpha        float64
	contri       map[contribKey]float64
	contriMax    map[Key]float64
	preContriMax map[Key]float64
}

func newScorer(alpha float64) *scorer {
	return &scorer{
		alpha:        alpha,
		contri:       make(map[contribKey]float64),
		contriMax:    make(map[Key]float64),
		preContriMax: make(map[Key]float64),
	}
}

// meanAbs returns the mean absolute value of a block's weights. Val must be
// a real numeric type; the caller supplies an accessor since Go generics
// have no numeric-abs builtin over an arbitrary constraint.
func meanAbs[Val any](vals []Val, abs func(Val) float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += abs(v)
	}
	return sum / float64(len(vals))
}

// score updates and returns the EMA contribution for block (firstKey, seq),
// and rolls the running per-key max forward: reset at seq==0, snapshotted
// into preContriMax at seq==seqEnd.
func (s *scorer) score(firstKey Key, seq, seqEnd int, meanAbsVal float64) float64 {
	k := contribKey{FirstKey: firstKey, Seq: seq}
	prev := s.contri[k]
	v := s.alpha*prev + (1-s.alpha)*meanAbsVal
	s.contri[k] = v

	if seq == 0 {
		s.contriMax[firstKey] = 0
	}
	if v > s.contriMax[firstKey] {
		s.contriMax[firstKey] = v
	}
	if seq == seqEnd {
		s.preContriMax[firstKey] = s.contriMax[firstKey]
	}
	return v
}

// diagnosticVariance computes the variance of |w_i| around the block's mean
// absolute value. It mirrors the original mse() function: a per-block
// diagnostic that nothing in the send path calls. Returns NaN for an empty
// block.
func diagnosticVariance[Val any](vals []Val, abs func(Val) float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	mean := meanAbs(vals, abs)
	var sum float64
	for _, v := range vals {
		d := math.Abs(abs(v)) - mean
		sum += d * d
	}
	return sum / float64(len(vals))
}
