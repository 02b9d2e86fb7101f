package dgt

import (
	"math"
	"math/rand"
)

// classify maps a block's rank r (0 = highest contribution) within a batch
// of R ranked blocks onto a channel in [0, C]. rng supplies the tie-break
// randomness for the R == r_min edge case; pass nil to use math/rand's
// package-level source.
func classify(r, capacityR, channelCount int, k float64, rng randSource) int {
	rMin := int(math.Round(k * float64(capacityR+1)))
	if capacityR == rMin {
		// Every valid r satisfies r < rMin here, so this case must be
		// checked before the r < rMin test below or it is unreachable.
		if rng == nil {
			return 1 + rand.Intn(channelCount)
		}
		return 1 + rng.Intn(channelCount)
	}
	if r < rMin {
		return 0
	}
	return 1 + int(float64(channelCount)*float64(r-rMin)/float64(capacityR-rMin))
}

// randSource abstracts math/rand's Intn so classifier nondeterminism and
// the SET_RANDOM shuffle can be seeded reproducibly in tests.
type randSource interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}
