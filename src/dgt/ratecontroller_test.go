package dgt

import "testing"

type constFeed float64

func (c constFeed) Read() float64 { return float64(c) }

func TestRateControllerNonAdaptiveReturnsKInit(t *testing.T) {
	rc := newRateController(constFeed(0.5), false, 0.2, 0.05)
	if k := rc.refresh(); k != 0.2 {
		t.Fatalf("non-adaptive refresh = %v, want kInit 0.2", k)
	}
}

func TestRateControllerNilFeedFallsBackToZero(t *testing.T) {
	rc := newRateController(nil, true, 0.2, 0.05)
	if k := rc.refresh(); k != 0.2 {
		t.Fatalf("adaptive refresh with no feed (reads 0) = %v, want kInit 0.2", k)
	}
}

func TestRateControllerAdaptiveTracksLossRatio(t *testing.T) {
	feed := new(mutableFeed)
	rc := newRateController(feed, true, 0.4, 0.05)

	feed.v = 10 // establishes firstLoss
	rc.refresh()

	feed.v = 5 // half the first loss
	k := rc.refresh()
	want := 0.4 * (5.0 / 10.0)
	if k != want {
		t.Fatalf("adaptiveK = %v, want %v", k, want)
	}
}

func TestRateControllerAdaptiveFloorsAtKMin(t *testing.T) {
	feed := new(mutableFeed)
	rc := newRateController(feed, true, 0.4, 0.1)

	feed.v = 10
	rc.refresh()
	feed.v = 0.01 // ratio would put k far below kMin
	k := rc.refresh()
	if k != 0.1 {
		t.Fatalf("adaptiveK = %v, want floor kMin 0.1", k)
	}
}

type mutableFeed struct{ v float64 }

func (m *mutableFeed) Read() float64 { return m.v }
