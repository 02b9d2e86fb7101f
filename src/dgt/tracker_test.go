package dgt

import (
	"errors"
	"testing"
	"time"
)

var errFakeTransport = errors.New("fake transport failure")

func TestTrackerZeroWantIsImmediatelyDone(t *testing.T) {
	tr := newTracker()
	ts := tr.newRequest(0)
	if !tr.already(ts) {
		t.Fatalf("a request with want=0 should be immediately satisfied")
	}
}

func TestTrackerSignalsAtTarget(t *testing.T) {
	tr := newTracker()
	ts := tr.newRequest(2)
	if tr.already(ts) {
		t.Fatalf("should not be done yet")
	}
	if tr.addResponse(ts) {
		t.Fatalf("addResponse should not signal done after 1 of 2")
	}
	if !tr.addResponse(ts) {
		t.Fatalf("addResponse should signal done after 2 of 2")
	}
	if !tr.already(ts) {
		t.Fatalf("should be done now")
	}
}

func TestTrackerSignalsOnlyOnce(t *testing.T) {
	tr := newTracker()
	ts := tr.newRequest(1)
	if !tr.addResponse(ts) {
		t.Fatalf("expected completion signal on the first response")
	}
	if tr.addResponse(ts) {
		t.Fatalf("a second response must not signal completion again")
	}
}

func TestTrackerWaitBlocksUntilSatisfied(t *testing.T) {
	tr := newTracker()
	ts := tr.newRequest(1)
	done := make(chan struct{})
	go func() {
		tr.wait(ts)
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("wait returned before any response arrived")
	case <-time.After(20 * time.Millisecond):
	}

	tr.addResponse(ts)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("wait did not return after the target response count was reached")
	}
}

func TestTrackerAddExpectedDoesNotReopenSatisfiedRequest(t *testing.T) {
	tr := newTracker()
	ts := tr.newRequest(0)
	if !tr.already(ts) {
		t.Fatalf("want=0 should start satisfied")
	}
	tr.addExpected(ts, 1)
	if !tr.already(ts) {
		t.Fatalf("adding expected responses must not reopen an already satisfied request")
	}
	if tr.addResponse(ts) {
		t.Fatalf("a satisfied request must not signal completion a second time")
	}
	if !tr.already(ts) {
		t.Fatalf("should still be satisfied after the added response arrives")
	}
}

func TestTrackerFailUnblocksWaitWithError(t *testing.T) {
	tr := newTracker()
	ts := tr.newRequest(1)
	done := make(chan error, 1)
	go func() { done <- tr.wait(ts) }()

	select {
	case <-done:
		t.Fatalf("wait returned before the request was failed or satisfied")
	case <-time.After(20 * time.Millisecond):
	}

	wantErr := errFakeTransport
	tr.fail(ts, wantErr)

	select {
	case err := <-done:
		if err != wantErr {
			t.Fatalf("wait returned err=%v, want %v", err, wantErr)
		}
	case <-time.After(time.Second):
		t.Fatalf("wait did not return after fail")
	}
}

func TestTrackerFailAfterSuccessIsNoop(t *testing.T) {
	tr := newTracker()
	ts := tr.newRequest(1)
	tr.addResponse(ts)
	tr.fail(ts, errFakeTransport)
	if err := tr.wait(ts); err != nil {
		t.Fatalf("a request already satisfied must not be retroactively failed, got %v", err)
	}
}

func TestTrackerForgetDropsBookkeeping(t *testing.T) {
	tr := newTracker()
	ts := tr.newRequest(1)
	tr.forget(ts)
	if tr.addResponse(ts) {
		t.Fatalf("addResponse on a forgotten ts must not signal completion")
	}
}
