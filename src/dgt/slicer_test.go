package dgt

import "testing"

func ranges(bounds ...Key) []Range {
	rs := make([]Range, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		rs = append(rs, Range{Begin: bounds[i], End: bounds[i+1]})
	}
	return rs
}

func TestDefaultSlicerFixedWidth(t *testing.T) {
	kvs := KVPairs[int]{
		Keys: []Key{1, 3, 5, 7},
		Vals: []int{10, 30, 50, 70},
	}
	shards, err := DefaultSlicer(kvs, ranges(0, 4, 8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(shards) != 2 {
		t.Fatalf("want 2 shards, got %d", len(shards))
	}
	if !shards[0].NonEmpty || !shards[1].NonEmpty {
		t.Fatalf("expected both shards non-empty: %+v", shards)
	}
	if got := shards[0].Batch.Keys; len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("shard0 keys = %v", got)
	}
	if got := shards[1].Batch.Keys; len(got) != 2 || got[0] != 5 || got[1] != 7 {
		t.Fatalf("shard1 keys = %v", got)
	}
	if got := shards[0].Batch.Vals; len(got) != 2 || got[0] != 10 || got[1] != 30 {
		t.Fatalf("shard0 vals = %v", got)
	}
}

func TestDefaultSlicerSkipsEmptyShard(t *testing.T) {
	kvs := KVPairs[int]{Keys: []Key{5}, Vals: []int{50}}
	shards, err := DefaultSlicer(kvs, ranges(0, 4, 8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shards[0].NonEmpty {
		t.Fatalf("shard0 should be empty")
	}
	if !shards[1].NonEmpty {
		t.Fatalf("shard1 should be non-empty")
	}
}

func TestDefaultSlicerVariableLens(t *testing.T) {
	kvs := KVPairs[int]{
		Keys: []Key{1, 5},
		Vals: []int{1, 2, 3, 4, 5},
		Lens: []int{2, 3},
	}
	shards, err := DefaultSlicer(kvs, ranges(0, 4, 8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := shards[0].Batch.Vals; len(got) != 2 {
		t.Fatalf("shard0 vals = %v", got)
	}
	if got := shards[1].Batch.Vals; len(got) != 3 || got[0] != 3 {
		t.Fatalf("shard1 vals = %v", got)
	}
}

func TestDefaultSlicerNonContiguousRangesIsFatal(t *testing.T) {
	kvs := KVPairs[int]{Keys: []Key{1}, Vals: []int{1}}
	_, err := DefaultSlicer(kvs, []Range{{0, 4}, {5, 8}})
	if err == nil {
		t.Fatalf("expected a fatal error for non-contiguous ranges")
	}
	if _, ok := err.(*FatalError); !ok {
		t.Fatalf("expected *FatalError, got %T", err)
	}
}

func TestDefaultSlicerCoverageFailureIsFatal(t *testing.T) {
	kvs := KVPairs[int]{Keys: []Key{99}, Vals: []int{1}}
	_, err := DefaultSlicer(kvs, ranges(0, 4, 8))
	if err == nil {
		t.Fatalf("expected a fatal error: key 99 outside all ranges")
	}
}

func TestFindRange(t *testing.T) {
	keys := []Key{1, 3, 5, 7}
	got := FindRange(keys, 5, 9)
	if got.Begin != 2 || got.End != 4 {
		t.Fatalf("FindRange = %+v", got)
	}
}
