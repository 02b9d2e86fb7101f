package dgt

import "sort"

// Shard is one (nonempty, sub-batch) pair produced by a Slicer.
type Shard[Val any] struct {
	NonEmpty bool
	Batch    KVPairs[Val]
}

// Slicer partitions a KVPairs batch across an ordered, contiguous list of
// server key ranges. The default slicer is DefaultSlicer; a worker may
// substitute its own via Worker.SetSlicer.
type Slicer[Val any] func(send KVPairs[Val], ranges []Range) ([]Shard[Val], error)

// DefaultSlicer locates, for every server range, the half-open index
// interval of send.Keys falling inside it via binary search, and builds one
// shard per range. Ranges must be contiguous (ranges[i].End ==
// ranges[i+1].Begin); violating that, or a Vals length that doesn't divide
// evenly by len(Keys) when Lens is empty, is a precondition failure.
func DefaultSlicer[Val any](send KVPairs[Val], ranges []Range) ([]Shard[Val], error) {
	n := len(ranges)
	shards := make([]Shard[Val], n)
	if n == 0 {
		return shards, nil
	}

	pos := make([]int, n+1)
	keys := send.Keys
	begin := 0
	for i := 0; i < n; i++ {
		if i == 0 {
			pos[0] = sort.Search(len(keys), func(j int) bool { return keys[j] >= ranges[0].Begin })
			begin = pos[0]
		} else if ranges[i-1].End != ranges[i].Begin {
			return nil, fatalf("server key ranges are not contiguous: range %d ends at %d, range %d begins at %d",
				i-1, ranges[i-1].End, i, ranges[i].Begin)
		}
		end := begin + sort.Search(len(keys)-begin, func(j int) bool { return keys[begin+j] >= ranges[i].End })
		pos[i+1] = end
		begin = end
		shards[i].NonEmpty = pos[i+1] != pos[i]
	}
	if pos[n] != len(keys) {
		return nil, fatalf("slicer coverage failure: %d of %d keys fall outside all server ranges", len(keys)-pos[n], len(keys))
	}
	if len(keys) == 0 {
		return shards, nil
	}

	var k int
	if len(send.Lens) == 0 {
		if len(keys) == 0 || len(send.Vals)%len(keys) != 0 {
			return nil, fatalf("value length %d does not divide evenly by key count %d", len(send.Vals), len(keys))
		}
		k = len(send.Vals) / len(keys)
	} else if len(send.Lens) != len(keys) {
		return nil, fatalf("lens length %d does not match keys length %d", len(send.Lens), len(keys))
	}

	valBegin := 0
	for i := 0; i < n; i++ {
		if !shards[i].NonEmpty {
			continue
		}
		var sub KVPairs[Val]
		sub.Keys = keys[pos[i]:pos[i+1]]
		sub.Priority = send.Priority
		if len(send.Lens) != 0 {
			sub.Lens = send.Lens[pos[i]:pos[i+1]]
			n := 0
			for _, l := range sub.Lens {
				n += l
			}
			sub.Vals = send.Vals[valBegin : valBegin+n]
			valBegin += n
		} else {
			sub.Vals = send.Vals[pos[i]*k : pos[i+1]*k]
		}
		shards[i].Batch = sub
	}
	return shards, nil
}

// FindRange returns the half-open index interval of keys covered by
// [lo, hi), assuming keys is sorted ascending.
func FindRange(keys []Key, lo, hi Key) Range {
	begin := sort.Search(len(keys), func(i int) bool { return keys[i] >= lo })
	end := begin + sort.Search(len(keys)-begin, func(i int) bool { return keys[begin+i] >= hi })
	return Range{Begin: Key(begin), End: Key(end)}
}
