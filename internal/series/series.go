// Package series holds the in-memory shape of market data history: append
// only logs that grow while the session runs, immutable block snapshots cut
// from them, and slices that stitch any number of blocks into one logical
// sequence readers can walk backwards from the live edge.
package series

// Record is any fixed layout market data value addressable on the series
// time axis. All model record kinds satisfy it.
type Record interface {
	TimeBucket() int64
}

// Owner pins backing memory that does not belong to the Go heap while
// blocks reference it. A mapped block file is the usual owner.
type Owner interface {
	Retain() int32
	Release() bool
}

// Index translates a logical index against a sequence of the given size.
// Negative values count back from the end, -1 being the last element; a
// negative index reaching past the first element clamps to 0. The second
// result is false when the sequence is empty or a non-negative index is past
// the end.
func Index(i, size int) (int, bool) {
	if size <= 0 {
		return 0, false
	}
	if i < 0 {
		i += size
		if i < 0 {
			i = 0
		}
	}
	if i >= size {
		return 0, false
	}
	return i, true
}
