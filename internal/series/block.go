package series

// Block is a fixed length window over contiguous records. Its length never
// changes after creation and the records never move, so readers can hold a
// block without coordinating with the writer that produced it. The optional
// owner keeps non-heap backing memory mapped while the block is referenced.
type Block[T Record] struct {
	recs  []T
	owner Owner
}

// NewBlock wraps records in a block. owner may be nil for heap backed
// records. NewBlock itself takes no reference on the owner; Slice.AppendBlock
// does when the block is handed to a reader.
func NewBlock[T Record](recs []T, owner Owner) Block[T] {
	return Block[T]{recs: recs, owner: owner}
}

// Len returns the number of records in the window.
func (b Block[T]) Len() int {
	return len(b.recs)
}

// At returns the record at a non-negative offset into the window, nil when
// out of range. Negative addressing happens one level up in Slice.
func (b Block[T]) At(i int) *T {
	if i < 0 || i >= len(b.recs) {
		return nil
	}
	return &b.recs[i]
}

// Records exposes the underlying window. Callers must treat it as read
// only.
func (b Block[T]) Records() []T {
	return b.recs
}
