package series

// Slice presents any number of blocks as one logical sequence, oldest block
// first, addressable with from-the-end indices. A query assembles it out of
// mapped history blocks plus a live snapshot, hands it to the reader, and
// the reader closes it when done; the close drops the file references the
// slice took on assembly.
type Slice[T Record] struct {
	blocks []Block[T]
	total  int
}

// NewSlice builds a slice over the given blocks in order. Each block with
// an owner gets one reference that Close gives back.
func NewSlice[T Record](blocks ...Block[T]) *Slice[T] {
	s := &Slice[T]{}
	for _, b := range blocks {
		s.AppendBlock(b)
	}
	return s
}

// AppendBlock adds a block after the ones already present and takes a
// reference on its owner, if any. Empty blocks are dropped.
func (s *Slice[T]) AppendBlock(b Block[T]) {
	if len(b.recs) == 0 {
		return
	}
	if b.owner != nil {
		b.owner.Retain()
	}
	s.blocks = append(s.blocks, b)
	s.total += len(b.recs)
}

// Len returns the record count across all blocks.
func (s *Slice[T]) Len() int {
	return s.total
}

// Blocks returns the number of backing segments.
func (s *Slice[T]) Blocks() int {
	return len(s.blocks)
}

// At returns the record at a possibly negative logical index without
// copying, nil when absent. At(-1) is the newest record.
func (s *Slice[T]) At(i int) *T {
	idx, ok := Index(i, s.total)
	if !ok {
		return nil
	}
	for _, b := range s.blocks {
		if idx < len(b.recs) {
			return &b.recs[idx]
		}
		idx -= len(b.recs)
	}
	return nil
}

// First returns the oldest record, nil when empty.
func (s *Slice[T]) First() *T {
	return s.At(0)
}

// Last returns the newest record, nil when empty.
func (s *Slice[T]) Last() *T {
	return s.At(-1)
}

// Close releases the owner references taken on assembly. The slice is empty
// afterwards; closing again is a no-op.
func (s *Slice[T]) Close() {
	for i := range s.blocks {
		if o := s.blocks[i].owner; o != nil {
			o.Release()
		}
		s.blocks[i] = Block[T]{}
	}
	s.blocks = nil
	s.total = 0
}
