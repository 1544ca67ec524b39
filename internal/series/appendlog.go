package series

// AppendLog accumulates one symbol's records in time bucket order. The only
// mutation it supports is append-or-overwrite-last: a record landing in the
// same bucket as the final slot replaces it, anything else goes on the end.
// Records below the final slot are never touched again, which is what makes
// snapshot blocks safe to hand out while the log keeps growing.
//
// An AppendLog takes one writer. Readers never touch the log directly; they
// work from Snapshot blocks.
type AppendLog[T Record] struct {
	recs []T
}

// NewAppendLog creates a log with room for capacity records before the
// first regrowth.
func NewAppendLog[T Record](capacity int) *AppendLog[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &AppendLog[T]{recs: make([]T, 0, capacity)}
}

// Append lands one record. It reports true when the record took a new slot
// and false when it replaced the final slot in place. Callers are trusted to
// feed buckets in non-decreasing order; ordering enforcement lives in the
// store on top.
func (l *AppendLog[T]) Append(rec T) bool {
	if n := len(l.recs); n > 0 && l.recs[n-1].TimeBucket() == rec.TimeBucket() {
		l.recs[n-1] = rec
		return false
	}
	l.recs = append(l.recs, rec)
	return true
}

// Size returns the number of records in the log.
func (l *AppendLog[T]) Size() int {
	return len(l.recs)
}

// At returns the record at a possibly negative logical index, nil when the
// log is empty or a non-negative index is past the end. The pointer aliases
// log memory and is only stable for the final slot until the next append.
func (l *AppendLog[T]) At(i int) *T {
	idx, ok := Index(i, len(l.recs))
	if !ok {
		return nil
	}
	return &l.recs[idx]
}

// Snapshot cuts an immutable-length block over everything appended so far.
// Later appends are invisible to the block; a later same-bucket overwrite of
// the final slot is visible through it, which is exactly the live bar
// updating under a reader that asked for the open edge.
func (l *AppendLog[T]) Snapshot() Block[T] {
	n := len(l.recs)
	return Block[T]{recs: l.recs[:n:n]}
}
