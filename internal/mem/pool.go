package mem

import (
	"errors"
	"sync"
)

const (
	// Paging parameters: 2^10 slots per page.
	pageShift = 10
	pageSize  = 1 << pageShift
	pageMask  = pageSize - 1
)

var (
	// ErrPoolExhausted is returned by Allocate when the pool cap is reached
	// and no released slot is available.
	ErrPoolExhausted = errors.New("pool exhausted")

	// ErrPoolClosed is returned by Allocate after Close.
	ErrPoolClosed = errors.New("pool closed")
)

type slot[T any] struct {
	refs RefCount
	val  T
}

// Pool is a paged slab allocator for one record type. Slots are recycled
// through a free list when their last reference drops; pages are never freed
// or moved while the pool lives, so a *T obtained from a held Handle stays
// valid even if other goroutines allocate concurrently.
//
// A Pool is owned by one long lived object (the store) and shut down with
// Close. Handles may outlive Close; their releases still recycle into the
// pool and are simply never handed out again.
type Pool[T any] struct {
	mu     sync.Mutex
	pages  [][]slot[T]
	free   []int32
	next   int32
	cap    int32
	closed bool

	stats PoolStats
}

// PoolStats is a point-in-time counter snapshot maintained by the pool.
type PoolStats struct {
	Allocated uint64 // successful allocations
	Recycled  uint64 // allocations served from the free list
	Rejected  uint64 // allocations refused by the cap
	Live      int32  // slots currently referenced
	Slots     int32  // slots ever created
}

// NewPool creates a pool bounded to maxSlots records. maxSlots <= 0 means
// unbounded.
func NewPool[T any](maxSlots int) *Pool[T] {
	p := &Pool[T]{}
	if maxSlots > 0 {
		p.cap = int32(maxSlots)
	}
	return p
}

// Allocate hands out a zeroed slot with its count set to one. The handle
// must be released exactly once per reference when the caller is done.
func (p *Pool[T]) Allocate() (Handle[T], error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Handle[T]{}, ErrPoolClosed
	}

	var idx int32
	if n := len(p.free); n > 0 {
		idx = p.free[n-1]
		p.free = p.free[:n-1]
		p.stats.Recycled++
	} else {
		if p.cap > 0 && p.next >= p.cap {
			p.stats.Rejected++
			p.mu.Unlock()
			return Handle[T]{}, ErrPoolExhausted
		}
		idx = p.next
		if int(idx)>>pageShift == len(p.pages) {
			p.pages = append(p.pages, make([]slot[T], pageSize))
		}
		p.next++
		p.stats.Slots = p.next
	}
	s := &p.pages[int(idx)>>pageShift][int(idx)&pageMask]
	p.stats.Allocated++
	p.stats.Live++
	p.mu.Unlock()

	s.refs.Init()
	return Handle[T]{pool: p, slot: s, idx: idx}, nil
}

// Close refuses further allocations. Outstanding handles stay usable until
// their own last release.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Stats returns a snapshot of the pool counters.
func (p *Pool[T]) Stats() PoolStats {
	p.mu.Lock()
	st := p.stats
	p.mu.Unlock()
	return st
}

// reclaim zeroes a dead slot and pushes it back on the free list. The slot
// is unreachable at this point (its count is zero), so the wipe can run
// outside the lock.
func (p *Pool[T]) reclaim(s *slot[T], idx int32) {
	var zero T
	s.val = zero

	p.mu.Lock()
	p.free = append(p.free, idx)
	p.stats.Live--
	p.mu.Unlock()
}

// Handle is a counted reference to one pooled record. Copies of a Handle
// share the same slot and the same count; the zero Handle is invalid. A
// Handle may be retained on one goroutine and released on another, and the
// final release always recycles into the pool that allocated the slot.
type Handle[T any] struct {
	pool *Pool[T]
	slot *slot[T]
	idx  int32
}

// Valid reports whether the handle refers to a slot.
func (h Handle[T]) Valid() bool {
	return h.slot != nil
}

// Value returns the record in place. The pointer stays valid while the
// caller holds a reference; it must not be used after the matching Release.
func (h Handle[T]) Value() *T {
	return &h.slot.val
}

// Retain adds a reference for a new holder and returns the new count.
func (h Handle[T]) Retain() int32 {
	return h.slot.refs.Retain()
}

// Release drops one reference. The last drop wipes the record and recycles
// the slot. Releasing the zero Handle or an already dead slot is a no-op.
func (h Handle[T]) Release() {
	if h.slot == nil {
		return
	}
	if h.slot.refs.Release() {
		h.pool.reclaim(h.slot, h.idx)
	}
}

// Refs returns the current reference count of the slot.
func (h Handle[T]) Refs() int32 {
	if h.slot == nil {
		return 0
	}
	return h.slot.refs.Refs()
}

// Unique reports whether the caller holds the only reference.
func (h Handle[T]) Unique() bool {
	return h.slot != nil && h.slot.refs.Unique()
}
