// Package mem provides the reference counted slab pool that backs pooled
// record allocation. Pages never move once allocated, so record pointers and
// the byte views taken over them stay valid for as long as a reference is
// held, no matter which goroutine drops the last one.
package mem

import "sync/atomic"

// RefCount is an intrusive atomic reference count. Embed it in any object
// whose backing resource must outlive the last holder, and call Init before
// handing the first reference out.
type RefCount struct {
	refs int32
}

// Init sets the count to one for the initial holder.
func (c *RefCount) Init() {
	atomic.StoreInt32(&c.refs, 1)
}

// Retain adds a reference and returns the new count.
func (c *RefCount) Retain() int32 {
	return atomic.AddInt32(&c.refs, 1)
}

// Release drops a reference. It returns true exactly once, on the drop that
// moves the count from one to zero; the caller owning that drop reclaims the
// resource. Releasing an already dead count is a no-op.
func (c *RefCount) Release() bool {
	for {
		old := atomic.LoadInt32(&c.refs)
		if old <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&c.refs, old, old-1) {
			return old == 1
		}
	}
}

// Refs returns the current count. The value is advisory under concurrency
// except for the stable cases 0 and, for a sole holder, 1.
func (c *RefCount) Refs() int32 {
	return atomic.LoadInt32(&c.refs)
}

// Unique reports whether the caller holds the only reference. Only the
// holder itself can rely on the answer.
func (c *RefCount) Unique() bool {
	return c.Refs() == 1
}
