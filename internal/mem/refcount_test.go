package mem

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestRefCountLifecycle(t *testing.T) {
	var rc RefCount
	rc.Init()

	if got := rc.Refs(); got != 1 {
		t.Fatalf("fresh count: got %d want 1", got)
	}
	if !rc.Unique() {
		t.Fatalf("fresh count must be unique")
	}

	if got := rc.Retain(); got != 2 {
		t.Fatalf("retain: got %d want 2", got)
	}
	if rc.Unique() {
		t.Fatalf("count of 2 must not be unique")
	}

	if rc.Release() {
		t.Fatalf("drop to 1 must not report the final release")
	}
	if !rc.Release() {
		t.Fatalf("drop to 0 must report the final release")
	}
	if got := rc.Refs(); got != 0 {
		t.Fatalf("dead count: got %d want 0", got)
	}
}

func TestRefCountReleaseAtZeroIsNoop(t *testing.T) {
	var rc RefCount
	rc.Init()

	if !rc.Release() {
		t.Fatalf("drop to 0 must report the final release")
	}
	for i := 0; i < 3; i++ {
		if rc.Release() {
			t.Fatalf("release after death must never fire again")
		}
	}
	if got := rc.Refs(); got != 0 {
		t.Fatalf("dead count must stay 0, got %d", got)
	}
}

func TestRefCountConcurrentFinalReleaseFiresOnce(t *testing.T) {
	const holders = 64

	var rc RefCount
	rc.Init()
	for i := 0; i < holders; i++ {
		rc.Retain()
	}

	var finals int32
	var wg sync.WaitGroup
	for i := 0; i < holders+1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rc.Release() {
				atomic.AddInt32(&finals, 1)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&finals); got != 1 {
		t.Fatalf("final release fired %d times, want exactly 1", got)
	}
	if got := rc.Refs(); got != 0 {
		t.Fatalf("count after all drops: got %d want 0", got)
	}
}
