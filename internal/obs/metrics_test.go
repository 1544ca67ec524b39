package obs

import (
	"sync"
	"testing"
	"time"

	"main/internal/model"
	"main/internal/schema"
)

func TestMetricsCountsPerKind(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < 3; i++ {
		m.ObserveEvent(schema.NewHeader(model.KindTick, 1, uint64(i+1), 1000, 1500))
	}
	m.ObserveEvent(schema.NewHeader(model.KindBar, 1, 4, 2000, 2100))
	m.IncMerged()
	m.IncOutOfOrder()
	m.IncOutOfOrder()
	m.IncSeal()

	snap := m.Snapshot()
	if got := snap.RecordCounts[model.KindTick]; got != 3 {
		t.Fatalf("tick count = %d, want 3", got)
	}
	if got := snap.RecordCounts[model.KindBar]; got != 1 {
		t.Fatalf("bar count = %d, want 1", got)
	}
	if _, ok := snap.RecordCounts[model.KindTransaction]; ok {
		t.Fatalf("unexpected transaction count in snapshot")
	}
	if snap.Merged != 1 || snap.OutOfOrder != 2 || snap.Seals != 1 {
		t.Fatalf("counter snapshot = %+v", snap)
	}
	if snap.FeedLatency.Count != 4 {
		t.Fatalf("feed latency samples = %d, want 4", snap.FeedLatency.Count)
	}
	if snap.FeedLatency.Min != 100*time.Nanosecond {
		t.Fatalf("feed latency min = %v, want 100ns", snap.FeedLatency.Min)
	}
	if snap.FeedLatency.Max != 500*time.Nanosecond {
		t.Fatalf("feed latency max = %v, want 500ns", snap.FeedLatency.Max)
	}
}

func TestLatencyStatsConcurrent(t *testing.T) {
	var stats LatencyStats
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 1; i <= 100; i++ {
				stats.Observe(time.Duration(g*100+i) * time.Microsecond)
			}
		}(g)
	}
	wg.Wait()

	snap := stats.Snapshot()
	if snap.Count != 800 {
		t.Fatalf("sample count = %d, want 800", snap.Count)
	}
	if snap.Min != 1*time.Microsecond {
		t.Fatalf("min = %v, want 1µs", snap.Min)
	}
	if snap.Max != 800*time.Microsecond {
		t.Fatalf("max = %v, want 800µs", snap.Max)
	}
	if snap.Avg < snap.Min || snap.Avg > snap.Max {
		t.Fatalf("avg %v outside [min, max]", snap.Avg)
	}
}

func TestSeqGeneratorMonotonic(t *testing.T) {
	gen := NewSeqGenerator(100)
	prev := uint64(0)
	for i := 0; i < 10; i++ {
		next := gen.Next()
		if next <= prev {
			t.Fatalf("sequence went backwards: %d after %d", next, prev)
		}
		prev = next
	}
	if prev != 110 {
		t.Fatalf("final sequence = %d, want 110", prev)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveEvent(schema.NewHeader(model.KindTick, 1, 1, 1, 2))
	m.IncMerged()
	m.ObserveQuery(time.Millisecond)
	if snap := m.Snapshot(); snap.Merged != 0 {
		t.Fatalf("nil metrics snapshot = %+v", snap)
	}
}
