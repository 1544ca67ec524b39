package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"main/internal/bus"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/recorder"
	"main/internal/schema"
)

// scriptSource replays canned payloads and fails once they run out, which
// is how the tests stop a runner.
type scriptSource struct {
	payloads [][]byte
	next     int
}

func (s *scriptSource) Next(time.Time) ([]byte, error) {
	if s.next >= len(s.payloads) {
		return nil, fmt.Errorf("script exhausted")
	}
	p := s.payloads[s.next]
	s.next++
	return p, nil
}

func rawTickPayload(symbol string, tsEvent int64, last string) []byte {
	return []byte(fmt.Sprintf(`{"symbol":%q,"tsEvent":%d,"tsRecv":%d,"last":%q}`,
		symbol, tsEvent, tsEvent+1000, last))
}

func TestRunnerPumpsSourceIntoQueue(t *testing.T) {
	norm, pool := testNormalizer(t, 16)
	queue := bus.NewQueue(16)
	metrics := obs.NewMetrics()
	base := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC).UnixNano()

	src := &scriptSource{payloads: [][]byte{
		rawTickPayload("600000", base, "12.3456"),
		rawTickPayload("600000", base+int64(time.Second), "12.35"),
		rawTickPayload("600000", base, "12.34"), // behind the symbol clock
	}}
	runner, err := NewRunner(RunnerConfig{
		Source:     src,
		Normalizer: norm,
		Queue:      queue,
		Metrics:    metrics,
		RatePerSec: 10000,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runner.Run(ctx); err == nil {
		t.Fatal("want run to stop on source exhaustion")
	}

	queue.Close()
	var got []bus.Event
	queue.Drain(func(e bus.Event) {
		got = append(got, e)
	})
	if len(got) != 2 {
		t.Fatalf("queued events = %d, want 2", len(got))
	}
	if got[0].Header.TsEvent != base {
		t.Fatalf("first event ts = %d, want %d", got[0].Header.TsEvent, base)
	}
	if got[1].Header.TsEvent != base+int64(time.Second) {
		t.Fatalf("second event ts = %d, want %d", got[1].Header.TsEvent, base+int64(time.Second))
	}
	if last := got[1].Tick.Value().Last; last != model.Price(123500) {
		t.Fatalf("second event last = %d, want 123500", last)
	}
	if live := pool.Stats().Live; live != 2 {
		t.Fatalf("live slots = %d, want 2", live)
	}
	for _, e := range got {
		e.Tick.Release()
	}
	if live := pool.Stats().Live; live != 0 {
		t.Fatalf("live slots after release = %d, want 0", live)
	}

	snap := metrics.Snapshot()
	if snap.RecordCounts[model.KindTick] != 2 {
		t.Fatalf("tick count = %d, want 2", snap.RecordCounts[model.KindTick])
	}
	if snap.OutOfOrder != 1 {
		t.Fatalf("out of order = %d, want 1", snap.OutOfOrder)
	}
	if snap.FeedLatency.Count != 2 {
		t.Fatalf("feed latency samples = %d, want 2", snap.FeedLatency.Count)
	}
}

func TestRunnerReleasesOnQueueFull(t *testing.T) {
	norm, pool := testNormalizer(t, 16)
	queue := bus.NewQueue(1)
	metrics := obs.NewMetrics()
	base := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC).UnixNano()

	src := &scriptSource{payloads: [][]byte{
		rawTickPayload("600000", base, "12.34"),
		rawTickPayload("600000", base+int64(time.Second), "12.35"),
	}}
	runner, err := NewRunner(RunnerConfig{
		Source:     src,
		Normalizer: norm,
		Queue:      queue,
		Metrics:    metrics,
		RatePerSec: 10000,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = runner.Run(ctx)

	if snap := metrics.Snapshot(); snap.QueueDrops != 1 {
		t.Fatalf("queue drops = %d, want 1", snap.QueueDrops)
	}
	// The dropped tick went home, only the queued one is still out.
	if live := pool.Stats().Live; live != 1 {
		t.Fatalf("live slots = %d, want 1", live)
	}
	queue.Close()
	queue.Drain(func(e bus.Event) { e.Tick.Release() })
	if live := pool.Stats().Live; live != 0 {
		t.Fatalf("live slots after drain = %d, want 0", live)
	}
}

func TestRunnerJournalsAdmittedTicks(t *testing.T) {
	norm, _ := testNormalizer(t, 16)
	queue := bus.NewQueue(16)
	metrics := obs.NewMetrics()
	base := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC).UnixNano()

	dir := t.TempDir()
	journal, err := recorder.NewWriter(recorder.DefaultConfig(dir))
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := journal.Start(ctx); err != nil {
		t.Fatalf("start writer: %v", err)
	}

	src := &scriptSource{payloads: [][]byte{
		rawTickPayload("600000", base, "12.34"),
		rawTickPayload("600519", base, "1812.00"),
	}}
	runner, err := NewRunner(RunnerConfig{
		Source:     src,
		Normalizer: norm,
		Queue:      queue,
		Journal:    journal,
		Metrics:    metrics,
		RatePerSec: 10000,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	_ = runner.Run(ctx)
	if err := journal.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	queue.Close()
	queue.Drain(func(e bus.Event) { e.Tick.Release() })

	if snap := metrics.Snapshot(); snap.JournalDrops != 0 {
		t.Fatalf("journal drops = %d, want 0", snap.JournalDrops)
	}

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{Dir: dir})
	if err != nil {
		t.Fatalf("new playback: %v", err)
	}
	var headers []schema.EventHeader
	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		if len(payload) != model.TickSize {
			t.Fatalf("payload size = %d, want %d", len(payload), model.TickSize)
		}
		tick, ok := model.RecordFromBytes[model.Tick](payload)
		if !ok {
			t.Fatal("payload too short for a tick")
		}
		if tick.EventTsNano != header.TsEvent {
			t.Fatalf("tick ts = %d, header ts = %d", tick.EventTsNano, header.TsEvent)
		}
		headers = append(headers, header)
		return nil
	})
	if err != nil {
		t.Fatalf("playback: %v", err)
	}
	if len(headers) != 2 {
		t.Fatalf("journaled records = %d, want 2", len(headers))
	}
	if headers[0].Kind != model.KindTick || headers[1].Kind != model.KindTick {
		t.Fatalf("journaled kinds = %v %v, want ticks", headers[0].Kind, headers[1].Kind)
	}
	if headers[0].Seq != 101 || headers[1].Seq != 102 {
		t.Fatalf("journaled seqs = %d %d, want 101 102", headers[0].Seq, headers[1].Seq)
	}
}
