package obs

import (
	"sync/atomic"
	"time"

	"main/internal/model"
	"main/internal/schema"
)

const maxRecordKind = int(model.KindTransaction)

// Metrics collects lightweight counters and latency stats for the data
// path: feed to store appends, journal pressure and history queries.
type Metrics struct {
	recordCounts [maxRecordKind + 1]uint64
	merged       uint64
	outOfOrder   uint64
	queueDrops   uint64
	queueClosed  uint64
	journalDrops uint64
	seals        uint64
	cacheHits    uint64
	filesOpened  uint64
	filesEvicted uint64
	mappedBytes  int64

	feedLatency  LatencyStats
	queryLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	RecordCounts map[model.RecordKind]uint64
	Merged       uint64
	OutOfOrder   uint64
	QueueDrops   uint64
	QueueClosed  uint64
	JournalDrops uint64
	Seals        uint64
	CacheHits    uint64
	FilesOpened  uint64
	FilesEvicted uint64
	MappedBytes  int64
	FeedLatency  LatencySnapshot
	QueryLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent counts one record landing in the store and tracks feed
// latency when both timestamps are present.
func (m *Metrics) ObserveEvent(header schema.EventHeader) {
	if m == nil {
		return
	}
	idx := int(header.Kind)
	if idx >= 0 && idx < len(m.recordCounts) {
		atomic.AddUint64(&m.recordCounts[idx], 1)
	}
	if header.TsEvent > 0 && header.TsRecv > 0 {
		delta := header.TsRecv - header.TsEvent
		if delta >= 0 {
			m.feedLatency.Observe(time.Duration(delta))
		}
	}
}

// IncMerged records an append that folded into the open bucket instead of
// taking a new slot.
func (m *Metrics) IncMerged() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.merged, 1)
}

// IncOutOfOrder records an append rejected for moving backwards in time.
func (m *Metrics) IncOutOfOrder() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.outOfOrder, 1)
}

// IncQueueDrop records a feed queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// IncJournalDrop records a journal append the writer refused.
func (m *Metrics) IncJournalDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.journalDrops, 1)
}

// IncSeal records one live log sealed to disk.
func (m *Metrics) IncSeal() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.seals, 1)
}

// IncFileHit records a history query served from an already mapped file.
func (m *Metrics) IncFileHit() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.cacheHits, 1)
}

// IncFileOpen records a block file mapped into the cache.
func (m *Metrics) IncFileOpen() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.filesOpened, 1)
}

// IncFileEvict records a block file dropped from the cache.
func (m *Metrics) IncFileEvict() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.filesEvicted, 1)
}

// AddMappedBytes moves the gauge of block file bytes the cache holds
// mapped. Pass a negative delta on eviction.
func (m *Metrics) AddMappedBytes(delta int64) {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.mappedBytes, delta)
}

// ObserveQuery measures one history query assembly.
func (m *Metrics) ObserveQuery(d time.Duration) {
	if m == nil {
		return
	}
	m.queryLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	recordCounts := make(map[model.RecordKind]uint64)
	for i := range m.recordCounts {
		if v := atomic.LoadUint64(&m.recordCounts[i]); v > 0 {
			recordCounts[model.RecordKind(i)] = v
		}
	}
	return Snapshot{
		RecordCounts: recordCounts,
		Merged:       atomic.LoadUint64(&m.merged),
		OutOfOrder:   atomic.LoadUint64(&m.outOfOrder),
		QueueDrops:   atomic.LoadUint64(&m.queueDrops),
		QueueClosed:  atomic.LoadUint64(&m.queueClosed),
		JournalDrops: atomic.LoadUint64(&m.journalDrops),
		Seals:        atomic.LoadUint64(&m.seals),
		CacheHits:    atomic.LoadUint64(&m.cacheHits),
		FilesOpened:  atomic.LoadUint64(&m.filesOpened),
		FilesEvicted: atomic.LoadUint64(&m.filesEvicted),
		MappedBytes:  atomic.LoadInt64(&m.mappedBytes),
		FeedLatency:  m.feedLatency.Snapshot(),
		QueryLatency: m.queryLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
