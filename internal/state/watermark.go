package state

import (
	"main/internal/model"
	"main/internal/schema"
)

// SeriesKey identifies one record series.
type SeriesKey struct {
	SymbolID schema.SymbolID
	Kind     model.RecordKind
	Period   model.Period
}

// Watermark marks how far a series has been persisted.
type Watermark struct {
	LastBucket int64
	Records    uint64
}

// WatermarkTracker tracks the persisted high-water mark per series.
type WatermarkTracker struct {
	marks map[SeriesKey]Watermark
}

// NewWatermarkTracker creates an empty tracker.
func NewWatermarkTracker() *WatermarkTracker {
	return &WatermarkTracker{marks: make(map[SeriesKey]Watermark)}
}

// ApplyEvent advances the watermark of the series named by the header and
// returns the new mark.
func (t *WatermarkTracker) ApplyEvent(header schema.EventHeader) Watermark {
	key := SeriesKey{SymbolID: header.SymbolID, Kind: header.Kind, Period: header.Period}
	mark := t.marks[key]
	if bucket := header.Period.Bucket(header.TsEvent); bucket > mark.LastBucket {
		mark.LastBucket = bucket
	}
	mark.Records++
	t.marks[key] = mark
	return mark
}

// ApplyCheckpoint replaces the tracked marks with a checkpoint.
func (t *WatermarkTracker) ApplyCheckpoint(checkpoint Checkpoint) {
	if t.marks == nil {
		t.marks = make(map[SeriesKey]Watermark, len(checkpoint.Series))
	} else {
		for key := range t.marks {
			delete(t.marks, key)
		}
	}
	for _, entry := range checkpoint.Series {
		key, ok := entry.seriesKey()
		if !ok {
			continue
		}
		t.marks[key] = Watermark{LastBucket: entry.LastBucket, Records: entry.Records}
	}
}

// Mark returns the current watermark for a series.
func (t *WatermarkTracker) Mark(key SeriesKey) Watermark {
	return t.marks[key]
}

// Count returns the number of tracked series.
func (t *WatermarkTracker) Count() int {
	return len(t.marks)
}
