package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"main/internal/model"
	"main/internal/schema"
)

// Checkpoint captures series watermarks at a point in time.
type Checkpoint struct {
	Timestamp   int64         `json:"timestamp"`
	LastSeq     uint64        `json:"lastSeq"`
	LastEventTs int64         `json:"lastEventTs"`
	Series      []SeriesEntry `json:"series"`
}

// SeriesEntry is a single series watermark entry. Kind and period are kept
// as their short names so the checkpoint stays greppable.
type SeriesEntry struct {
	SymbolID   uint32 `json:"symbolId"`
	Kind       string `json:"kind"`
	Period     string `json:"period,omitempty"`
	LastBucket int64  `json:"lastBucket"`
	Records    uint64 `json:"records"`
}

func (e SeriesEntry) seriesKey() (SeriesKey, bool) {
	kind, ok := model.ParseKind(e.Kind)
	if !ok {
		return SeriesKey{}, false
	}
	period := model.PeriodNone
	if e.Period != "" {
		period, ok = model.ParsePeriod(e.Period)
		if !ok {
			return SeriesKey{}, false
		}
	}
	return SeriesKey{SymbolID: schema.SymbolID(e.SymbolID), Kind: kind, Period: period}, true
}

// Checkpoint builds a checkpoint from the current marks.
func (t *WatermarkTracker) Checkpoint() Checkpoint {
	return t.CheckpointWithMeta(0, 0)
}

// CheckpointWithMeta builds a checkpoint with journal metadata.
func (t *WatermarkTracker) CheckpointWithMeta(lastSeq uint64, lastEventTs int64) Checkpoint {
	entries := make([]SeriesEntry, 0, len(t.marks))
	for key, mark := range t.marks {
		entry := SeriesEntry{
			SymbolID:   uint32(key.SymbolID),
			Kind:       key.Kind.String(),
			LastBucket: mark.LastBucket,
			Records:    mark.Records,
		}
		if key.Period != model.PeriodNone {
			entry.Period = key.Period.String()
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].SymbolID != entries[j].SymbolID {
			return entries[i].SymbolID < entries[j].SymbolID
		}
		if entries[i].Kind != entries[j].Kind {
			return entries[i].Kind < entries[j].Kind
		}
		return entries[i].Period < entries[j].Period
	})
	return Checkpoint{
		Timestamp:   time.Now().UTC().UnixNano(),
		LastSeq:     lastSeq,
		LastEventTs: lastEventTs,
		Series:      entries,
	}
}

// WriteCheckpoint writes a checkpoint to disk as JSON.
func WriteCheckpoint(path string, checkpoint Checkpoint) error {
	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadCheckpoint loads a checkpoint from disk.
func ReadCheckpoint(path string) (Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Checkpoint{}, err
	}
	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return Checkpoint{}, err
	}
	return checkpoint, nil
}

// CompareCheckpoints checks if two checkpoints cover the same series at the
// same marks.
func CompareCheckpoints(expected, actual Checkpoint) error {
	if len(expected.Series) != len(actual.Series) {
		return fmt.Errorf("checkpoint length mismatch: expected=%d actual=%d", len(expected.Series), len(actual.Series))
	}
	expectedMap := make(map[SeriesKey]Watermark, len(expected.Series))
	for _, entry := range expected.Series {
		key, ok := entry.seriesKey()
		if !ok {
			return fmt.Errorf("checkpoint entry invalid: kind=%s period=%s", entry.Kind, entry.Period)
		}
		expectedMap[key] = Watermark{LastBucket: entry.LastBucket, Records: entry.Records}
	}
	for _, entry := range actual.Series {
		key, ok := entry.seriesKey()
		if !ok {
			return fmt.Errorf("checkpoint entry invalid: kind=%s period=%s", entry.Kind, entry.Period)
		}
		want, found := expectedMap[key]
		if !found {
			return fmt.Errorf("checkpoint missing series: symbol=%d kind=%s period=%s", entry.SymbolID, entry.Kind, entry.Period)
		}
		if want.LastBucket != entry.LastBucket {
			return fmt.Errorf("checkpoint bucket mismatch: symbol=%d kind=%s expected=%d actual=%d", entry.SymbolID, entry.Kind, want.LastBucket, entry.LastBucket)
		}
		if want.Records != entry.Records {
			return fmt.Errorf("checkpoint records mismatch: symbol=%d kind=%s expected=%d actual=%d", entry.SymbolID, entry.Kind, want.Records, entry.Records)
		}
	}
	return nil
}
