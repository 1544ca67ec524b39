package state

import (
	"context"
	"fmt"

	"main/internal/recorder"
	"main/internal/schema"
)

// RecoverConfig controls checkpoint + journal recovery.
type RecoverConfig struct {
	JournalDir      string
	CheckpointPath  string
	FilePrefix      string
	DisableChecksum bool
	MaxPayloadSize  int
	UseRecvTime     bool

	// Replay receives every journal entry past the checkpoint, in order.
	// Leave nil to only rebuild watermarks.
	Replay func(header schema.EventHeader, payload []byte) error
}

// RecoverResult contains recovered state and metadata.
type RecoverResult struct {
	Watermarks  *WatermarkTracker
	LastSeq     uint64
	LastEventTs int64
	Replayed    uint64
}

// RecoverWatermarks loads a checkpoint and replays the journal tail to
// rebuild the series watermarks.
func RecoverWatermarks(ctx context.Context, cfg RecoverConfig) (RecoverResult, error) {
	if cfg.JournalDir == "" {
		return RecoverResult{}, fmt.Errorf("journal dir is empty")
	}
	watermarks := NewWatermarkTracker()
	var lastSeq uint64
	var lastEventTs int64

	if cfg.CheckpointPath != "" {
		checkpoint, err := ReadCheckpoint(cfg.CheckpointPath)
		if err != nil {
			return RecoverResult{}, err
		}
		watermarks.ApplyCheckpoint(checkpoint)
		lastSeq = checkpoint.LastSeq
		lastEventTs = checkpoint.LastEventTs
	}

	playbackCfg := recorder.PlaybackConfig{
		Dir:             cfg.JournalDir,
		FilePrefix:      cfg.FilePrefix,
		Speed:           0,
		UseRecvTime:     cfg.UseRecvTime,
		DisableChecksum: cfg.DisableChecksum,
		MaxPayloadSize:  cfg.MaxPayloadSize,
	}
	pb, err := recorder.NewPlayback(playbackCfg)
	if err != nil {
		return RecoverResult{}, err
	}

	var replayed uint64
	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		if lastSeq > 0 && header.Seq <= lastSeq {
			return nil
		}
		if lastSeq == 0 && lastEventTs > 0 {
			ts := header.TsEvent
			if cfg.UseRecvTime {
				ts = header.TsRecv
			}
			if ts <= lastEventTs {
				return nil
			}
		}
		if header.Seq > lastSeq {
			lastSeq = header.Seq
		}
		if header.TsEvent > lastEventTs {
			lastEventTs = header.TsEvent
		}

		watermarks.ApplyEvent(header)
		replayed++
		if cfg.Replay != nil {
			return cfg.Replay(header, payload)
		}
		return nil
	})
	if err != nil {
		return RecoverResult{}, err
	}

	return RecoverResult{
		Watermarks:  watermarks,
		LastSeq:     lastSeq,
		LastEventTs: lastEventTs,
		Replayed:    replayed,
	}, nil
}
