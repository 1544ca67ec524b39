package feed

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/bus"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/recorder"
)

// Source produces raw feed payloads on demand.
type Source interface {
	Next(now time.Time) ([]byte, error)
}

// RunnerConfig wires a payload source into the live pipeline.
type RunnerConfig struct {
	Source     Source
	Normalizer *Normalizer
	Guard      *OrderingGuard
	Queue      *bus.Queue
	Journal    *recorder.Writer
	Metrics    *obs.Metrics
	RatePerSec int
}

// Runner pulls payloads from a source at a fixed rate and pushes the
// resulting pooled records through the journal and the event queue. The
// journal sees a record before the queue does, so a crash can only lose
// events that were never durable anywhere.
type Runner struct {
	cfg RunnerConfig
}

// NewRunner validates the wiring. Guard may be nil, a fresh one is used.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Source == nil {
		return nil, errors.New("source is nil")
	}
	if cfg.Normalizer == nil {
		return nil, errors.New("normalizer is nil")
	}
	if cfg.Queue == nil {
		return nil, errors.New("queue is nil")
	}
	if cfg.Guard == nil {
		cfg.Guard = NewOrderingGuard()
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 100
	}
	return &Runner{cfg: cfg}, nil
}

// Run pumps the source until the context ends or the source fails.
func (r *Runner) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(r.cfg.RatePerSec)
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logs.Infof("start feed runner, rate: %d/s", r.cfg.RatePerSec)
	for {
		select {
		case <-sys.Shutdown():
			logs.Info("stop feed runner. reason: shutdown")
			return nil
		case <-ctx.Done():
			logs.Info("stop feed runner. reason: context done")
			return nil
		case now := <-ticker.C:
			payload, err := r.cfg.Source.Next(now.UTC())
			if err != nil {
				return errors.Wrap(err, "next payload")
			}
			r.ingest(payload)
		}
	}
}

// ingest runs one payload through parse, normalize, admit, journal and
// publish. Drops are counted, only malformed payloads are logged.
func (r *Runner) ingest(payload []byte) {
	raw, err := ParseRawTick(payload)
	if err != nil {
		logs.Errorf("parse raw tick, err: %+v", err)
		return
	}
	header, handle, err := r.cfg.Normalizer.Normalize(raw)
	if err != nil {
		logs.Errorf("normalize %s, err: %+v", raw.Symbol, err)
		return
	}
	if !r.cfg.Guard.Admit(header.SymbolID, header.TsEvent) {
		handle.Release()
		r.cfg.Metrics.IncOutOfOrder()
		return
	}
	if r.cfg.Journal != nil {
		if err := r.cfg.Journal.TryAppend(header, model.RawBytesOf(handle.Value())); err != nil {
			r.cfg.Metrics.IncJournalDrop()
		}
	}
	if err := r.cfg.Queue.TryPublish(bus.Event{Header: header, Tick: handle}); err != nil {
		handle.Release()
		if err == bus.ErrQueueClosed {
			r.cfg.Metrics.IncQueueClosed()
		} else {
			r.cfg.Metrics.IncQueueDrop()
		}
		return
	}
	r.cfg.Metrics.ObserveEvent(header)
}
