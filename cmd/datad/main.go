package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"

	"main/internal/bus"
	"main/internal/catalog"
	"main/internal/feed"
	"main/internal/mdg"
	"main/internal/mem"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/recorder"
	"main/internal/schema"
	"main/internal/state"
	"main/internal/store"
)

const defaultDataDir = "testdata/datad"

func main() {
	if err := run(); err != nil {
		log.Printf("datad: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON config")
	dataDir := flag.String("data-dir", defaultDataDir, "Data directory when no config is given")
	duration := flag.Duration("duration", 0, "Stop after this long (0=run until signal)")
	sealInterval := flag.Duration("seal-interval", time.Minute, "Day rollover scan interval (0=disable)")
	checkpointPath := flag.String("checkpoint-path", "", "Checkpoint output (default: <data-dir>/checkpoint.json)")
	recoverEnabled := flag.Bool("recover", false, "Rebuild the live window from checkpoint + journal")
	recoverNoChecksum := flag.Bool("recover-no-checksum", false, "Disable checksum validation for recovery")

	replayDir := flag.String("replay-dir", "", "Journal directory to replay instead of running a live feed")
	replayPrefix := flag.String("replay-prefix", "", "Journal file prefix for replay (default: journal)")
	replaySpeed := flag.Float64("replay-speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	replayNoChecksum := flag.Bool("replay-no-checksum", false, "Disable checksum validation for replay")
	replayMaxPayload := flag.Int("replay-max-payload", 0, "Max payload size in bytes for replay (0=unlimited)")

	pyroscopeServer := flag.String("pyroscope-server", "", "Pyroscope server address (empty=disabled)")
	flag.Parse()

	loaded, err := loadConfig(*configPath, *dataDir)
	if err != nil {
		return err
	}
	if *replayDir != "" {
		loaded.Feed.Source = ops.FeedSourceReplay
		loaded.Feed.ReplayDir = *replayDir
		loaded.Feed.ReplaySpeed = *replaySpeed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	if *pyroscopeServer != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "datad",
			ServerAddress:   *pyroscopeServer,
			Tags: map[string]string{
				"source": loaded.Feed.Source,
			},
			Logger: emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	metrics := obs.NewMetrics()

	var cat catalog.Catalog
	if loaded.Features.EnableCatalog {
		db, err := catalog.NewDB(ctx, loaded.Catalog)
		if err != nil {
			return err
		}
		defer db.Close()
		cat = db
	}

	st, err := store.New(store.Config{
		DataDir:      loaded.Storage.DataDir,
		Registry:     loaded.Registry,
		Catalog:      cat,
		LiveCapacity: loaded.Storage.LiveCapacity,
		MaxOpenFiles: loaded.Storage.MaxOpenFiles,
		Metrics:      metrics,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	barEngine, err := feed.NewBarEngine(loaded.Storage.Periods)
	if err != nil {
		return err
	}

	if loaded.Feed.Source == ops.FeedSourceReplay {
		return runReplay(ctx, loaded, st, barEngine, metrics, recorder.PlaybackConfig{
			Dir:             loaded.Feed.ReplayDir,
			FilePrefix:      *replayPrefix,
			Speed:           loaded.Feed.ReplaySpeed,
			DisableChecksum: *replayNoChecksum,
			MaxPayloadSize:  *replayMaxPayload,
		})
	}
	return runLive(ctx, loaded, st, barEngine, metrics, liveOptions{
		checkpointPath:    resolveCheckpointPath(loaded.Storage.DataDir, *checkpointPath),
		sealInterval:      *sealInterval,
		recover:           *recoverEnabled,
		recoverNoChecksum: *recoverNoChecksum,
	})
}

type liveOptions struct {
	checkpointPath    string
	sealInterval      time.Duration
	recover           bool
	recoverNoChecksum bool
}

func runLive(ctx context.Context, loaded ops.Loaded, st *store.Store, barEngine *feed.BarEngine, metrics *obs.Metrics, opts liveOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	guard := feed.NewOrderingGuard()
	marks := state.NewWatermarkTracker()
	var lastSeq uint64
	var lastEventTs int64

	if opts.recover {
		recoverCfg := state.RecoverConfig{
			JournalDir:      loaded.Journal.Dir,
			FilePrefix:      loaded.Journal.FilePrefix,
			DisableChecksum: opts.recoverNoChecksum,
			Replay: func(header schema.EventHeader, payload []byte) error {
				guard.Admit(header.SymbolID, header.TsEvent)
				return applyRecord(st, barEngine, header, payload)
			},
		}
		if _, err := os.Stat(opts.checkpointPath); err == nil {
			recoverCfg.CheckpointPath = opts.checkpointPath
		}
		result, err := state.RecoverWatermarks(ctx, recoverCfg)
		if err != nil {
			return err
		}
		marks = result.Watermarks
		lastSeq = result.LastSeq
		lastEventTs = result.LastEventTs
		log.Printf("recovered series=%d replayed=%d last_seq=%d", marks.Count(), result.Replayed, lastSeq)
	}

	pool := mem.NewPool[model.Tick](loaded.Storage.PoolSlots)
	norm, err := feed.NewNormalizer(loaded.Registry, pool, obs.NewSeqGenerator(lastSeq))
	if err != nil {
		return err
	}

	var journal *recorder.Writer
	if loaded.Features.EnableJournal {
		journal, err = recorder.NewWriter(loaded.Journal)
		if err != nil {
			return err
		}
		if err := journal.Start(ctx); err != nil {
			return err
		}
	}

	queue := bus.NewQueue(loaded.Feed.QueueSize)
	gen, err := mdg.NewGenerator(loaded.Registry, loaded.Feed.Seed, 0, 0, 0)
	if err != nil {
		return err
	}
	runner, err := feed.NewRunner(feed.RunnerConfig{
		Source:     gen,
		Normalizer: norm,
		Guard:      guard,
		Queue:      queue,
		Journal:    journal,
		Metrics:    metrics,
		RatePerSec: loaded.Feed.RatePerSec,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		queue.Run(ctx, func(e bus.Event) {
			header := e.Header
			if err := applyTick(st, barEngine, header, e.Tick.Value()); err != nil {
				select {
				case errCh <- err:
				default:
				}
			} else {
				marks.ApplyEvent(header)
				if header.Seq > lastSeq {
					lastSeq = header.Seq
				}
				if header.TsEvent > lastEventTs {
					lastEventTs = header.TsEvent
				}
			}
			e.Tick.Release()
		})
	}()

	if opts.sealInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sealRollover(ctx, st, opts.sealInterval)
		}()
	}

	runErr := runner.Run(ctx)
	cancel()
	queue.Close()
	wg.Wait()
	queue.Drain(func(e bus.Event) { e.Tick.Release() })

	var applyErr error
	select {
	case applyErr = <-errCh:
	default:
	}

	// Flush every live series to its day files and cut the checkpoint; the
	// store is rebuildable from disk alone after this.
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelFlush()
	for _, ref := range st.LiveSeries() {
		if _, err := st.Seal(flushCtx, ref.SymbolID, ref.Kind, ref.Period); err != nil {
			log.Printf("seal %s/%d failed: %v", ref.Kind, ref.SymbolID, err)
		}
	}
	if opts.checkpointPath != "" {
		if err := state.WriteCheckpoint(opts.checkpointPath, marks.CheckpointWithMeta(lastSeq, lastEventTs)); err != nil {
			return err
		}
	}

	if journal != nil {
		if err := journal.Close(); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if applyErr != nil {
		return applyErr
	}

	snap := metrics.Snapshot()
	log.Printf("metrics: records=%v merged=%d out_of_order=%d queue_drops=%d journal_drops=%d seals=%d feed_latency=%+v",
		snap.RecordCounts, snap.Merged, snap.OutOfOrder, snap.QueueDrops, snap.JournalDrops, snap.Seals, snap.FeedLatency)
	return nil
}

func runReplay(ctx context.Context, loaded ops.Loaded, st *store.Store, barEngine *feed.BarEngine, metrics *obs.Metrics, cfg recorder.PlaybackConfig) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := bus.NewQueue(loaded.Feed.QueueSize)
	pool := mem.NewPool[model.Tick](loaded.Storage.PoolSlots)
	errCh := make(chan error, 1)
	var wg sync.WaitGroup
	total := 0

	wg.Add(1)
	go func() {
		defer wg.Done()
		queue.Run(ctx, func(e bus.Event) {
			total++
			if err := applyTick(st, barEngine, e.Header, e.Tick.Value()); err != nil {
				select {
				case errCh <- err:
				default:
				}
				cancel()
			} else {
				metrics.ObserveEvent(e.Header)
			}
			e.Tick.Release()
		})
	}()

	pb, err := recorder.NewPlayback(cfg)
	if err != nil {
		return err
	}
	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		if header.Kind != model.KindTick {
			return nil
		}
		tick, ok := model.RecordFromBytes[model.Tick](payload)
		if !ok {
			return fmt.Errorf("tick payload short: %d bytes", len(payload))
		}
		handle, err := pool.Allocate()
		if err != nil {
			return err
		}
		*handle.Value() = tick
		for {
			err := queue.TryPublish(bus.Event{Header: header, Tick: handle})
			if err == nil {
				return nil
			}
			if err != bus.ErrQueueFull {
				handle.Release()
				return err
			}
			// Playback outruns the store loop; wait for it to catch up.
			select {
			case <-ctx.Done():
				handle.Release()
				return ctx.Err()
			case <-time.After(time.Millisecond):
			}
		}
	})

	queue.Close()
	wg.Wait()
	queue.Drain(func(e bus.Event) { e.Tick.Release() })

	// An apply failure cancels the context, which surfaces from playback as
	// a cancellation; report the original error instead.
	var applyErr error
	select {
	case applyErr = <-errCh:
	default:
	}
	if applyErr != nil {
		return applyErr
	}
	if err != nil {
		return err
	}

	// Seal the rebuilt days so the block tree matches the journal.
	for _, ref := range st.LiveSeries() {
		if _, err := st.Seal(context.Background(), ref.SymbolID, ref.Kind, ref.Period); err != nil {
			return err
		}
	}
	snap := metrics.Snapshot()
	log.Printf("replay completed: total=%d records=%v merged=%d seals=%d", total, snap.RecordCounts, snap.Merged, snap.Seals)
	return nil
}

// applyTick lands one tick and refreshes every bar derived from it. A
// record behind the series clock is dropped, the store already counted it.
func applyTick(st *store.Store, bars *feed.BarEngine, header schema.EventHeader, tick *model.Tick) error {
	if err := st.AppendTick(header.SymbolID, tick); err != nil {
		if errors.Is(err, store.ErrOutOfOrder) {
			return nil
		}
		return err
	}
	for _, u := range bars.Apply(header.SymbolID, tick) {
		if err := st.AppendBar(header.SymbolID, u.Period, &u.Bar); err != nil && !errors.Is(err, store.ErrOutOfOrder) {
			return err
		}
	}
	return nil
}

// applyRecord lands one journaled record. Only ticks flow through the
// journal; bars are rebuilt from them.
func applyRecord(st *store.Store, bars *feed.BarEngine, header schema.EventHeader, payload []byte) error {
	switch header.Kind {
	case model.KindTick:
		tick, ok := model.RecordFromBytes[model.Tick](payload)
		if !ok {
			return fmt.Errorf("tick payload short: %d bytes", len(payload))
		}
		return applyTick(st, bars, header, &tick)
	default:
		return nil
	}
}

// sealRollover periodically seals every series day that has completed.
func sealRollover(ctx context.Context, st *store.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			today := model.TradingDay(now.UTC().UnixNano())
			for _, ref := range st.LiveSeries() {
				if model.TradingDay(ref.FirstBucket) >= today {
					continue
				}
				if _, err := st.SealBefore(ctx, ref.SymbolID, ref.Kind, ref.Period, today); err != nil {
					log.Printf("seal %s/%d failed: %v", ref.Kind, ref.SymbolID, err)
				}
			}
		}
	}
}

func loadConfig(path string, dataDir string) (ops.Loaded, error) {
	if path == "" {
		return defaultLoaded(dataDir)
	}
	return ops.Load(path)
}

func defaultLoaded(dataDir string) (ops.Loaded, error) {
	reg := schema.NewRegistry()
	venueID, err := reg.AddVenue("SIM")
	if err != nil {
		return ops.Loaded{}, err
	}
	scale := schema.ScaleSpec{
		PriceScale:    2,
		QuantityScale: 0,
		NotionalScale: 2,
	}
	for _, name := range []string{"600000", "600519"} {
		if _, err := reg.AddSymbol(name, venueID, scale); err != nil {
			return ops.Loaded{}, err
		}
	}
	journal := recorder.DefaultConfig(filepath.Join(dataDir, "journal"))
	journal.FlushInterval = 500 * time.Millisecond
	journal.SyncInterval = 5 * time.Second
	return ops.Loaded{
		Registry: reg,
		Storage: ops.StorageSpec{
			DataDir:      dataDir,
			Periods:      []model.Period{model.PeriodMin1, model.PeriodMin5},
			PoolSlots:    1 << 16,
			LiveCapacity: 4096,
			MaxOpenFiles: 64,
		},
		Journal: journal,
		Feed: ops.FeedSpec{
			Source:     ops.FeedSourceGenerate,
			QueueSize:  1024,
			RatePerSec: 100,
		},
		Features: ops.FeatureFlags{
			EnableJournal: true,
		},
	}, nil
}

func resolveCheckpointPath(dir string, path string) string {
	if path != "" {
		return path
	}
	return filepath.Join(dir, "checkpoint.json")
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
