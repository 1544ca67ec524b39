package main

import (
	"context"
	"flag"
	"log"
	"sync"
	"time"

	"main/internal/bus"
	"main/internal/feed"
	"main/internal/mdg"
	"main/internal/mem"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/recorder"
	"main/internal/schema"
)

func main() {
	journalDir := flag.String("journal-dir", "testdata/datad/journal", "Journal directory for generated ticks")
	configPath := flag.String("config", "", "Path to JSON config")
	ticks := flag.Int("ticks", 10, "Number of ticks to generate")
	interval := flag.Duration("interval", 0, "Delay between ticks")
	basePrice := flag.Int64("base-price", 1000, "Base price (scaled)")
	baseQty := flag.Int64("base-qty", 1, "Base quantity (scaled)")
	spread := flag.Int64("spread", 0, "Bid/ask spread (scaled)")
	seed := flag.Int64("seed", 0, "RNG seed (0=now)")
	flag.Parse()

	if *ticks <= 0 {
		log.Fatalf("ticks must be > 0")
	}

	registry, err := loadRegistry(*configPath)
	if err != nil {
		log.Fatalf("registry load failed: %v", err)
	}

	generator, err := mdg.NewGenerator(registry, *seed, *basePrice, *baseQty, *spread)
	if err != nil {
		log.Fatalf("generator init failed: %v", err)
	}
	pool := mem.NewPool[model.Tick](1 << 12)
	normalizer, err := feed.NewNormalizer(registry, pool, nil)
	if err != nil {
		log.Fatalf("normalizer init failed: %v", err)
	}

	ctx := context.Background()
	cfg := recorder.DefaultConfig(*journalDir)
	writer, err := recorder.NewWriter(cfg)
	if err != nil {
		log.Fatalf("journal init failed: %v", err)
	}
	if err := writer.Start(ctx); err != nil {
		log.Fatalf("journal start failed: %v", err)
	}

	queue := bus.NewQueue(1024)
	errCh := make(chan error, 1)
	var wg sync.WaitGroup
	metrics := obs.NewMetrics()

	wg.Add(1)
	go func() {
		defer wg.Done()
		queue.Run(ctx, func(e bus.Event) {
			if err := writer.TryAppend(e.Header, model.RawBytesOf(e.Tick.Value())); err != nil {
				select {
				case errCh <- err:
				default:
				}
			}
			e.Tick.Release()
		})
	}()

	for i := 0; i < *ticks; i++ {
		now := time.Now().UTC()
		payload, err := generator.Next(now)
		if err != nil {
			log.Fatalf("generate failed: %v", err)
		}
		raw, err := feed.ParseRawTick(payload)
		if err != nil {
			log.Fatalf("parse failed: %v", err)
		}
		header, handle, err := normalizer.Normalize(raw)
		if err != nil {
			log.Fatalf("normalize failed: %v", err)
		}
		if err := queue.TryPublish(bus.Event{Header: header, Tick: handle}); err != nil {
			handle.Release()
			if err == bus.ErrQueueFull {
				metrics.IncQueueDrop()
			} else if err == bus.ErrQueueClosed {
				metrics.IncQueueClosed()
			}
			log.Fatalf("publish failed: %v", err)
		}
		metrics.ObserveEvent(header)
		if *interval > 0 && i < *ticks-1 {
			time.Sleep(*interval)
		}
	}

	queue.Close()
	wg.Wait()

	var appendErr error
	select {
	case appendErr = <-errCh:
	default:
	}

	if err := writer.Close(); err != nil {
		log.Fatalf("journal close failed: %v", err)
	}
	if appendErr != nil {
		log.Fatalf("journal append failed: %v", appendErr)
	}
	snapshot := metrics.Snapshot()
	log.Printf("metrics: records=%v drops=%d closed=%d feed_latency=%+v",
		snapshot.RecordCounts, snapshot.QueueDrops, snapshot.QueueClosed, snapshot.FeedLatency)
}

func loadRegistry(path string) (*schema.Registry, error) {
	if path == "" {
		return defaultRegistry()
	}
	return ops.LoadRegistry(path)
}

func defaultRegistry() (*schema.Registry, error) {
	reg := schema.NewRegistry()
	venueID, err := reg.AddVenue("SIM")
	if err != nil {
		return nil, err
	}
	scale := schema.ScaleSpec{
		PriceScale:    2,
		QuantityScale: 0,
		NotionalScale: 2,
	}
	for _, name := range []string{"600000", "600519"} {
		if _, err := reg.AddSymbol(name, venueID, scale); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
