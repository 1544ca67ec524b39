package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"main/internal/catalog"
	"main/internal/chaos"
	"main/internal/feed"
	"main/internal/mdg"
	"main/internal/mem"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/schema"
	"main/internal/store"
)

// sessionOffset places the first tick of each synthetic day inside a
// plausible trading session rather than at midnight.
const sessionOffset = 9*time.Hour + 30*time.Minute

func main() {
	dataDir := flag.String("data-dir", "testdata/datad", "Data directory for sealed block files")
	configPath := flag.String("config", "", "Path to JSON config")
	days := flag.Int("days", 1, "Number of trading days to generate")
	ticks := flag.Int("ticks", 1000, "Ticks per day")
	start := flag.String("start", "", "First trading day (yyyymmdd, default: today UTC)")
	step := flag.Duration("step", time.Second, "Synthetic clock step between ticks")
	seed := flag.Int64("seed", 0, "RNG seed (0=now)")
	basePrice := flag.Int64("base-price", 1000, "Base price (scaled)")
	baseQty := flag.Int64("base-qty", 1, "Base quantity (scaled)")
	spread := flag.Int64("spread", 0, "Bid/ask spread (scaled)")
	dropRate := flag.Float64("drop-rate", 0, "Drop probability [0-1]")
	dupRate := flag.Float64("dup-rate", 0, "Duplicate probability [0-1]")
	reorderWindow := flag.Int("reorder-window", 1, "Reorder window (>=1)")
	maxDelay := flag.Duration("max-delay", 0, "Max receive delay")
	backdateRate := flag.Float64("backdate-rate", 0, "Backdated event time probability [0-1]")
	maxBackdate := flag.Duration("max-backdate", 0, "Max event time backdate")
	flag.Parse()

	if *days <= 0 {
		log.Fatalf("days must be > 0")
	}
	if *ticks <= 0 {
		log.Fatalf("ticks must be > 0")
	}
	if *step <= 0 {
		log.Fatalf("step must be > 0")
	}

	loaded, err := loadConfig(*configPath, *dataDir)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	startDay, err := parseStartDay(*start)
	if err != nil {
		log.Fatalf("invalid start day: %v", err)
	}

	generator, err := mdg.NewGenerator(loaded.Registry, *seed, *basePrice, *baseQty, *spread)
	if err != nil {
		log.Fatalf("generator init failed: %v", err)
	}
	pool := mem.NewPool[model.Tick](1 << 12)
	normalizer, err := feed.NewNormalizer(loaded.Registry, pool, nil)
	if err != nil {
		log.Fatalf("normalizer init failed: %v", err)
	}
	engine, err := chaos.NewEngine(chaos.Config{
		Seed:          *seed,
		DropRate:      *dropRate,
		DuplicateRate: *dupRate,
		ReorderWindow: *reorderWindow,
		MaxDelay:      *maxDelay,
		BackdateRate:  *backdateRate,
		MaxBackdate:   *maxBackdate,
	})
	if err != nil {
		log.Fatalf("chaos config invalid: %v", err)
	}
	barEngine, err := feed.NewBarEngine(loaded.Storage.Periods)
	if err != nil {
		log.Fatalf("bar engine init failed: %v", err)
	}

	ctx := context.Background()
	var cat catalog.Catalog
	if loaded.Features.EnableCatalog {
		db, err := catalog.NewDB(ctx, loaded.Catalog)
		if err != nil {
			log.Fatalf("catalog init failed: %v", err)
		}
		defer db.Close()
		cat = db
	}

	metrics := obs.NewMetrics()
	st, err := store.New(store.Config{
		DataDir:      loaded.Storage.DataDir,
		Registry:     loaded.Registry,
		Catalog:      cat,
		LiveCapacity: loaded.Storage.LiveCapacity,
		MaxOpenFiles: loaded.Storage.MaxOpenFiles,
		Metrics:      metrics,
	})
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}

	guard := feed.NewOrderingGuard()
	var total int
	for d := 0; d < *days; d++ {
		clock := startDay.AddDate(0, 0, d).Add(sessionOffset)
		for i := 0; i < *ticks; i++ {
			payload, err := generator.Next(clock)
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
			ev := chaos.Event{
				Header:  header,
				Payload: append([]byte(nil), model.RawBytesOf(handle.Value())...),
			}
			handle.Release()
			for _, out := range engine.Process(ev) {
				if err := applyEvent(st, barEngine, guard, metrics, out); err != nil {
					log.Fatalf("apply failed: %v", err)
				}
			}
			total++
			clock = clock.Add(*step)
		}
	}
	for _, out := range engine.Flush() {
		if err := applyEvent(st, barEngine, guard, metrics, out); err != nil {
			log.Fatalf("apply failed: %v", err)
		}
	}

	var files int
	for _, ref := range st.LiveSeries() {
		entries, err := st.Seal(ctx, ref.SymbolID, ref.Kind, ref.Period)
		if err != nil {
			log.Fatalf("seal failed: %v", err)
		}
		for _, entry := range entries {
			fmt.Printf("%s kind=%s period=%s day=%d count=%d\n",
				entry.Path, entry.Kind, entry.Period, entry.TradingDay, entry.Count)
			files++
		}
	}
	st.Close()

	snapshot := metrics.Snapshot()
	log.Printf("histgen: days=%d ticks=%d files=%d out_of_order=%d seals=%d",
		*days, total, files, snapshot.OutOfOrder, snapshot.Seals)
}

// applyEvent folds one possibly perturbed tick into the store. Chaos edits
// land on the header, so the record timestamps are aligned to it before the
// ordering checks run.
func applyEvent(st *store.Store, bars *feed.BarEngine, guard *feed.OrderingGuard, metrics *obs.Metrics, ev chaos.Event) error {
	tick, ok := model.RecordFromBytes[model.Tick](ev.Payload)
	if !ok {
		return fmt.Errorf("tick payload short: %d bytes", len(ev.Payload))
	}
	tick.EventTsNano = ev.Header.TsEvent
	if ev.Header.TsRecv > 0 {
		tick.RecvTsNano = ev.Header.TsRecv
	}
	if !guard.Admit(ev.Header.SymbolID, ev.Header.TsEvent) {
		metrics.IncOutOfOrder()
		return nil
	}
	if err := st.AppendTick(ev.Header.SymbolID, &tick); err != nil {
		if errors.Is(err, store.ErrOutOfOrder) {
			return nil
		}
		return err
	}
	for _, u := range bars.Apply(ev.Header.SymbolID, &tick) {
		if err := st.AppendBar(ev.Header.SymbolID, u.Period, &u.Bar); err != nil && !errors.Is(err, store.ErrOutOfOrder) {
			return err
		}
	}
	metrics.ObserveEvent(ev.Header)
	return nil
}

func parseStartDay(s string) (time.Time, error) {
	if s == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse("20060102", s)
}

func loadConfig(path string, dataDir string) (ops.Loaded, error) {
	if path != "" {
		return ops.Load(path)
	}
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
	return ops.Loaded{
		Registry: reg,
		Storage: ops.StorageSpec{
			DataDir:      dataDir,
			Periods:      []model.Period{model.PeriodMin1, model.PeriodMin5},
			PoolSlots:    1 << 12,
			LiveCapacity: 4096,
			MaxOpenFiles: 64,
		},
	}, nil
}
