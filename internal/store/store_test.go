package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/obs"
	"main/internal/schema"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	venue, err := reg.AddVenue("SSE")
	require.NoError(t, err)
	for _, name := range []string{"600000", "600519"} {
		_, err := reg.AddSymbol(name, venue, schema.ScaleSpec{PriceScale: 2, QuantityScale: 0, NotionalScale: 2})
		require.NoError(t, err)
	}
	return reg
}

func newTestStore(t *testing.T, dir string) (*Store, *obs.Metrics) {
	t.Helper()
	metrics := obs.NewMetrics()
	s, err := New(Config{
		DataDir:  dir,
		Registry: testRegistry(t),
		Metrics:  metrics,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, metrics
}

var sessionOpen = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC).UnixNano()

func tickAt(ts int64, last int64) *model.Tick {
	return &model.Tick{
		EventTsNano: ts,
		RecvTsNano:  ts + 1e6,
		Last:        model.Price(last),
		Volume:      model.Quantity(10),
		Turnover:    model.Notional(last * 10),
	}
}

func mustSymbol(t *testing.T, s *Store, name string) schema.SymbolID {
	t.Helper()
	id, ok := s.cfg.Registry.SymbolIDByName(name)
	require.True(t, ok)
	return id
}

func TestLiveQueryStaysOffDisk(t *testing.T) {
	s, metrics := newTestStore(t, t.TempDir())
	id := mustSymbol(t, s, "600000")

	for i := 0; i < 10; i++ {
		require.NoError(t, s.AppendTick(id, tickAt(sessionOpen+int64(i)*1e9, 100_00+int64(i))))
	}

	slice, err := s.Ticks(context.Background(), id, 5)
	require.NoError(t, err)
	defer slice.Close()

	assert.Equal(t, 10, slice.Len(), "live window comes back whole")
	assert.Equal(t, 1, slice.Blocks())
	assert.Equal(t, model.Price(100_09), slice.Last().Last)
	assert.Equal(t, model.Price(100_00), slice.First().Last)
	assert.Equal(t, model.Price(100_08), slice.At(-2).Last)

	snap := metrics.Snapshot()
	assert.Zero(t, snap.FilesOpened, "no disk touched while live covers the ask")
	assert.Equal(t, uint64(1), snap.QueryLatency.Count)
}

func TestAppendEnforcesSeriesClock(t *testing.T) {
	s, metrics := newTestStore(t, t.TempDir())
	id := mustSymbol(t, s, "600000")

	require.NoError(t, s.AppendTick(id, tickAt(sessionOpen+2e9, 100_00)))
	err := s.AppendTick(id, tickAt(sessionOpen+1e9, 99_00))
	require.ErrorIs(t, err, ErrOutOfOrder)

	// The same bucket folds instead of appending.
	require.NoError(t, s.AppendTick(id, tickAt(sessionOpen+2e9, 101_00)))

	slice, err := s.Ticks(context.Background(), id, 10)
	require.NoError(t, err)
	defer slice.Close()
	require.Equal(t, 1, slice.Len())
	assert.Equal(t, model.Price(101_00), slice.Last().Last)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.OutOfOrder)
	assert.Equal(t, uint64(1), snap.Merged)
}

func TestOpenBarOverwritesInPlace(t *testing.T) {
	s, _ := newTestStore(t, t.TempDir())
	id := mustSymbol(t, s, "600519")
	bucket := model.PeriodMin1.Bucket(sessionOpen)

	bar := model.Bar{StartTsNano: bucket, Open: 100_00, High: 100_00, Low: 100_00, Close: 100_00, Volume: 5}
	require.NoError(t, s.AppendBar(id, model.PeriodMin1, &bar))

	bar.High = 102_00
	bar.Close = 101_50
	bar.Volume = 9
	require.NoError(t, s.AppendBar(id, model.PeriodMin1, &bar))

	slice, err := s.Bars(context.Background(), id, model.PeriodMin1, 10)
	require.NoError(t, err)
	defer slice.Close()

	require.Equal(t, 1, slice.Len(), "open bar updates must not grow the series")
	assert.Equal(t, model.Price(101_50), slice.Last().Close)
	assert.Equal(t, model.Quantity(9), slice.Last().Volume)

	err = s.AppendBar(id, model.PeriodNone, &bar)
	require.ErrorIs(t, err, ErrUnknownPeriod)
}

func TestSealThenQuerySpansHistoryAndLive(t *testing.T) {
	dir := t.TempDir()
	s, metrics := newTestStore(t, dir)
	id := mustSymbol(t, s, "600000")
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, s.AppendTick(id, tickAt(sessionOpen+int64(i)*1e9, 100_00+int64(i))))
	}

	entries, err := s.Seal(ctx, id, model.KindTick, model.PeriodNone)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, uint64(10), entry.Count)
	assert.Equal(t, int64(20240315), entry.TradingDay)
	assert.Equal(t, "600000", entry.Symbol)
	assert.FileExists(t, entry.Path)

	nextDay := time.Date(2024, 3, 16, 9, 30, 0, 0, time.UTC).UnixNano()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendTick(id, tickAt(nextDay+int64(i)*1e9, 200_00+int64(i))))
	}

	slice, err := s.Ticks(ctx, id, 15)
	require.NoError(t, err)
	defer slice.Close()

	require.Equal(t, 15, slice.Len())
	assert.Equal(t, 2, slice.Blocks(), "one sealed file plus the live window")
	assert.Equal(t, model.Price(100_00), slice.First().Last)
	assert.Equal(t, model.Price(200_04), slice.Last().Last)
	assert.Equal(t, model.Price(100_09), slice.At(9).Last, "sealed records precede live ones")
	assert.Equal(t, model.Price(200_00), slice.At(-5).Last)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.Seals)
	assert.Equal(t, uint64(1), snap.FilesOpened)

	// A second query over the same span hits the mapped cache.
	again, err := s.Ticks(ctx, id, 15)
	require.NoError(t, err)
	again.Close()
	assert.Equal(t, uint64(1), metrics.Snapshot().CacheHits)
}

func TestSealEmptySeries(t *testing.T) {
	s, metrics := newTestStore(t, t.TempDir())
	id := mustSymbol(t, s, "600000")

	entries, err := s.Seal(context.Background(), id, model.KindTick, model.PeriodNone)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, metrics.Snapshot().Seals)

	_, err = s.Seal(context.Background(), id, model.RecordKind(99), model.PeriodNone)
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestSeriesClockSurvivesSeal(t *testing.T) {
	s, _ := newTestStore(t, t.TempDir())
	id := mustSymbol(t, s, "600000")
	ctx := context.Background()

	require.NoError(t, s.AppendTick(id, tickAt(sessionOpen+5e9, 100_00)))
	_, err := s.Seal(ctx, id, model.KindTick, model.PeriodNone)
	require.NoError(t, err)

	err = s.AppendTick(id, tickAt(sessionOpen+1e9, 99_00))
	require.ErrorIs(t, err, ErrOutOfOrder, "sealing must not reopen the past")

	require.NoError(t, s.AppendTick(id, tickAt(sessionOpen+6e9, 100_01)))
}

func TestResealMergesSameDay(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, _ := newTestStore(t, dir)
	id := mustSymbol(t, first, "600000")
	for i := 1; i <= 5; i++ {
		require.NoError(t, first.AppendTick(id, tickAt(sessionOpen+int64(i)*1e9, 100_00+int64(i))))
	}
	_, err := first.Seal(ctx, id, model.KindTick, model.PeriodNone)
	require.NoError(t, err)
	first.Close()

	// A restart replays the journal tail from tick 3 onward; resealing the
	// day must keep the records only the first seal had.
	second, _ := newTestStore(t, dir)
	for i := 3; i <= 8; i++ {
		require.NoError(t, second.AppendTick(id, tickAt(sessionOpen+int64(i)*1e9, 100_00+int64(i))))
	}
	entries, err := second.Seal(ctx, id, model.KindTick, model.PeriodNone)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(8), entries[0].Count)

	slice, err := second.Ticks(ctx, id, 100)
	require.NoError(t, err)
	defer slice.Close()

	require.Equal(t, 8, slice.Len())
	for i := 0; i < 8; i++ {
		assert.Equal(t, sessionOpen+int64(i+1)*1e9, slice.At(i).EventTsNano, "record %d", i)
		assert.Equal(t, model.Price(100_01+int64(i)), slice.At(i).Last, "record %d", i)
	}
}

func TestSealBeforeKeepsTodayLive(t *testing.T) {
	s, _ := newTestStore(t, t.TempDir())
	id := mustSymbol(t, s, "600000")
	ctx := context.Background()

	nextDay := time.Date(2024, 3, 16, 9, 30, 0, 0, time.UTC).UnixNano()
	for i := 0; i < 6; i++ {
		require.NoError(t, s.AppendTick(id, tickAt(sessionOpen+int64(i)*1e9, 100_00+int64(i))))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendTick(id, tickAt(nextDay+int64(i)*1e9, 200_00+int64(i))))
	}

	entries, err := s.SealBefore(ctx, id, model.KindTick, model.PeriodNone, 20240316)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(20240315), entries[0].TradingDay)
	assert.Equal(t, uint64(6), entries[0].Count)

	refs := s.LiveSeries()
	require.Len(t, refs, 1, "the open day stays live")
	assert.Equal(t, 3, refs[0].Records)
	assert.Equal(t, nextDay, refs[0].FirstBucket)

	slice, err := s.Ticks(ctx, id, 9)
	require.NoError(t, err)
	defer slice.Close()
	require.Equal(t, 9, slice.Len())
	assert.Equal(t, model.Price(100_00), slice.First().Last)
	assert.Equal(t, model.Price(200_02), slice.Last().Last)

	// Nothing older than the open day is left to seal.
	entries, err = s.SealBefore(ctx, id, model.KindTick, model.PeriodNone, 20240316)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSealSplitsTradingDays(t *testing.T) {
	s, metrics := newTestStore(t, t.TempDir())
	id := mustSymbol(t, s, "600000")
	ctx := context.Background()

	// A weekend-shaped gap: records from two non-adjacent days in one window.
	laterDay := time.Date(2024, 3, 18, 9, 30, 0, 0, time.UTC).UnixNano()
	for i := 0; i < 4; i++ {
		require.NoError(t, s.AppendTick(id, tickAt(sessionOpen+int64(i)*1e9, 100_00+int64(i))))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, s.AppendTick(id, tickAt(laterDay+int64(i)*1e9, 300_00+int64(i))))
	}

	entries, err := s.Seal(ctx, id, model.KindTick, model.PeriodNone)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(20240315), entries[0].TradingDay)
	assert.Equal(t, uint64(4), entries[0].Count)
	assert.Equal(t, int64(20240318), entries[1].TradingDay)
	assert.Equal(t, uint64(2), entries[1].Count)
	assert.FileExists(t, entries[0].Path)
	assert.FileExists(t, entries[1].Path)
	assert.NotEqual(t, entries[0].Path, entries[1].Path)
	assert.Equal(t, uint64(2), metrics.Snapshot().Seals)
	assert.Empty(t, s.LiveSeries())

	slice, err := s.Ticks(ctx, id, 6)
	require.NoError(t, err)
	defer slice.Close()
	require.Equal(t, 6, slice.Len())
	assert.Equal(t, model.Price(100_00), slice.First().Last)
	assert.Equal(t, model.Price(300_01), slice.Last().Last)
}

func TestCacheEvictionKeepsOutstandingSlicesAlive(t *testing.T) {
	dir := t.TempDir()
	metrics := obs.NewMetrics()
	s, err := New(Config{
		DataDir:      dir,
		Registry:     testRegistry(t),
		MaxOpenFiles: 1,
		Metrics:      metrics,
	})
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	a := mustSymbol(t, s, "600000")
	b := mustSymbol(t, s, "600519")
	for i := 0; i < 4; i++ {
		require.NoError(t, s.AppendTick(a, tickAt(sessionOpen+int64(i)*1e9, 100_00+int64(i))))
		require.NoError(t, s.AppendTick(b, tickAt(sessionOpen+int64(i)*1e9, 1700_00+int64(i))))
	}
	_, err = s.Seal(ctx, a, model.KindTick, model.PeriodNone)
	require.NoError(t, err)
	_, err = s.Seal(ctx, b, model.KindTick, model.PeriodNone)
	require.NoError(t, err)

	sliceA, err := s.Ticks(ctx, a, 4)
	require.NoError(t, err)
	defer sliceA.Close()

	// Querying the second symbol evicts the first file from the cache while
	// sliceA still reads from it.
	sliceB, err := s.Ticks(ctx, b, 4)
	require.NoError(t, err)
	defer sliceB.Close()

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(2), snap.FilesOpened)
	assert.Equal(t, uint64(1), snap.FilesEvicted)
	assert.Equal(t, 1, s.files.size())

	assert.Equal(t, model.Price(100_00), sliceA.First().Last)
	assert.Equal(t, model.Price(100_03), sliceA.Last().Last)
	assert.Equal(t, model.Price(1700_03), sliceB.Last().Last)
}

func TestMappedBytesGauge(t *testing.T) {
	dir := t.TempDir()
	s, metrics := newTestStore(t, dir)
	id := mustSymbol(t, s, "600000")
	ctx := context.Background()

	require.NoError(t, s.AppendTick(id, tickAt(sessionOpen, 100_00)))
	_, err := s.Seal(ctx, id, model.KindTick, model.PeriodNone)
	require.NoError(t, err)

	slice, err := s.Ticks(ctx, id, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(64+model.TickSize), metrics.Snapshot().MappedBytes)
	slice.Close()

	s.Close()
	assert.Zero(t, metrics.Snapshot().MappedBytes)
}

func TestLiveSeriesListing(t *testing.T) {
	s, _ := newTestStore(t, t.TempDir())
	a := mustSymbol(t, s, "600000")
	b := mustSymbol(t, s, "600519")

	require.NoError(t, s.AppendTick(a, tickAt(sessionOpen+1e9, 100_00)))
	require.NoError(t, s.AppendTick(a, tickAt(sessionOpen+2e9, 100_01)))
	bar := model.Bar{StartTsNano: model.PeriodMin1.Bucket(sessionOpen), Close: 100_00}
	require.NoError(t, s.AppendBar(a, model.PeriodMin1, &bar))
	require.NoError(t, s.AppendTransaction(b, &model.Transaction{EventTsNano: sessionOpen, Seq: 1, Price: 1700_00, Volume: 3, Side: model.SideBuy}))

	refs := s.LiveSeries()
	require.Len(t, refs, 3)

	assert.Equal(t, SeriesRef{SymbolID: a, Kind: model.KindTick, Period: model.PeriodNone, Records: 2, FirstBucket: sessionOpen + 1e9, LastBucket: sessionOpen + 2e9}, refs[0])
	assert.Equal(t, model.KindBar, refs[1].Kind)
	assert.Equal(t, model.PeriodMin1, refs[1].Period)
	assert.Equal(t, SeriesRef{SymbolID: b, Kind: model.KindTransaction, Period: model.PeriodNone, Records: 1, FirstBucket: sessionOpen, LastBucket: sessionOpen}, refs[2])
}

func TestEventSeriesRoundTrip(t *testing.T) {
	s, _ := newTestStore(t, t.TempDir())
	id := mustSymbol(t, s, "600000")
	ctx := context.Background()

	q := model.OrderQueue{EventTsNano: sessionOpen, Price: 100_00, Side: model.SideBuy, Count: 2}
	q.Sizes[0], q.Sizes[1] = 300, 500
	require.NoError(t, s.AppendOrderQueue(id, &q))

	d := model.OrderDetail{EventTsNano: sessionOpen + 1e6, Seq: 9, Price: 100_01, Volume: 4, Side: model.SideSell, Action: model.ActionPlace}
	require.NoError(t, s.AppendOrderDetail(id, &d))

	x := model.Transaction{EventTsNano: sessionOpen + 2e6, Seq: 10, Price: 100_01, Volume: 4, Side: model.SideSell, Flags: model.TransMatch, BidSeq: 3, AskSeq: 9}
	require.NoError(t, s.AppendTransaction(id, &x))

	queues, err := s.OrderQueues(ctx, id, 1)
	require.NoError(t, err)
	defer queues.Close()
	assert.Equal(t, uint32(300), queues.Last().Sizes[0])

	details, err := s.OrderDetails(ctx, id, 1)
	require.NoError(t, err)
	defer details.Close()
	assert.Equal(t, model.ActionPlace, details.Last().Action)

	prints, err := s.Transactions(ctx, id, 1)
	require.NoError(t, err)
	defer prints.Close()
	assert.Equal(t, uint64(9), prints.Last().AskSeq)

	// Each event kind seals into its own tree.
	for _, kind := range []model.RecordKind{model.KindOrderQueue, model.KindOrderDetail, model.KindTransaction} {
		entries, err := s.Seal(ctx, id, kind, model.PeriodNone)
		require.NoError(t, err)
		require.Len(t, entries, 1, "kind %s", kind)
		assert.Equal(t, uint64(1), entries[0].Count, "kind %s", kind)
		assert.FileExists(t, entries[0].Path)
	}
}
