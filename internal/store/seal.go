package store

import (
	"context"
	"math"
	"path/filepath"
	"strconv"

	"github.com/yanun0323/errors"

	"main/internal/blockfile"
	"main/internal/catalog"
	"main/internal/model"
	"main/internal/schema"
	"main/internal/series"
)

// Seal persists every live record of one series into its trading days'
// block files, registers them in the catalog and leaves a fresh live log
// behind. The series clock survives the seal, so records behind the sealed
// edge stay rejected. A series with no live records seals to no entries.
func (s *Store) Seal(ctx context.Context, symbolID schema.SymbolID, kind model.RecordKind, period model.Period) ([]catalog.Entry, error) {
	return s.SealBefore(ctx, symbolID, kind, period, math.MaxInt64)
}

// SealBefore seals only the part of the series from trading days older
// than beforeDay, keeping the current day's window live. Rollover calls
// this with today so completed days land on disk while the feed keeps
// appending.
func (s *Store) SealBefore(ctx context.Context, symbolID schema.SymbolID, kind model.RecordKind, period model.Period, beforeDay int64) ([]catalog.Entry, error) {
	switch kind {
	case model.KindTick:
		return sealLive(ctx, s, symbolID, kind, model.PeriodNone, s.cutTicks(symbolID, beforeDay))
	case model.KindBar:
		if !period.IsAvailable() {
			return nil, ErrUnknownPeriod
		}
		return sealLive(ctx, s, symbolID, kind, period, s.cutBars(symbolID, period, beforeDay))
	case model.KindOrderQueue:
		return sealLive(ctx, s, symbolID, kind, model.PeriodNone, s.cutQueues(symbolID, beforeDay))
	case model.KindOrderDetail:
		return sealLive(ctx, s, symbolID, kind, model.PeriodNone, s.cutOrders(symbolID, beforeDay))
	case model.KindTransaction:
		return sealLive(ctx, s, symbolID, kind, model.PeriodNone, s.cutTrans(symbolID, beforeDay))
	default:
		return nil, ErrUnknownKind
	}
}

func (s *Store) cutTicks(id schema.SymbolID, beforeDay int64) []model.Tick {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if l := s.ticks[id]; l != nil {
		return l.cutBefore(beforeDay, s.cfg.LiveCapacity)
	}
	return nil
}

func (s *Store) cutBars(id schema.SymbolID, period model.Period, beforeDay int64) []model.Bar {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if l := s.bars[barKey{symbolID: id, period: period}]; l != nil {
		return l.cutBefore(beforeDay, s.cfg.LiveCapacity)
	}
	return nil
}

func (s *Store) cutQueues(id schema.SymbolID, beforeDay int64) []model.OrderQueue {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if l := s.queues[id]; l != nil {
		return l.cutBefore(beforeDay, s.cfg.LiveCapacity)
	}
	return nil
}

func (s *Store) cutOrders(id schema.SymbolID, beforeDay int64) []model.OrderDetail {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if l := s.orders[id]; l != nil {
		return l.cutBefore(beforeDay, s.cfg.LiveCapacity)
	}
	return nil
}

func (s *Store) cutTrans(id schema.SymbolID, beforeDay int64) []model.Transaction {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if l := s.trans[id]; l != nil {
		return l.cutBefore(beforeDay, s.cfg.LiveCapacity)
	}
	return nil
}

// sealLive writes the cut records day by day. After a feed gap the cut can
// span several trading days; each run of one day becomes its own file.
func sealLive[T series.Record](ctx context.Context, s *Store, symbolID schema.SymbolID, kind model.RecordKind, period model.Period, recs []T) ([]catalog.Entry, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	symbol := s.symbolName(symbolID)
	var entries []catalog.Entry
	for start := 0; start < len(recs); {
		day := model.TradingDay(recs[start].TimeBucket())
		end := start + 1
		for end < len(recs) && model.TradingDay(recs[end].TimeBucket()) == day {
			end++
		}
		e, err := sealDay(ctx, s, symbolID, kind, period, symbol, day, recs[start:end])
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
		start = end
	}
	return entries, nil
}

func sealDay[T series.Record](ctx context.Context, s *Store, symbolID schema.SymbolID, kind model.RecordKind, period model.Period, symbol string, day int64, recs []T) (catalog.Entry, error) {
	path := s.blockPath(kind, period, symbol, day)

	recs = mergeExisting(path, kind, recs)

	if err := blockfile.Write(path, blockfile.Header{
		Kind:       kind,
		Period:     period,
		SymbolID:   symbolID,
		TradingDay: day,
	}, recs); err != nil {
		return catalog.Entry{}, errors.Wrapf(err, "write block file %s", path)
	}
	s.files.invalidate(path)

	e := catalog.Entry{
		SymbolID:    symbolID,
		Symbol:      symbol,
		Kind:        kind,
		Period:      period,
		TradingDay:  day,
		Path:        path,
		Count:       uint64(len(recs)),
		FirstBucket: recs[0].TimeBucket(),
		LastBucket:  recs[len(recs)-1].TimeBucket(),
	}
	if err := s.cat.Register(ctx, e); err != nil {
		return catalog.Entry{}, errors.Wrapf(err, "register block file %s", path)
	}
	s.metrics.IncSeal()
	return e, nil
}

// mergeExisting folds a previous seal of the same day under the new batch.
// Existing records older than the new batch survive in front of it; the
// overlap is replaced by the new records, so resealing after a journal
// replay of the whole day is idempotent.
func mergeExisting[T series.Record](path string, kind model.RecordKind, recs []T) []T {
	prev, err := blockfile.Open(path)
	if err != nil {
		return recs
	}
	defer prev.Release()

	block, err := blockfile.Records[T](prev, kind)
	if err != nil || block.Len() == 0 {
		return recs
	}

	cut := recs[0].TimeBucket()
	old := block.Records()
	keep := 0
	for keep < len(old) && old[keep].TimeBucket() < cut {
		keep++
	}
	if keep == 0 {
		return recs
	}
	merged := make([]T, 0, keep+len(recs))
	merged = append(merged, old[:keep]...)
	merged = append(merged, recs...)
	return merged
}

// blockPath lays sealed files out as his/<series>/<symbol>/<yyyymmdd>.mdb,
// bar series named by period and event series by kind.
func (s *Store) blockPath(kind model.RecordKind, period model.Period, symbol string, day int64) string {
	dir := kind.String()
	if kind == model.KindBar {
		dir = period.String()
	}
	return filepath.Join(s.cfg.DataDir, "his", dir, symbol, strconv.FormatInt(day, 10)+catalog.BlockFileSuffix)
}
