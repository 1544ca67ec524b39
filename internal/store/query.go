package store

import (
	"context"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/blockfile"
	"main/internal/catalog"
	"main/internal/model"
	"main/internal/schema"
	"main/internal/series"
)

// Ticks returns a slice ending at the live tick edge, reaching back through
// sealed files until it covers at least n records or history runs out. The
// caller closes the slice when done with it. n not above the live window
// never touches disk.
func (s *Store) Ticks(ctx context.Context, symbolID schema.SymbolID, n int) (*series.Slice[model.Tick], error) {
	defer s.observeQuery(time.Now())
	s.mtx.RLock()
	var live series.Block[model.Tick]
	if l := s.ticks[symbolID]; l != nil {
		live = l.log.Snapshot()
	}
	s.mtx.RUnlock()
	return assemble(ctx, s, querySpec{symbolID: symbolID, kind: model.KindTick}, live, n, blockfile.Ticks)
}

// Bars returns a slice ending at the open bar of the period. The final
// record is the open bar itself; it keeps updating in place until its
// window closes.
func (s *Store) Bars(ctx context.Context, symbolID schema.SymbolID, period model.Period, n int) (*series.Slice[model.Bar], error) {
	if !period.IsAvailable() {
		return nil, ErrUnknownPeriod
	}
	defer s.observeQuery(time.Now())
	s.mtx.RLock()
	var live series.Block[model.Bar]
	if l := s.bars[barKey{symbolID: symbolID, period: period}]; l != nil {
		live = l.log.Snapshot()
	}
	s.mtx.RUnlock()
	return assemble(ctx, s, querySpec{symbolID: symbolID, kind: model.KindBar, period: period}, live, n, blockfile.Bars)
}

// OrderQueues returns the most recent order queue snapshots.
func (s *Store) OrderQueues(ctx context.Context, symbolID schema.SymbolID, n int) (*series.Slice[model.OrderQueue], error) {
	defer s.observeQuery(time.Now())
	s.mtx.RLock()
	var live series.Block[model.OrderQueue]
	if l := s.queues[symbolID]; l != nil {
		live = l.log.Snapshot()
	}
	s.mtx.RUnlock()
	return assemble(ctx, s, querySpec{symbolID: symbolID, kind: model.KindOrderQueue}, live, n, blockfile.OrderQueues)
}

// OrderDetails returns the most recent order events.
func (s *Store) OrderDetails(ctx context.Context, symbolID schema.SymbolID, n int) (*series.Slice[model.OrderDetail], error) {
	defer s.observeQuery(time.Now())
	s.mtx.RLock()
	var live series.Block[model.OrderDetail]
	if l := s.orders[symbolID]; l != nil {
		live = l.log.Snapshot()
	}
	s.mtx.RUnlock()
	return assemble(ctx, s, querySpec{symbolID: symbolID, kind: model.KindOrderDetail}, live, n, blockfile.OrderDetails)
}

// Transactions returns the most recent trade prints.
func (s *Store) Transactions(ctx context.Context, symbolID schema.SymbolID, n int) (*series.Slice[model.Transaction], error) {
	defer s.observeQuery(time.Now())
	s.mtx.RLock()
	var live series.Block[model.Transaction]
	if l := s.trans[symbolID]; l != nil {
		live = l.log.Snapshot()
	}
	s.mtx.RUnlock()
	return assemble(ctx, s, querySpec{symbolID: symbolID, kind: model.KindTransaction}, live, n, blockfile.Transactions)
}

func (s *Store) observeQuery(start time.Time) {
	s.metrics.ObserveQuery(time.Since(start))
}

type querySpec struct {
	symbolID schema.SymbolID
	kind     model.RecordKind
	period   model.Period
}

// assemble builds the result slice: sealed blocks oldest first, the live
// window last. Whole files are appended, so the slice may hold more than n
// records; readers address it from the end.
func assemble[T series.Record](
	ctx context.Context,
	s *Store,
	q querySpec,
	live series.Block[T],
	n int,
	view func(*blockfile.MappedFile) (series.Block[T], error),
) (*series.Slice[T], error) {
	slice := series.NewSlice[T]()
	if need := n - live.Len(); need > 0 {
		if err := appendHistory(ctx, s, slice, q, need, view); err != nil {
			slice.Close()
			return nil, err
		}
	}
	slice.AppendBlock(live)
	return slice, nil
}

// appendHistory walks the catalog newest first until the needed record
// count is covered, then appends the picked files oldest first.
func appendHistory[T series.Record](
	ctx context.Context,
	s *Store,
	dst *series.Slice[T],
	q querySpec,
	need int,
	view func(*blockfile.MappedFile) (series.Block[T], error),
) error {
	entries, err := s.cat.List(ctx, catalog.Query{
		SymbolID: q.symbolID,
		Kind:     q.kind,
		Period:   q.period,
	})
	if err != nil {
		return errors.Wrap(err, "list sealed files")
	}

	first := len(entries)
	for remaining := need; first > 0 && remaining > 0; {
		first--
		remaining -= int(entries[first].Count)
	}

	for _, e := range entries[first:] {
		f, err := s.files.acquire(e.Path)
		if err != nil {
			return errors.Wrapf(err, "map sealed file %s", e.Path)
		}
		block, err := view(f)
		if err != nil {
			f.Release()
			return errors.Wrapf(err, "view sealed file %s", e.Path)
		}
		dst.AppendBlock(block)
		f.Release()
	}
	return nil
}
