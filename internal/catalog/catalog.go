// Package catalog locates sealed block files. The postgres backed catalog
// indexes files as they are sealed; the directory catalog recovers the same
// information by scanning file headers, for deployments without a database.
package catalog

import (
	"context"

	"main/internal/model"
	"main/internal/schema"
)

// Entry describes one sealed block file.
type Entry struct {
	SymbolID    schema.SymbolID
	Symbol      string
	Kind        model.RecordKind
	Period      model.Period
	TradingDay  int64
	Path        string
	Count       uint64
	FirstBucket int64
	LastBucket  int64
}

// Query selects entries for one series, optionally bounded to a day range.
// Zero day bounds are open ends.
type Query struct {
	SymbolID schema.SymbolID
	Kind     model.RecordKind
	Period   model.Period
	FromDay  int64
	ToDay    int64
}

func (q Query) matches(e Entry) bool {
	if e.SymbolID != q.SymbolID || e.Kind != q.Kind || e.Period != q.Period {
		return false
	}
	if q.FromDay > 0 && e.TradingDay < q.FromDay {
		return false
	}
	if q.ToDay > 0 && e.TradingDay > q.ToDay {
		return false
	}
	return true
}

// Catalog registers sealed block files and lists them back per series,
// oldest trading day first.
type Catalog interface {
	Register(ctx context.Context, e Entry) error
	List(ctx context.Context, q Query) ([]Entry, error)
	Close() error
}
