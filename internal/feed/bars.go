package feed

import (
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/schema"
)

// BarBuilder folds ticks of one symbol into bars of one period. Input must
// be time ordered, run it behind an OrderingGuard.
type BarBuilder struct {
	period model.Period
	bar    model.Bar
	open   bool
}

// NewBarBuilder creates a builder for one period.
func NewBarBuilder(period model.Period) (*BarBuilder, error) {
	if !period.IsAvailable() {
		return nil, errors.Errorf("period unavailable: %s", period)
	}
	return &BarBuilder{period: period}, nil
}

// Apply folds one tick into the bar holding it and returns the updated bar.
// Appending every returned bar to a series folds same-window updates into
// one slot, so the newest window stays live until the next one opens.
func (b *BarBuilder) Apply(tick *model.Tick) model.Bar {
	bucket := b.period.Bucket(tick.EventTsNano)
	if !b.open || bucket != b.bar.StartTsNano {
		b.bar = model.Bar{
			StartTsNano:  bucket,
			Open:         tick.Last,
			High:         tick.Last,
			Low:          tick.Last,
			Close:        tick.Last,
			Volume:       tick.Volume,
			Turnover:     tick.Turnover,
			OpenInterest: tick.OpenInterest,
		}
		b.open = true
		return b.bar
	}
	if tick.Last > b.bar.High {
		b.bar.High = tick.Last
	}
	if tick.Last < b.bar.Low {
		b.bar.Low = tick.Last
	}
	b.bar.Close = tick.Last
	b.bar.Volume += tick.Volume
	b.bar.Turnover += tick.Turnover
	b.bar.OpenInterest = tick.OpenInterest
	return b.bar
}

// Current returns the open bar without closing it.
func (b *BarBuilder) Current() (model.Bar, bool) {
	return b.bar, b.open
}

type barKey struct {
	symbolID schema.SymbolID
	period   model.Period
}

// BarUpdate is one refreshed bar produced from a tick.
type BarUpdate struct {
	Period model.Period
	Bar    model.Bar
}

// BarEngine runs one builder per symbol and period.
type BarEngine struct {
	periods  []model.Period
	builders map[barKey]*BarBuilder
	scratch  []BarUpdate
}

// NewBarEngine creates an engine building the given periods.
func NewBarEngine(periods []model.Period) (*BarEngine, error) {
	if len(periods) == 0 {
		return nil, errors.New("no periods to build")
	}
	for _, period := range periods {
		if !period.IsAvailable() {
			return nil, errors.Errorf("period unavailable: %s", period)
		}
	}
	return &BarEngine{
		periods:  periods,
		builders: make(map[barKey]*BarBuilder),
		scratch:  make([]BarUpdate, 0, len(periods)),
	}, nil
}

// Apply folds the tick into every period's bar for the symbol. The returned
// slice is reused across calls.
func (e *BarEngine) Apply(symbolID schema.SymbolID, tick *model.Tick) []BarUpdate {
	e.scratch = e.scratch[:0]
	for _, period := range e.periods {
		key := barKey{symbolID: symbolID, period: period}
		builder, ok := e.builders[key]
		if !ok {
			builder = &BarBuilder{period: period}
			e.builders[key] = builder
		}
		e.scratch = append(e.scratch, BarUpdate{Period: period, Bar: builder.Apply(tick)})
	}
	return e.scratch
}

// Periods returns the periods the engine builds.
func (e *BarEngine) Periods() []model.Period {
	return e.periods
}
