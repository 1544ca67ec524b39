// Package mdg synthesizes raw feed payloads for soak runs and history
// backfills.
package mdg

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"main/internal/model"
	"main/internal/schema"
)

// Generator creates synthetic tick payloads, one symbol at a time in
// round-robin order. Each symbol's last price follows a bounded random walk
// around its base price, and every numeric field is formatted at the
// symbol's own scale.
type Generator struct {
	symbols []schema.Symbol
	states  []walkState
	rng     *rand.Rand
	index   int

	basePrice int64
	baseQty   int64
	spread    int64
}

type walkState struct {
	last     int64
	open     int64
	high     int64
	low      int64
	preClose int64
	volume   int64
	turnover int64
	started  bool
}

// NewGenerator creates a generator for all symbols in the registry.
// basePrice and spread are in minor units of each symbol's price scale,
// baseQty in minor units of its quantity scale.
func NewGenerator(reg *schema.Registry, seed, basePrice, baseQty, spread int64) (*Generator, error) {
	if reg == nil || reg.SymbolCount() == 0 {
		return nil, fmt.Errorf("registry has no symbols")
	}
	symbols := make([]schema.Symbol, 0, reg.SymbolCount())
	for i := 0; i < reg.SymbolCount(); i++ {
		symbol, ok := reg.SymbolAt(i)
		if !ok {
			continue
		}
		symbols = append(symbols, symbol)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("registry has no symbols")
	}
	if basePrice <= 0 {
		basePrice = 1000
	}
	if baseQty <= 0 {
		baseQty = 1
	}
	if spread < 0 {
		spread = 0
	}
	if seed == 0 {
		seed = time.Now().UTC().UnixNano()
	}
	return &Generator{
		symbols:   symbols,
		states:    make([]walkState, len(symbols)),
		rng:       rand.New(rand.NewSource(seed)),
		basePrice: basePrice,
		baseQty:   baseQty,
		spread:    spread,
	}, nil
}

// wireTick mirrors the raw feed JSON shape.
type wireTick struct {
	Symbol        string      `json:"symbol"`
	TsEvent       int64       `json:"tsEvent"`
	TsRecv        int64       `json:"tsRecv"`
	Last          string      `json:"last"`
	Open          string      `json:"open"`
	High          string      `json:"high"`
	Low           string      `json:"low"`
	PreClose      string      `json:"preClose"`
	Volume        string      `json:"volume"`
	Turnover      string      `json:"turnover"`
	TotalVolume   string      `json:"totalVolume"`
	TotalTurnover string      `json:"totalTurnover"`
	Bids          []wireLevel `json:"bids"`
	Asks          []wireLevel `json:"asks"`
}

type wireLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// Next creates the next raw tick payload in sequence.
func (g *Generator) Next(now time.Time) ([]byte, error) {
	symbol := g.symbols[g.index]
	state := &g.states[g.index]
	g.index = (g.index + 1) % len(g.symbols)

	if !state.started {
		base := g.basePrice + int64(g.index)*10
		state.last = base
		state.open = base
		state.high = base
		state.low = base
		state.preClose = base - g.spread
		state.started = true
	} else {
		step := g.spread
		if step == 0 {
			step = 1
		}
		state.last += g.rng.Int63n(2*step+1) - step
		if floor := g.basePrice / 2; state.last < floor {
			state.last = floor
		}
		if ceil := g.basePrice * 2; state.last > ceil {
			state.last = ceil
		}
		if state.last > state.high {
			state.high = state.last
		}
		if state.last < state.low {
			state.low = state.last
		}
	}

	qty := (1 + g.rng.Int63n(10)) * g.baseQty
	turnover := rescale(state.last*qty, int(symbol.Scale.PriceScale+symbol.Scale.QuantityScale), int(symbol.Scale.NotionalScale))
	state.volume += qty
	state.turnover += turnover

	priceScale := int(symbol.Scale.PriceScale)
	qtyScale := int(symbol.Scale.QuantityScale)
	notionalScale := int(symbol.Scale.NotionalScale)

	tsEvent := now.UnixNano()
	tick := wireTick{
		Symbol:        symbol.Name,
		TsEvent:       tsEvent,
		TsRecv:        tsEvent + g.rng.Int63n(int64(2*time.Millisecond)),
		Last:          model.FormatScaled(state.last, priceScale),
		Open:          model.FormatScaled(state.open, priceScale),
		High:          model.FormatScaled(state.high, priceScale),
		Low:           model.FormatScaled(state.low, priceScale),
		PreClose:      model.FormatScaled(state.preClose, priceScale),
		Volume:        model.FormatScaled(qty, qtyScale),
		Turnover:      model.FormatScaled(turnover, notionalScale),
		TotalVolume:   model.FormatScaled(state.volume, qtyScale),
		TotalTurnover: model.FormatScaled(state.turnover, notionalScale),
		Bids:          make([]wireLevel, 0, model.DepthLevels),
		Asks:          make([]wireLevel, 0, model.DepthLevels),
	}
	for i := int64(0); i < model.DepthLevels; i++ {
		bid := state.last - g.spread - i
		ask := state.last + g.spread + i
		tick.Bids = append(tick.Bids, wireLevel{
			Price: model.FormatScaled(bid, priceScale),
			Size:  model.FormatScaled((1+g.rng.Int63n(10))*g.baseQty, qtyScale),
		})
		tick.Asks = append(tick.Asks, wireLevel{
			Price: model.FormatScaled(ask, priceScale),
			Size:  model.FormatScaled((1+g.rng.Int63n(10))*g.baseQty, qtyScale),
		})
	}

	payload, err := json.Marshal(tick)
	if err != nil {
		return nil, fmt.Errorf("marshal tick: %w", err)
	}
	return payload, nil
}

// SymbolCount returns how many symbols the generator cycles through.
func (g *Generator) SymbolCount() int {
	return len(g.symbols)
}

// rescale converts a scaled integer between decimal scales, truncating when
// the target is coarser.
func rescale(value int64, from, to int) int64 {
	for from < to {
		value *= 10
		from++
	}
	for from > to {
		value /= 10
		from--
	}
	return value
}
