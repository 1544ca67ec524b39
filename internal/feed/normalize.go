package feed

import (
	"fmt"
	"time"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"

	"main/internal/mem"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/schema"
)

// Normalizer resolves raw ticks into pooled records using the symbol's
// scale spec.
type Normalizer struct {
	reg  *schema.Registry
	pool *mem.Pool[model.Tick]
	seq  *obs.SeqGenerator
}

// NewNormalizer creates a normalizer over a registry and a tick pool.
func NewNormalizer(reg *schema.Registry, pool *mem.Pool[model.Tick], seq *obs.SeqGenerator) (*Normalizer, error) {
	if reg == nil || reg.SymbolCount() == 0 {
		return nil, errors.New("registry has no symbols")
	}
	if pool == nil {
		return nil, errors.New("tick pool is nil")
	}
	if seq == nil {
		seq = obs.NewSeqGenerator(0)
	}
	return &Normalizer{reg: reg, pool: pool, seq: seq}, nil
}

// Normalize converts a raw tick into a header and a pooled record. The
// caller owns the returned handle and must release it. On error no handle
// stays allocated.
func (n *Normalizer) Normalize(raw RawTick) (schema.EventHeader, mem.Handle[model.Tick], error) {
	var none mem.Handle[model.Tick]

	symbol, ok := n.reg.SymbolByName(raw.Symbol)
	if !ok {
		return schema.EventHeader{}, none, errors.Errorf("symbol not found: %s", raw.Symbol)
	}
	if raw.TsRecv == 0 {
		raw.TsRecv = time.Now().UTC().UnixNano()
	}
	if raw.TsEvent == 0 {
		raw.TsEvent = raw.TsRecv
	}

	handle, err := n.pool.Allocate()
	if err != nil {
		return schema.EventHeader{}, none, errors.Wrap(err, "allocate tick slot")
	}

	scale := symbol.Scale
	var scaleErr error
	price := func(d decimal.Decimal, field string) model.Price {
		v, err := scaleDecimal(d, scale.PriceScale)
		if err != nil && scaleErr == nil {
			scaleErr = errors.Wrapf(err, "%s of %s", field, raw.Symbol)
		}
		return model.Price(v)
	}
	qty := func(d decimal.Decimal, field string) model.Quantity {
		v, err := scaleDecimal(d, scale.QuantityScale)
		if err != nil && scaleErr == nil {
			scaleErr = errors.Wrapf(err, "%s of %s", field, raw.Symbol)
		}
		return model.Quantity(v)
	}
	notional := func(d decimal.Decimal, field string) model.Notional {
		v, err := scaleDecimal(d, scale.NotionalScale)
		if err != nil && scaleErr == nil {
			scaleErr = errors.Wrapf(err, "%s of %s", field, raw.Symbol)
		}
		return model.Notional(v)
	}

	tick := handle.Value()
	tick.EventTsNano = raw.TsEvent
	tick.RecvTsNano = raw.TsRecv
	tick.Last = price(raw.Last, "last")
	tick.Open = price(raw.Open, "open")
	tick.High = price(raw.High, "high")
	tick.Low = price(raw.Low, "low")
	tick.PreClose = price(raw.PreClose, "preClose")
	tick.Volume = qty(raw.Volume, "volume")
	tick.Turnover = notional(raw.Turnover, "turnover")
	tick.TotalVolume = qty(raw.TotalVolume, "totalVolume")
	tick.TotalTurnover = notional(raw.TotalTurnover, "totalTurnover")
	tick.OpenInterest = qty(raw.OpenInterest, "openInterest")

	bidDepth := len(raw.Bids)
	if bidDepth > model.DepthLevels {
		bidDepth = model.DepthLevels
	}
	for i := 0; i < bidDepth; i++ {
		tick.Bids[i] = model.PriceLevel{
			Price: price(raw.Bids[i].Price, "bid price"),
			Size:  qty(raw.Bids[i].Size, "bid size"),
		}
	}
	tick.BidDepth = uint32(bidDepth)

	askDepth := len(raw.Asks)
	if askDepth > model.DepthLevels {
		askDepth = model.DepthLevels
	}
	for i := 0; i < askDepth; i++ {
		tick.Asks[i] = model.PriceLevel{
			Price: price(raw.Asks[i].Price, "ask price"),
			Size:  qty(raw.Asks[i].Size, "ask size"),
		}
	}
	tick.AskDepth = uint32(askDepth)

	if scaleErr != nil {
		handle.Release()
		return schema.EventHeader{}, none, scaleErr
	}

	header := schema.NewHeader(model.KindTick, symbol.ID, n.seq.Next(), raw.TsEvent, raw.TsRecv)
	return header, handle, nil
}

// Absent optional fields decode to the zero Decimal and scale to zero.
func scaleDecimal(d decimal.Decimal, scale schema.Scale) (int64, error) {
	s := fmt.Sprint(d)
	if s == "" {
		return 0, nil
	}
	return model.ParseScaled(s, int(scale))
}
