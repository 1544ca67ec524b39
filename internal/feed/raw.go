// Package feed turns raw outer-feed ticks into pooled records ready for
// the store: symbol resolution, decimal scaling, ordering checks and bar
// aggregation.
package feed

import (
	"encoding/json"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
)

// RawTick is one tick as the outer feed delivers it. Prices and sizes stay
// decimal strings until the symbol scale is known.
type RawTick struct {
	Symbol        string          `json:"symbol"`
	TsEvent       int64           `json:"tsEvent"`
	TsRecv        int64           `json:"tsRecv,omitempty"`
	Last          decimal.Decimal `json:"last"`
	Open          decimal.Decimal `json:"open,omitempty"`
	High          decimal.Decimal `json:"high,omitempty"`
	Low           decimal.Decimal `json:"low,omitempty"`
	PreClose      decimal.Decimal `json:"preClose,omitempty"`
	Volume        decimal.Decimal `json:"volume,omitempty"`
	Turnover      decimal.Decimal `json:"turnover,omitempty"`
	TotalVolume   decimal.Decimal `json:"totalVolume,omitempty"`
	TotalTurnover decimal.Decimal `json:"totalTurnover,omitempty"`
	OpenInterest  decimal.Decimal `json:"openInterest,omitempty"`
	Bids          []RawLevel      `json:"bids,omitempty"`
	Asks          []RawLevel      `json:"asks,omitempty"`
}

// RawLevel is one depth ladder row.
type RawLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// ParseRawTick decodes one JSON tick.
func ParseRawTick(payload []byte) (RawTick, error) {
	var tick RawTick
	if err := json.Unmarshal(payload, &tick); err != nil {
		return RawTick{}, errors.Wrap(err, "unmarshal raw tick")
	}
	return tick, nil
}
