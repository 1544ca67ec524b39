package model

// The record structs below double as the on-disk block layout. Every field is
// 8 bytes wide or grouped to an 8 byte boundary, so the structs carry no
// padding and a mapped block file can be reinterpreted in place. Layout pins
// live in layout.go.

const DepthLevels = 5

// PriceLevel is one row of a depth ladder.
type PriceLevel struct {
	Price Price
	Size  Quantity
}

// Tick is one full market snapshot: the trade that produced it, session
// aggregates and a five level depth ladder per side.
type Tick struct {
	EventTsNano int64
	RecvTsNano  int64

	Last     Price
	Open     Price
	High     Price
	Low      Price
	PreClose Price

	Volume        Quantity // size of the trade carried by this tick
	Turnover      Notional // notional of the trade carried by this tick
	TotalVolume   Quantity // session cumulative volume
	TotalTurnover Notional // session cumulative notional
	OpenInterest  Quantity

	BidDepth uint32 // populated entries of Bids
	AskDepth uint32 // populated entries of Asks
	Bids     [DepthLevels]PriceLevel
	Asks     [DepthLevels]PriceLevel
}

// TimeBucket reports the position of the tick on the series time axis.
func (t Tick) TimeBucket() int64 { return t.EventTsNano }

// Bar is one aggregated OHLC window.
type Bar struct {
	StartTsNano  int64
	Open         Price
	High         Price
	Low          Price
	Close        Price
	Volume       Quantity
	Turnover     Notional
	OpenInterest Quantity
}

// TimeBucket reports the open time of the bar window.
func (b Bar) TimeBucket() int64 { return b.StartTsNano }

const QueueDepth = 32

// OrderQueue is the visible resting order sizes at one price level.
type OrderQueue struct {
	EventTsNano int64
	Price       Price
	Side        uint32
	Count       uint32 // populated entries of Sizes
	Sizes       [QueueDepth]uint32
}

func (q OrderQueue) TimeBucket() int64 { return q.EventTsNano }

// OrderDetail is one order-by-order feed event.
type OrderDetail struct {
	EventTsNano int64
	Seq         uint64
	Price       Price
	Volume      Quantity
	Side        uint32
	Action      uint32
}

func (d OrderDetail) TimeBucket() int64 { return d.EventTsNano }

// Transaction is one trade print, carrying the order sequence numbers of
// both sides when the venue publishes them.
type Transaction struct {
	EventTsNano int64
	Seq         uint64
	Price       Price
	Volume      Quantity
	Side        uint32
	Flags       uint32
	BidSeq      uint64
	AskSeq      uint64
}

func (x Transaction) TimeBucket() int64 { return x.EventTsNano }
