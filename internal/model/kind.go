package model

import "time"

// RecordKind identifies one of the fixed record layouts a series can hold.
type RecordKind uint16

const (
	KindUnknown RecordKind = iota
	KindTick
	KindBar
	KindOrderQueue
	KindOrderDetail
	KindTransaction
)

var kindNames = [...]string{"unknown", "tick", "bar", "ordque", "orddtl", "trans"}

func (k RecordKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

func (k RecordKind) IsAvailable() bool {
	return k > KindUnknown && k <= KindTransaction
}

// RecordSize returns the byte size of one record of this kind, 0 when unknown.
func (k RecordKind) RecordSize() int {
	switch k {
	case KindTick:
		return TickSize
	case KindBar:
		return BarSize
	case KindOrderQueue:
		return OrderQueueSize
	case KindOrderDetail:
		return OrderDetailSize
	case KindTransaction:
		return TransactionSize
	default:
		return 0
	}
}

// ParseKind maps a short kind name back to the kind.
func ParseKind(s string) (RecordKind, bool) {
	for i := 1; i < len(kindNames); i++ {
		if kindNames[i] == s {
			return RecordKind(i), true
		}
	}
	return KindUnknown, false
}

// Period is the aggregation window of a bar series. Series of kinds other
// than KindBar use PeriodNone.
type Period uint16

const (
	PeriodNone Period = iota
	PeriodMin1
	PeriodMin5
	PeriodMin15
	PeriodMin30
	PeriodHour1
	PeriodDay
)

var periodNames = [...]string{"none", "m1", "m5", "m15", "m30", "h1", "d1"}

func (p Period) String() string {
	if int(p) < len(periodNames) {
		return periodNames[p]
	}
	return "none"
}

func (p Period) IsAvailable() bool {
	return p > PeriodNone && p <= PeriodDay
}

// Window returns the bar span, 0 for PeriodNone.
func (p Period) Window() time.Duration {
	switch p {
	case PeriodMin1:
		return time.Minute
	case PeriodMin5:
		return 5 * time.Minute
	case PeriodMin15:
		return 15 * time.Minute
	case PeriodMin30:
		return 30 * time.Minute
	case PeriodHour1:
		return time.Hour
	case PeriodDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Bucket truncates an event timestamp in unix nanoseconds to the open time
// of the bar holding it. Daily bars truncate on UTC midnight. PeriodNone
// passes the timestamp through unchanged.
func (p Period) Bucket(tsNano int64) int64 {
	w := int64(p.Window())
	if w <= 0 {
		return tsNano
	}
	return tsNano - tsNano%w
}

// ParsePeriod maps a short period name back to the period.
func ParsePeriod(s string) (Period, bool) {
	for i := 1; i < len(periodNames); i++ {
		if periodNames[i] == s {
			return Period(i), true
		}
	}
	return PeriodNone, false
}

// TradingDay returns the UTC calendar day holding a unix nanosecond
// timestamp, encoded as yyyymmdd. Sealed files group under this day.
func TradingDay(tsNano int64) int64 {
	t := time.Unix(0, tsNano).UTC()
	return int64(t.Year())*10000 + int64(t.Month())*100 + int64(t.Day())
}

// Aggressor and queue side markers shared by the event records.
const (
	SideUnknown uint32 = iota
	SideBuy
	SideSell
)

// Order life cycle actions carried by OrderDetail.
const (
	ActionUnknown uint32 = iota
	ActionPlace
	ActionCancel
)

// Transaction classification carried in Transaction.Flags.
const (
	TransMatch uint32 = iota
	TransCancel
)
