package model

import (
	"testing"
	"time"
	"unsafe"
)

func TestRecordSizesMatchLayouts(t *testing.T) {
	cases := []struct {
		kind RecordKind
		size int
	}{
		{KindTick, int(unsafe.Sizeof(Tick{}))},
		{KindBar, int(unsafe.Sizeof(Bar{}))},
		{KindOrderQueue, int(unsafe.Sizeof(OrderQueue{}))},
		{KindOrderDetail, int(unsafe.Sizeof(OrderDetail{}))},
		{KindTransaction, int(unsafe.Sizeof(Transaction{}))},
	}
	for _, c := range cases {
		if got := c.kind.RecordSize(); got != c.size {
			t.Fatalf("%s: RecordSize %d, struct size %d", c.kind, got, c.size)
		}
		if c.size%8 != 0 {
			t.Fatalf("%s: size %d is not 8 byte aligned", c.kind, c.size)
		}
	}
	if got := KindUnknown.RecordSize(); got != 0 {
		t.Fatalf("unknown kind size: got %d want 0", got)
	}
}

func TestTimeBucketAxis(t *testing.T) {
	ts := int64(1700000000123456789)
	if got := (Tick{EventTsNano: ts}).TimeBucket(); got != ts {
		t.Fatalf("tick bucket: got %d want %d", got, ts)
	}
	if got := (Bar{StartTsNano: ts}).TimeBucket(); got != ts {
		t.Fatalf("bar bucket: got %d want %d", got, ts)
	}
	if got := (Transaction{EventTsNano: ts}).TimeBucket(); got != ts {
		t.Fatalf("transaction bucket: got %d want %d", got, ts)
	}
}

func TestPeriodBucketTruncation(t *testing.T) {
	base := time.Date(2024, 3, 15, 9, 47, 31, 250, time.UTC)
	ts := base.UnixNano()

	cases := []struct {
		period Period
		want   time.Time
	}{
		{PeriodMin1, time.Date(2024, 3, 15, 9, 47, 0, 0, time.UTC)},
		{PeriodMin5, time.Date(2024, 3, 15, 9, 45, 0, 0, time.UTC)},
		{PeriodMin15, time.Date(2024, 3, 15, 9, 45, 0, 0, time.UTC)},
		{PeriodMin30, time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)},
		{PeriodHour1, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)},
		{PeriodDay, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		if got := c.period.Bucket(ts); got != c.want.UnixNano() {
			t.Fatalf("%s: got %d want %d", c.period, got, c.want.UnixNano())
		}
	}
	if got := PeriodNone.Bucket(ts); got != ts {
		t.Fatalf("none: got %d want %d", got, ts)
	}

	aligned := time.Date(2024, 3, 15, 9, 45, 0, 0, time.UTC).UnixNano()
	if got := PeriodMin5.Bucket(aligned); got != aligned {
		t.Fatalf("aligned ts must map to itself, got %d want %d", got, aligned)
	}
}

func TestKindAndPeriodNamesRoundTrip(t *testing.T) {
	for k := KindTick; k <= KindTransaction; k++ {
		got, ok := ParseKind(k.String())
		if !ok || got != k {
			t.Fatalf("kind %d round-trip failed: got %d ok=%v", k, got, ok)
		}
	}
	if _, ok := ParseKind("nope"); ok {
		t.Fatalf("unknown kind name must not parse")
	}
	for p := PeriodMin1; p <= PeriodDay; p++ {
		got, ok := ParsePeriod(p.String())
		if !ok || got != p {
			t.Fatalf("period %d round-trip failed: got %d ok=%v", p, got, ok)
		}
	}
	if _, ok := ParsePeriod("m7"); ok {
		t.Fatalf("unknown period name must not parse")
	}
}

func TestParseScaled(t *testing.T) {
	cases := []struct {
		src   string
		scale int
		want  int64
		fails bool
	}{
		{src: "123.45", scale: 2, want: 12345},
		{src: "123.45", scale: 4, want: 1234500},
		{src: "123", scale: 2, want: 12300},
		{src: "-0.07", scale: 4, want: -700},
		{src: "+1.5", scale: 1, want: 15},
		{src: "0", scale: 8, want: 0},
		{src: "123.456", scale: 2, fails: true},
		{src: "12a.4", scale: 2, fails: true},
		{src: "1.2.3", scale: 4, fails: true},
		{src: "", scale: 2, fails: true},
		{src: "-", scale: 2, fails: true},
		{src: "92233720368547758070", scale: 0, fails: true},
	}
	for _, c := range cases {
		got, err := ParseScaled(c.src, c.scale)
		if c.fails {
			if err == nil {
				t.Fatalf("%q scale %d: expected error, got %d", c.src, c.scale, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q scale %d: %v", c.src, c.scale, err)
		}
		if got != c.want {
			t.Fatalf("%q scale %d: got %d want %d", c.src, c.scale, got, c.want)
		}
	}
}

func TestFormatScaledRoundTrip(t *testing.T) {
	cases := []struct {
		value int64
		scale int
		want  string
	}{
		{12345, 2, "123.45"},
		{-700, 4, "-0.0700"},
		{5, 3, "0.005"},
		{12300, 0, "12300"},
	}
	for _, c := range cases {
		if got := FormatScaled(c.value, c.scale); got != c.want {
			t.Fatalf("format %d scale %d: got %q want %q", c.value, c.scale, got, c.want)
		}
		back, err := ParseScaled(c.want, c.scale)
		if err != nil || back != c.value {
			t.Fatalf("parse %q scale %d: got %d err %v", c.want, c.scale, back, err)
		}
	}
	if got := string(Price(12345).AppendString(2, nil)); got != "123.45" {
		t.Fatalf("price append: got %q", got)
	}
}

func TestRawBytesAliasing(t *testing.T) {
	recs := make([]Bar, 2)
	raw := RawBytes(recs)
	if len(raw) != 2*BarSize {
		t.Fatalf("raw length: got %d want %d", len(raw), 2*BarSize)
	}

	recs[1].Close = Price(0x0102030405060708)
	view := RawBytesOf(&recs[1])
	var sum int
	for _, b := range view {
		sum += int(b)
	}
	if sum == 0 {
		t.Fatalf("mutation is not visible through the raw view")
	}
	if &raw[BarSize] != &view[0] {
		t.Fatalf("raw views must alias the same memory")
	}

	if RawBytes([]Bar(nil)) != nil {
		t.Fatalf("empty slice must map to nil bytes")
	}
}
