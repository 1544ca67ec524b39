package schema

import (
	"testing"

	"main/internal/model"
)

func TestRegistryAssignsSequentialIDs(t *testing.T) {
	reg := NewRegistry()
	venueID, err := reg.AddVenue("SSE")
	if err != nil {
		t.Fatalf("add venue: %v", err)
	}
	if venueID != 1 {
		t.Fatalf("first venue id = %d, want 1", venueID)
	}
	scale := ScaleSpec{PriceScale: 4, QuantityScale: 0, NotionalScale: 2}
	first, err := reg.AddSymbol("600000", venueID, scale)
	if err != nil {
		t.Fatalf("add symbol: %v", err)
	}
	second, err := reg.AddSymbol("600519", venueID, scale)
	if err != nil {
		t.Fatalf("add symbol: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("symbol ids = %d, %d, want 1, 2", first, second)
	}

	sym, ok := reg.Symbol(second)
	if !ok {
		t.Fatalf("symbol %d not found", second)
	}
	if sym.Name != "600519" || sym.VenueID != venueID || sym.Scale != scale {
		t.Fatalf("symbol mismatch: %+v", sym)
	}
	byName, ok := reg.SymbolByName("600000")
	if !ok || byName.ID != first {
		t.Fatalf("lookup by name: %+v ok=%v", byName, ok)
	}
	if reg.SymbolCount() != 2 {
		t.Fatalf("symbol count = %d", reg.SymbolCount())
	}
	at, ok := reg.SymbolAt(1)
	if !ok || at.ID != second {
		t.Fatalf("symbol at 1: %+v ok=%v", at, ok)
	}
}

func TestRegistryRejectsInvalidRegistrations(t *testing.T) {
	reg := NewRegistry()
	venueID, err := reg.AddVenue("SSE")
	if err != nil {
		t.Fatalf("add venue: %v", err)
	}
	if _, err := reg.AddVenue(""); err == nil {
		t.Fatalf("empty venue name accepted")
	}
	if _, err := reg.AddVenue("SSE"); err == nil {
		t.Fatalf("duplicate venue accepted")
	}
	if _, err := reg.AddSymbol("", venueID, ScaleSpec{}); err == nil {
		t.Fatalf("empty symbol name accepted")
	}
	if _, err := reg.AddSymbol("600000", 0, ScaleSpec{}); err == nil {
		t.Fatalf("zero venue id accepted")
	}
	if _, err := reg.AddSymbol("600000", venueID+1, ScaleSpec{}); err == nil {
		t.Fatalf("unknown venue id accepted")
	}
	if _, err := reg.AddSymbol("600000", venueID, ScaleSpec{}); err != nil {
		t.Fatalf("add symbol: %v", err)
	}
	if _, err := reg.AddSymbol("600000", venueID, ScaleSpec{}); err == nil {
		t.Fatalf("duplicate symbol accepted")
	}
}

func TestRegistryLookupBounds(t *testing.T) {
	reg := NewRegistry()
	if _, ok := reg.Venue(0); ok {
		t.Fatalf("venue 0 resolved")
	}
	if _, ok := reg.Venue(1); ok {
		t.Fatalf("venue 1 resolved in empty registry")
	}
	if _, ok := reg.Symbol(0); ok {
		t.Fatalf("symbol 0 resolved")
	}
	if _, ok := reg.SymbolAt(-1); ok {
		t.Fatalf("symbol at -1 resolved")
	}
	if _, ok := reg.SymbolAt(0); ok {
		t.Fatalf("symbol at 0 resolved in empty registry")
	}
	if _, ok := reg.SymbolByName("600000"); ok {
		t.Fatalf("missing symbol resolved by name")
	}
}

func TestNewHeaderStampsVersion(t *testing.T) {
	header := NewHeader(model.KindTick, 7, 42, 1000, 2000)
	if header.Version != SchemaVersion {
		t.Fatalf("header version = %d, want %d", header.Version, SchemaVersion)
	}
	if header.Kind != model.KindTick || header.SymbolID != 7 || header.Seq != 42 {
		t.Fatalf("header mismatch: %+v", header)
	}
	if header.TsEvent != 1000 || header.TsRecv != 2000 {
		t.Fatalf("header timestamps = %d/%d", header.TsEvent, header.TsRecv)
	}
}
