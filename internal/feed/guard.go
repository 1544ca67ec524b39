package feed

import "main/internal/schema"

// OrderingGuard filters ticks that move backwards on a symbol's time axis.
// Equal timestamps pass, venues emit several ticks in the same instant.
type OrderingGuard struct {
	last map[schema.SymbolID]int64
}

// NewOrderingGuard creates an empty guard.
func NewOrderingGuard() *OrderingGuard {
	return &OrderingGuard{last: make(map[schema.SymbolID]int64)}
}

// Admit reports whether the event keeps the symbol clock monotonic.
// Rejected events leave the clock untouched.
func (g *OrderingGuard) Admit(symbolID schema.SymbolID, tsEvent int64) bool {
	if last, ok := g.last[symbolID]; ok && tsEvent < last {
		return false
	}
	g.last[symbolID] = tsEvent
	return true
}

// Last returns the newest admitted event timestamp for a symbol.
func (g *OrderingGuard) Last(symbolID schema.SymbolID) int64 {
	return g.last[symbolID]
}
