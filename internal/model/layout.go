package model

import "unsafe"

// On-disk and in-memory sizes of each record kind. A block file payload is a
// plain array of one of these layouts with no padding, so a mapped file can
// be reinterpreted in place on little-endian hosts.
const (
	PriceLevelSize  = 16
	TickSize        = 264
	BarSize         = 64
	OrderQueueSize  = 152
	OrderDetailSize = 40
	TransactionSize = 56
)

// Two-sided layout pins: each pair compiles only while the struct size
// matches the published constant exactly.
var (
	_ [PriceLevelSize - int(unsafe.Sizeof(PriceLevel{}))]byte
	_ [int(unsafe.Sizeof(PriceLevel{})) - PriceLevelSize]byte
	_ [TickSize - int(unsafe.Sizeof(Tick{}))]byte
	_ [int(unsafe.Sizeof(Tick{})) - TickSize]byte
	_ [BarSize - int(unsafe.Sizeof(Bar{}))]byte
	_ [int(unsafe.Sizeof(Bar{})) - BarSize]byte
	_ [OrderQueueSize - int(unsafe.Sizeof(OrderQueue{}))]byte
	_ [int(unsafe.Sizeof(OrderQueue{})) - OrderQueueSize]byte
	_ [OrderDetailSize - int(unsafe.Sizeof(OrderDetail{}))]byte
	_ [int(unsafe.Sizeof(OrderDetail{})) - OrderDetailSize]byte
	_ [TransactionSize - int(unsafe.Sizeof(Transaction{}))]byte
	_ [int(unsafe.Sizeof(Transaction{})) - TransactionSize]byte
)

// RawBytes exposes the in-memory bytes of a record slice without copying.
// The returned slice aliases recs and is valid only while recs is held.
func RawBytes[T any](recs []T) []byte {
	if len(recs) == 0 {
		return nil
	}
	size := int(unsafe.Sizeof(recs[0]))
	return unsafe.Slice((*byte)(unsafe.Pointer(&recs[0])), size*len(recs))
}

// RawBytesOf exposes the bytes of a single record in place.
func RawBytesOf[T any](rec *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(rec)), int(unsafe.Sizeof(*rec)))
}

// RecordFromBytes copies one record out of src. It copies rather than
// reinterprets because journal payload buffers carry no alignment promise.
func RecordFromBytes[T any](src []byte) (T, bool) {
	var rec T
	size := int(unsafe.Sizeof(rec))
	if len(src) < size {
		return rec, false
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&rec)), size), src[:size])
	return rec, true
}
