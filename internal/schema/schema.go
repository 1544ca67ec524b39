package schema

import "main/internal/model"

// SchemaVersion is the current record stream schema version. It is stamped
// into journal entry headers and block file headers.
const SchemaVersion uint16 = 1

// EventHeader is the common metadata attached to every record that moves
// through the ingest queue or the journal. The record payload itself is one
// of the model layouts identified by Kind.
type EventHeader struct {
	Version  uint16
	Kind     model.RecordKind
	Flags    uint16
	Period   model.Period
	SymbolID SymbolID
	Seq      uint64
	TsEvent  int64
	TsRecv   int64
}

// NewHeader builds a header with the current schema version.
func NewHeader(kind model.RecordKind, symbolID SymbolID, seq uint64, tsEvent, tsRecv int64) EventHeader {
	return EventHeader{
		Version:  SchemaVersion,
		Kind:     kind,
		SymbolID: symbolID,
		Seq:      seq,
		TsEvent:  tsEvent,
		TsRecv:   tsRecv,
	}
}
