// Package blockfile persists sealed series blocks. A block file is a fixed
// 64 byte header followed by a plain array of one record layout, so an
// opened file can be mapped and reinterpreted in place instead of decoded.
package blockfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"

	"main/internal/model"
	"main/internal/schema"
)

const (
	fileVersion uint16 = 1
	headerSize         = 64
)

var (
	fileMagic = [4]byte{'M', 'D', 'B', '1'}
	crcTable  = crc32.MakeTable(crc32.Castagnoli)
)

var (
	ErrInvalidMagic   = errors.New("blockfile invalid magic")
	ErrUnsupportedVer = errors.New("blockfile unsupported version")
	ErrInvalidHeader  = errors.New("blockfile invalid header")
	ErrHeaderChecksum = errors.New("blockfile header checksum mismatch")
	ErrTruncated      = errors.New("blockfile truncated payload")
	ErrKindMismatch   = errors.New("blockfile kind mismatch")
)

// Header describes the payload of one block file.
type Header struct {
	Kind        model.RecordKind
	Period      model.Period
	RecordSize  uint32
	Count       uint64
	SymbolID    schema.SymbolID
	Flags       uint32
	FirstBucket int64
	LastBucket  int64
	TradingDay  int64 // yyyymmdd, 0 when not session bound
}

func encodeFileHeader(dst []byte, hdr Header) {
	_ = dst[headerSize-1]
	copy(dst[0:4], fileMagic[:])
	binary.LittleEndian.PutUint16(dst[4:6], fileVersion)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(headerSize))
	binary.LittleEndian.PutUint16(dst[8:10], uint16(hdr.Kind))
	binary.LittleEndian.PutUint16(dst[10:12], uint16(hdr.Period))
	binary.LittleEndian.PutUint32(dst[12:16], hdr.RecordSize)
	binary.LittleEndian.PutUint64(dst[16:24], hdr.Count)
	binary.LittleEndian.PutUint32(dst[24:28], uint32(hdr.SymbolID))
	binary.LittleEndian.PutUint32(dst[28:32], hdr.Flags)
	binary.LittleEndian.PutUint64(dst[32:40], uint64(hdr.FirstBucket))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(hdr.LastBucket))
	binary.LittleEndian.PutUint64(dst[48:56], uint64(hdr.TradingDay))
	binary.LittleEndian.PutUint32(dst[56:60], 0)
	binary.LittleEndian.PutUint32(dst[60:64], crc32.Checksum(dst[0:60], crcTable))
}

func decodeFileHeader(src []byte) (Header, error) {
	if len(src) < headerSize {
		return Header{}, ErrInvalidHeader
	}
	if !bytes.Equal(src[0:4], fileMagic[:]) {
		return Header{}, ErrInvalidMagic
	}
	if ver := binary.LittleEndian.Uint16(src[4:6]); ver != fileVersion {
		return Header{}, ErrUnsupportedVer
	}
	if size := binary.LittleEndian.Uint16(src[6:8]); size != headerSize {
		return Header{}, ErrInvalidHeader
	}
	if sum := binary.LittleEndian.Uint32(src[60:64]); sum != crc32.Checksum(src[0:60], crcTable) {
		return Header{}, ErrHeaderChecksum
	}

	hdr := Header{
		Kind:        model.RecordKind(binary.LittleEndian.Uint16(src[8:10])),
		Period:      model.Period(binary.LittleEndian.Uint16(src[10:12])),
		RecordSize:  binary.LittleEndian.Uint32(src[12:16]),
		Count:       binary.LittleEndian.Uint64(src[16:24]),
		SymbolID:    schema.SymbolID(binary.LittleEndian.Uint32(src[24:28])),
		Flags:       binary.LittleEndian.Uint32(src[28:32]),
		FirstBucket: int64(binary.LittleEndian.Uint64(src[32:40])),
		LastBucket:  int64(binary.LittleEndian.Uint64(src[40:48])),
		TradingDay:  int64(binary.LittleEndian.Uint64(src[48:56])),
	}
	if !hdr.Kind.IsAvailable() || int(hdr.RecordSize) != hdr.Kind.RecordSize() {
		return Header{}, ErrInvalidHeader
	}
	return hdr, nil
}
