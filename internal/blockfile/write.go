package blockfile

import (
	"bufio"
	"os"
	"path/filepath"
	"unsafe"

	"main/internal/model"
	"main/internal/series"
)

const writeBufferSize = 256 * 1024

// Write persists records as one block file. The caller fills Kind, Period,
// SymbolID, Flags and TradingDay in hdr; record size, count and the bucket
// range come from the records themselves. The file lands under its final
// name only after a full flush and sync, a crashed write leaves at most a
// temp file behind.
func Write[T series.Record](path string, hdr Header, recs []T) error {
	var zero T
	if !hdr.Kind.IsAvailable() || int(unsafe.Sizeof(zero)) != hdr.Kind.RecordSize() {
		return ErrKindMismatch
	}

	hdr.RecordSize = uint32(hdr.Kind.RecordSize())
	hdr.Count = uint64(len(recs))
	if len(recs) > 0 {
		hdr.FirstBucket = recs[0].TimeBucket()
		hdr.LastBucket = recs[len(recs)-1].TimeBucket()
	} else {
		hdr.FirstBucket = 0
		hdr.LastBucket = 0
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if err := writeTo(file, hdr, recs); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func writeTo[T series.Record](file *os.File, hdr Header, recs []T) error {
	var headerBuf [headerSize]byte
	encodeFileHeader(headerBuf[:], hdr)

	buf := bufio.NewWriterSize(file, writeBufferSize)
	if _, err := buf.Write(headerBuf[:]); err != nil {
		return err
	}
	if len(recs) > 0 {
		if _, err := buf.Write(model.RawBytes(recs)); err != nil {
			return err
		}
	}
	return buf.Flush()
}
