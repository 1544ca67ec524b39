package blockfile

import (
	"io"
	"os"
	"unsafe"

	"main/internal/mem"
	"main/internal/model"
	"main/internal/series"
)

// MappedFile is an opened block file pinned in memory. On platforms with
// mmap support the payload is the page cache itself; elsewhere it is an
// aligned heap copy. Either way record views alias this memory, so the file
// is reference counted: Open hands the first reference to the caller, every
// reader slice holds one more, and the drop to zero unmaps.
type MappedFile struct {
	rc     mem.RefCount
	hdr    Header
	path   string
	data   []byte
	mapped bool
}

// Open maps a block file and validates its header, returning the file with
// one reference held by the caller.
func Open(path string) (*MappedFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size < headerSize {
		return nil, ErrInvalidHeader
	}
	if size > int64(int(^uint(0)>>1)) {
		return nil, ErrInvalidHeader
	}

	data, mapped := mapFile(file, int(size))
	if !mapped {
		data, err = readAligned(file, int(size))
		if err != nil {
			return nil, err
		}
	}

	hdr, err := decodeFileHeader(data)
	if err != nil {
		if mapped {
			unmapFile(data)
		}
		return nil, err
	}
	if uint64(len(data)-headerSize) < hdr.Count*uint64(hdr.RecordSize) {
		if mapped {
			unmapFile(data)
		}
		return nil, ErrTruncated
	}

	f := &MappedFile{
		hdr:    hdr,
		path:   path,
		data:   data,
		mapped: mapped,
	}
	f.rc.Init()
	return f, nil
}

// readAligned loads the whole file into a heap buffer whose base keeps the
// 8 byte record alignment the record views rely on.
func readAligned(file *os.File, size int) ([]byte, error) {
	buf := make([]uint64, (size+7)/8)
	data := unsafe.Slice((*byte)(unsafe.Pointer(&buf[0])), size)
	if _, err := io.ReadFull(file, data); err != nil {
		return nil, err
	}
	return data, nil
}

// ReadHeader reads and validates only the file header, leaving the payload
// untouched. Catalog scans use it to classify files without mapping them.
func ReadHeader(path string) (Header, error) {
	file, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer file.Close()

	var buf [headerSize]byte
	if _, err := io.ReadFull(file, buf[:]); err != nil {
		return Header{}, err
	}
	return decodeFileHeader(buf[:])
}

// Header returns the decoded file header.
func (f *MappedFile) Header() Header {
	return f.hdr
}

// Path returns the file path the mapping came from.
func (f *MappedFile) Path() string {
	return f.path
}

// Size returns the mapped byte length, header included.
func (f *MappedFile) Size() int {
	return len(f.data)
}

// Retain adds a reference for a new holder.
func (f *MappedFile) Retain() int32 {
	return f.rc.Retain()
}

// Release drops one reference and unmaps the file on the final drop. It
// returns true exactly once, on that final drop.
func (f *MappedFile) Release() bool {
	if !f.rc.Release() {
		return false
	}
	if f.mapped {
		unmapFile(f.data)
	}
	f.data = nil
	return true
}

// Refs returns the current reference count.
func (f *MappedFile) Refs() int32 {
	return f.rc.Refs()
}

// Records reinterprets the payload in place as records of type T. The block
// aliases the mapping; callers keep the file alive through the slice they
// assemble it into.
func Records[T series.Record](f *MappedFile, kind model.RecordKind) (series.Block[T], error) {
	var zero T
	if f.hdr.Kind != kind || int(unsafe.Sizeof(zero)) != int(f.hdr.RecordSize) {
		return series.Block[T]{}, ErrKindMismatch
	}
	n := int(f.hdr.Count)
	if n == 0 {
		return series.NewBlock[T](nil, f), nil
	}
	base := (*T)(unsafe.Pointer(&f.data[headerSize]))
	return series.NewBlock(unsafe.Slice(base, n), f), nil
}

// Ticks views the payload as tick records.
func Ticks(f *MappedFile) (series.Block[model.Tick], error) {
	return Records[model.Tick](f, model.KindTick)
}

// Bars views the payload as bar records.
func Bars(f *MappedFile) (series.Block[model.Bar], error) {
	return Records[model.Bar](f, model.KindBar)
}

// OrderQueues views the payload as order queue records.
func OrderQueues(f *MappedFile) (series.Block[model.OrderQueue], error) {
	return Records[model.OrderQueue](f, model.KindOrderQueue)
}

// OrderDetails views the payload as order detail records.
func OrderDetails(f *MappedFile) (series.Block[model.OrderDetail], error) {
	return Records[model.OrderDetail](f, model.KindOrderDetail)
}

// Transactions views the payload as transaction records.
func Transactions(f *MappedFile) (series.Block[model.Transaction], error) {
	return Records[model.Transaction](f, model.KindTransaction)
}
