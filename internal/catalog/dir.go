package catalog

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yanun0323/errors"

	"main/internal/blockfile"
)

// BlockFileSuffix is the extension sealed block files are written with.
const BlockFileSuffix = ".mdb"

// Dir is the catalog for deployments without a database. Block file headers
// are self describing, so listing a series is a walk of the data directory
// reading 64 bytes per file. Register is a no-op; the file on disk is the
// registration.
type Dir struct {
	root string
}

// NewDir returns a directory catalog rooted under the given path.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Register accepts the entry without recording anything; the scan in List
// rediscovers the sealed file from its header.
func (d *Dir) Register(ctx context.Context, e Entry) error {
	return nil
}

// List scans the root for block files whose headers match the query, oldest
// trading day first. Unreadable or foreign files are skipped.
func (d *Dir) List(ctx context.Context, q Query) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(d.root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if de.IsDir() || !strings.HasSuffix(de.Name(), BlockFileSuffix) {
			return nil
		}

		hdr, err := blockfile.ReadHeader(path)
		if err != nil {
			return nil
		}
		e := Entry{
			SymbolID:    hdr.SymbolID,
			Kind:        hdr.Kind,
			Period:      hdr.Period,
			TradingDay:  hdr.TradingDay,
			Path:        path,
			Count:       hdr.Count,
			FirstBucket: hdr.FirstBucket,
			LastBucket:  hdr.LastBucket,
		}
		if q.matches(e) {
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "scan block files under %s", d.root)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TradingDay != entries[j].TradingDay {
			return entries[i].TradingDay < entries[j].TradingDay
		}
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

// Close is a no-op for the directory catalog.
func (d *Dir) Close() error {
	return nil
}
