package store

import (
	"sync"

	"main/internal/blockfile"
	"main/internal/obs"
)

// fileCache keeps recently queried block files mapped. The cache holds one
// reference per entry; acquire hands the caller another. An evicted file
// unmaps once the last outstanding reader releases it, so eviction never
// pulls memory out from under a live slice.
type fileCache struct {
	metrics *obs.Metrics

	mtx     sync.Mutex
	maxOpen int
	files   map[string]*blockfile.MappedFile
	order   []string
}

func newFileCache(maxOpen int, metrics *obs.Metrics) *fileCache {
	return &fileCache{
		metrics: metrics,
		maxOpen: maxOpen,
		files:   make(map[string]*blockfile.MappedFile),
	}
}

// acquire returns the mapped file at path with one reference for the
// caller, opening and caching it on a miss.
func (c *fileCache) acquire(path string) (*blockfile.MappedFile, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if f, ok := c.files[path]; ok {
		c.touch(path)
		f.Retain()
		c.metrics.IncFileHit()
		return f, nil
	}

	f, err := blockfile.Open(path)
	if err != nil {
		return nil, err
	}
	c.metrics.IncFileOpen()
	c.metrics.AddMappedBytes(int64(f.Size()))
	c.files[path] = f
	c.order = append(c.order, path)

	f.Retain()
	c.evictLocked()
	return f, nil
}

// invalidate drops path from the cache, for files replaced by a reseal.
func (c *fileCache) invalidate(path string) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	f, ok := c.files[path]
	if !ok {
		return
	}
	delete(c.files, path)
	for i, p := range c.order {
		if p == path {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.metrics.IncFileEvict()
	c.metrics.AddMappedBytes(-int64(f.Size()))
	f.Release()
}

func (c *fileCache) touch(path string) {
	for i, p := range c.order {
		if p == path {
			copy(c.order[i:], c.order[i+1:])
			c.order[len(c.order)-1] = path
			return
		}
	}
}

func (c *fileCache) evictLocked() {
	for c.maxOpen > 0 && len(c.files) > c.maxOpen {
		path := c.order[0]
		c.order = c.order[1:]
		f := c.files[path]
		delete(c.files, path)
		c.metrics.IncFileEvict()
		c.metrics.AddMappedBytes(-int64(f.Size()))
		f.Release()
	}
}

func (c *fileCache) size() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.files)
}

func (c *fileCache) close() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	for path, f := range c.files {
		delete(c.files, path)
		c.metrics.AddMappedBytes(-int64(f.Size()))
		f.Release()
	}
	c.order = nil
}
