// Package store is the data access facade over market data series. It owns
// the live append logs the feed writes into, seals them to block files on
// day rollover, and assembles history queries out of mapped block files plus
// the live window without copying records.
package store

import (
	"errors"
	"sort"
	"strconv"
	"sync"

	"main/internal/catalog"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/series"
)

var (
	ErrOutOfOrder    = errors.New("record behind series clock")
	ErrUnknownKind   = errors.New("record kind unknown")
	ErrUnknownPeriod = errors.New("bar period unknown")
)

const (
	defaultLiveCapacity = 4096
	defaultMaxOpenFiles = 64
)

// Config carries the store dependencies.
type Config struct {
	// DataDir roots the sealed block file tree.
	DataDir string

	// Registry resolves symbol names for file layout; numeric IDs are used
	// when nil.
	Registry *schema.Registry

	// Catalog locates sealed files. Nil falls back to scanning DataDir.
	Catalog catalog.Catalog

	// LiveCapacity is the initial slot count of each live log.
	LiveCapacity int

	// MaxOpenFiles caps how many block files stay mapped at once. Zero
	// means the default, negative means unlimited.
	MaxOpenFiles int

	// Metrics receives store counters, may be nil.
	Metrics *obs.Metrics
}

func (c Config) withDefaults() Config {
	if c.LiveCapacity <= 0 {
		c.LiveCapacity = defaultLiveCapacity
	}
	if c.MaxOpenFiles == 0 {
		c.MaxOpenFiles = defaultMaxOpenFiles
	}
	if c.Catalog == nil {
		c.Catalog = catalog.NewDir(c.DataDir)
	}
	return c
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("invalid store config: DataDir is empty")
	}
	return nil
}

type barKey struct {
	symbolID schema.SymbolID
	period   model.Period
}

// liveLog is one series' open window. lastBucket survives a seal so the
// series clock keeps rejecting regressions across rollovers.
type liveLog[T series.Record] struct {
	log        *series.AppendLog[T]
	lastBucket int64
	started    bool
}

func newLiveLog[T series.Record](capacity int) *liveLog[T] {
	return &liveLog[T]{log: series.NewAppendLog[T](capacity)}
}

// cutBefore removes and returns the records of trading days older than
// beforeDay. The rest moves to a fresh log so the old backing array seals
// without pinning live appends. The series clock survives the cut.
func (l *liveLog[T]) cutBefore(beforeDay int64, capacity int) []T {
	recs := l.log.Snapshot().Records()
	split := len(recs)
	for i := range recs {
		if model.TradingDay(recs[i].TimeBucket()) >= beforeDay {
			split = i
			break
		}
	}
	if split == 0 {
		return nil
	}
	cut := recs[:split]
	l.log = series.NewAppendLog[T](capacity)
	for _, rec := range recs[split:] {
		l.log.Append(rec)
	}
	return cut
}

// Store holds the live logs and the mapped file cache. One writer feeds the
// append side; queries run concurrently against snapshots.
type Store struct {
	cfg     Config
	cat     catalog.Catalog
	files   *fileCache
	metrics *obs.Metrics

	mtx    sync.RWMutex
	ticks  map[schema.SymbolID]*liveLog[model.Tick]
	bars   map[barKey]*liveLog[model.Bar]
	queues map[schema.SymbolID]*liveLog[model.OrderQueue]
	orders map[schema.SymbolID]*liveLog[model.OrderDetail]
	trans  map[schema.SymbolID]*liveLog[model.Transaction]
}

// New creates a store over the given data directory.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	return &Store{
		cfg:     cfg,
		cat:     cfg.Catalog,
		files:   newFileCache(cfg.MaxOpenFiles, cfg.Metrics),
		metrics: cfg.Metrics,
		ticks:   make(map[schema.SymbolID]*liveLog[model.Tick]),
		bars:    make(map[barKey]*liveLog[model.Bar]),
		queues:  make(map[schema.SymbolID]*liveLog[model.OrderQueue]),
		orders:  make(map[schema.SymbolID]*liveLog[model.OrderDetail]),
		trans:   make(map[schema.SymbolID]*liveLog[model.Transaction]),
	}, nil
}

// appendLive lands one record on a live log, enforcing the series clock. A
// record in the open bucket folds into it; an older bucket is rejected.
func appendLive[T series.Record](s *Store, l *liveLog[T], rec T) error {
	bucket := rec.TimeBucket()
	if l.started && bucket < l.lastBucket {
		s.metrics.IncOutOfOrder()
		return ErrOutOfOrder
	}
	if !l.log.Append(rec) {
		s.metrics.IncMerged()
	}
	l.lastBucket = bucket
	l.started = true
	return nil
}

// AppendTick lands one tick on the symbol's live tick series.
func (s *Store) AppendTick(symbolID schema.SymbolID, tick *model.Tick) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	l := s.ticks[symbolID]
	if l == nil {
		l = newLiveLog[model.Tick](s.cfg.LiveCapacity)
		s.ticks[symbolID] = l
	}
	return appendLive(s, l, *tick)
}

// AppendBar lands one bar on the symbol's live bar series for the period.
// The same open bucket overwrites in place, which is how the producer keeps
// the open bar current.
func (s *Store) AppendBar(symbolID schema.SymbolID, period model.Period, bar *model.Bar) error {
	if !period.IsAvailable() {
		return ErrUnknownPeriod
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	key := barKey{symbolID: symbolID, period: period}
	l := s.bars[key]
	if l == nil {
		l = newLiveLog[model.Bar](s.cfg.LiveCapacity)
		s.bars[key] = l
	}
	return appendLive(s, l, *bar)
}

// AppendOrderQueue lands one order queue snapshot.
func (s *Store) AppendOrderQueue(symbolID schema.SymbolID, rec *model.OrderQueue) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	l := s.queues[symbolID]
	if l == nil {
		l = newLiveLog[model.OrderQueue](s.cfg.LiveCapacity)
		s.queues[symbolID] = l
	}
	return appendLive(s, l, *rec)
}

// AppendOrderDetail lands one order event.
func (s *Store) AppendOrderDetail(symbolID schema.SymbolID, rec *model.OrderDetail) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	l := s.orders[symbolID]
	if l == nil {
		l = newLiveLog[model.OrderDetail](s.cfg.LiveCapacity)
		s.orders[symbolID] = l
	}
	return appendLive(s, l, *rec)
}

// AppendTransaction lands one trade print.
func (s *Store) AppendTransaction(symbolID schema.SymbolID, rec *model.Transaction) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	l := s.trans[symbolID]
	if l == nil {
		l = newLiveLog[model.Transaction](s.cfg.LiveCapacity)
		s.trans[symbolID] = l
	}
	return appendLive(s, l, *rec)
}

// SeriesRef identifies one live series and its open window state.
type SeriesRef struct {
	SymbolID    schema.SymbolID
	Kind        model.RecordKind
	Period      model.Period
	Records     int
	FirstBucket int64
	LastBucket  int64
}

// LiveSeries lists every series holding live records, ordered by symbol,
// kind and period. Rollover walks this to decide what to seal.
func (s *Store) LiveSeries() []SeriesRef {
	s.mtx.RLock()
	refs := make([]SeriesRef, 0, len(s.ticks)+len(s.bars)+len(s.queues)+len(s.orders)+len(s.trans))
	for id, l := range s.ticks {
		refs = appendRef(refs, id, model.KindTick, model.PeriodNone, l)
	}
	for key, l := range s.bars {
		refs = appendRef(refs, key.symbolID, model.KindBar, key.period, l)
	}
	for id, l := range s.queues {
		refs = appendRef(refs, id, model.KindOrderQueue, model.PeriodNone, l)
	}
	for id, l := range s.orders {
		refs = appendRef(refs, id, model.KindOrderDetail, model.PeriodNone, l)
	}
	for id, l := range s.trans {
		refs = appendRef(refs, id, model.KindTransaction, model.PeriodNone, l)
	}
	s.mtx.RUnlock()

	sort.Slice(refs, func(i, j int) bool { return refLess(refs[i], refs[j]) })
	return refs
}

func appendRef[T series.Record](refs []SeriesRef, id schema.SymbolID, kind model.RecordKind, period model.Period, l *liveLog[T]) []SeriesRef {
	if l.log.Size() == 0 {
		return refs
	}
	return append(refs, SeriesRef{
		SymbolID:    id,
		Kind:        kind,
		Period:      period,
		Records:     l.log.Size(),
		FirstBucket: (*l.log.At(0)).TimeBucket(),
		LastBucket:  l.lastBucket,
	})
}

func refLess(a, b SeriesRef) bool {
	if a.SymbolID != b.SymbolID {
		return a.SymbolID < b.SymbolID
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.Period < b.Period
}

func (s *Store) symbolName(id schema.SymbolID) string {
	if s.cfg.Registry != nil {
		if sym, ok := s.cfg.Registry.Symbol(id); ok {
			return sym.Name
		}
	}
	return strconv.FormatUint(uint64(id), 10)
}

// Close drops the mapped file cache. Files stay mapped until outstanding
// query slices release them. The catalog is the caller's to close.
func (s *Store) Close() {
	s.files.close()
}
