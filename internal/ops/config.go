package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"main/internal/model"
	"main/internal/recorder"
	"main/internal/schema"
	"main/pkg/conn"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Registry RegistryConfig     `json:"registry"`
	Storage  StorageConfig      `json:"storage"`
	Journal  JournalConfig      `json:"journal"`
	Catalog  CatalogConfig      `json:"catalog"`
	Feed     FeedConfig         `json:"feed"`
	Features FeatureFlagsConfig `json:"features"`
}

// RegistryConfig defines venue and symbol mappings.
type RegistryConfig struct {
	Venues  []VenueConfig  `json:"venues"`
	Symbols []SymbolConfig `json:"symbols"`
}

// VenueConfig describes a venue entry.
type VenueConfig struct {
	Name string `json:"name"`
}

// SymbolConfig describes a symbol entry.
type SymbolConfig struct {
	Name  string           `json:"name"`
	Venue string           `json:"venue"`
	Scale schema.ScaleSpec `json:"scale"`
}

// StorageConfig describes the block store layout.
type StorageConfig struct {
	DataDir      string   `json:"dataDir"`
	Periods      []string `json:"periods"`
	PoolSlots    int      `json:"poolSlots"`
	LiveCapacity int      `json:"liveCapacity"`
	MaxOpenFiles int      `json:"maxOpenFiles"`
}

// JournalConfig describes the event journal. Durations are given as
// strings like "500ms" or "10m".
type JournalConfig struct {
	Dir             string `json:"dir"`
	SegmentMaxBytes int64  `json:"segmentMaxBytes"`
	SegmentMaxAge   string `json:"segmentMaxAge"`
	QueueSize       int    `json:"queueSize"`
	FlushInterval   string `json:"flushInterval"`
	SyncInterval    string `json:"syncInterval"`
}

// CatalogConfig points the block file catalog at Postgres. It only
// matters while the catalog feature flag is on; otherwise the store
// falls back to directory scans.
type CatalogConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"password"`
	Database   string `json:"database"`
	SSLMode    string `json:"sslMode"`
	ConnString string `json:"connString"`
}

// FeedConfig describes where ticks come from.
type FeedConfig struct {
	Source      string  `json:"source"`
	QueueSize   int     `json:"queueSize"`
	RatePerSec  int     `json:"ratePerSec"`
	Seed        int64   `json:"seed"`
	ReplayDir   string  `json:"replayDir"`
	ReplaySpeed float64 `json:"replaySpeed"`
}

// FeatureFlagsConfig captures optional runtime flags.
type FeatureFlagsConfig struct {
	EnableJournal *bool `json:"enableJournal"`
	EnableCatalog *bool `json:"enableCatalog"`
}

// FeatureFlags are resolved runtime flags.
type FeatureFlags struct {
	EnableJournal bool
	EnableCatalog bool
}

// Feed sources.
const (
	FeedSourceGenerate = "generate"
	FeedSourceReplay   = "replay"
)

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Registry *schema.Registry
	Storage  StorageSpec
	Journal  recorder.Config
	Catalog  conn.Option
	Feed     FeedSpec
	Features FeatureFlags
}

// StorageSpec is the resolved block store definition.
type StorageSpec struct {
	DataDir      string
	Periods      []model.Period
	PoolSlots    int
	LiveCapacity int
	MaxOpenFiles int
}

// FeedSpec is the resolved feed definition.
type FeedSpec struct {
	Source      string
	QueueSize   int
	RatePerSec  int
	Seed        int64
	ReplayDir   string
	ReplaySpeed float64
}

// Load reads a JSON config file and resolves every section.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	registry, err := buildRegistry(cfg.Registry)
	if err != nil {
		return Loaded{}, err
	}
	storage, err := resolveStorage(cfg.Storage)
	if err != nil {
		return Loaded{}, err
	}
	journal, err := resolveJournal(cfg.Journal, storage.DataDir)
	if err != nil {
		return Loaded{}, err
	}
	feed, err := resolveFeed(cfg.Feed)
	if err != nil {
		return Loaded{}, err
	}
	features := resolveFeatures(cfg.Features)
	catalogOpt, err := resolveCatalog(cfg.Catalog, features.EnableCatalog)
	if err != nil {
		return Loaded{}, err
	}
	return Loaded{
		Registry: registry,
		Storage:  storage,
		Journal:  journal,
		Catalog:  catalogOpt,
		Feed:     feed,
		Features: features,
	}, nil
}

// LoadRegistry reads a JSON config file and only builds the registry.
func LoadRegistry(path string) (*schema.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return buildRegistry(cfg.Registry)
}

func buildRegistry(cfg RegistryConfig) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	for _, venue := range cfg.Venues {
		if _, err := reg.AddVenue(venue.Name); err != nil {
			return nil, err
		}
	}
	for _, sym := range cfg.Symbols {
		venueID, ok := reg.VenueIDByName(sym.Venue)
		if !ok {
			return nil, fmt.Errorf("venue not found: %s", sym.Venue)
		}
		if err := validateScale(sym.Scale); err != nil {
			return nil, fmt.Errorf("invalid scale for %s: %w", sym.Name, err)
		}
		if _, err := reg.AddSymbol(sym.Name, venueID, sym.Scale); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func validateScale(scale schema.ScaleSpec) error {
	if scale.PriceScale < 0 || scale.QuantityScale < 0 || scale.NotionalScale < 0 {
		return fmt.Errorf("scale must be >= 0")
	}
	return nil
}

func resolveStorage(cfg StorageConfig) (StorageSpec, error) {
	if cfg.DataDir == "" {
		return StorageSpec{}, fmt.Errorf("storage dataDir is empty")
	}
	periods := make([]model.Period, 0, len(cfg.Periods))
	seen := make(map[model.Period]struct{}, len(cfg.Periods))
	for _, name := range cfg.Periods {
		period, ok := model.ParsePeriod(name)
		if !ok {
			return StorageSpec{}, fmt.Errorf("storage period unknown: %s", name)
		}
		if _, dup := seen[period]; dup {
			return StorageSpec{}, fmt.Errorf("storage period listed twice: %s", name)
		}
		seen[period] = struct{}{}
		periods = append(periods, period)
	}
	if len(periods) == 0 {
		periods = append(periods, model.PeriodMin1)
	}
	if cfg.PoolSlots == 0 {
		cfg.PoolSlots = 1 << 16
	}
	if cfg.PoolSlots < 0 {
		return StorageSpec{}, fmt.Errorf("storage poolSlots must be > 0")
	}
	if cfg.LiveCapacity == 0 {
		cfg.LiveCapacity = 4096
	}
	if cfg.LiveCapacity < 0 {
		return StorageSpec{}, fmt.Errorf("storage liveCapacity must be > 0")
	}
	if cfg.MaxOpenFiles == 0 {
		cfg.MaxOpenFiles = 64
	}
	if cfg.MaxOpenFiles < 0 {
		return StorageSpec{}, fmt.Errorf("storage maxOpenFiles must be > 0")
	}
	return StorageSpec{
		DataDir:      cfg.DataDir,
		Periods:      periods,
		PoolSlots:    cfg.PoolSlots,
		LiveCapacity: cfg.LiveCapacity,
		MaxOpenFiles: cfg.MaxOpenFiles,
	}, nil
}

func resolveJournal(cfg JournalConfig, dataDir string) (recorder.Config, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = dataDir + "/journal"
	}
	resolved := recorder.DefaultConfig(dir)
	if cfg.SegmentMaxBytes != 0 {
		resolved.SegmentMaxBytes = cfg.SegmentMaxBytes
	}
	if cfg.QueueSize != 0 {
		resolved.QueueSize = cfg.QueueSize
	}
	if cfg.SegmentMaxAge != "" {
		age, err := time.ParseDuration(cfg.SegmentMaxAge)
		if err != nil {
			return recorder.Config{}, fmt.Errorf("journal segmentMaxAge: %w", err)
		}
		resolved.SegmentMaxDuration = age
	}
	if cfg.FlushInterval != "" {
		interval, err := time.ParseDuration(cfg.FlushInterval)
		if err != nil {
			return recorder.Config{}, fmt.Errorf("journal flushInterval: %w", err)
		}
		resolved.FlushInterval = interval
	}
	if cfg.SyncInterval != "" {
		interval, err := time.ParseDuration(cfg.SyncInterval)
		if err != nil {
			return recorder.Config{}, fmt.Errorf("journal syncInterval: %w", err)
		}
		resolved.SyncInterval = interval
	}
	if err := resolved.Validate(); err != nil {
		return recorder.Config{}, err
	}
	return resolved, nil
}

func resolveFeed(cfg FeedConfig) (FeedSpec, error) {
	if cfg.Source == "" {
		cfg.Source = FeedSourceGenerate
	}
	switch cfg.Source {
	case FeedSourceGenerate, FeedSourceReplay:
	default:
		return FeedSpec{}, fmt.Errorf("feed source unknown: %s", cfg.Source)
	}
	if cfg.Source == FeedSourceReplay && cfg.ReplayDir == "" {
		return FeedSpec{}, fmt.Errorf("feed replayDir is empty")
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 1024
	}
	if cfg.QueueSize < 0 {
		return FeedSpec{}, fmt.Errorf("feed queueSize must be > 0")
	}
	if cfg.RatePerSec == 0 {
		cfg.RatePerSec = 100
	}
	if cfg.RatePerSec < 0 {
		return FeedSpec{}, fmt.Errorf("feed ratePerSec must be > 0")
	}
	if cfg.ReplaySpeed == 0 {
		cfg.ReplaySpeed = 1.0
	}
	if cfg.ReplaySpeed < 0 {
		return FeedSpec{}, fmt.Errorf("feed replaySpeed must be > 0")
	}
	return FeedSpec{
		Source:      cfg.Source,
		QueueSize:   cfg.QueueSize,
		RatePerSec:  cfg.RatePerSec,
		Seed:        cfg.Seed,
		ReplayDir:   cfg.ReplayDir,
		ReplaySpeed: cfg.ReplaySpeed,
	}, nil
}

func resolveCatalog(cfg CatalogConfig, enabled bool) (conn.Option, error) {
	if !enabled {
		return conn.Option{}, nil
	}
	if cfg.ConnString == "" && cfg.Database == "" {
		return conn.Option{}, fmt.Errorf("catalog enabled without a database")
	}
	return conn.Option{
		Host:       cfg.Host,
		Port:       cfg.Port,
		User:       cfg.User,
		Password:   cfg.Password,
		Database:   cfg.Database,
		SSLMode:    cfg.SSLMode,
		ConnString: cfg.ConnString,
	}, nil
}

func resolveFeatures(cfg FeatureFlagsConfig) FeatureFlags {
	flags := FeatureFlags{
		EnableJournal: true,
		EnableCatalog: false,
	}
	if cfg.EnableJournal != nil {
		flags.EnableJournal = *cfg.EnableJournal
	}
	if cfg.EnableCatalog != nil {
		flags.EnableCatalog = *cfg.EnableCatalog
	}
	return flags
}
