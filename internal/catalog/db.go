package catalog

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm/clause"

	"main/internal/model"
	"main/internal/schema"
	"main/pkg/conn"
)

// BlockFile is the database row backing one catalog entry. Kind and period
// are stored as their short names so the table reads without a decoder ring.
type BlockFile struct {
	ID          uint   `gorm:"primaryKey"`
	SymbolID    uint32 `gorm:"uniqueIndex:idx_block_files_series_day"`
	Symbol      string `gorm:"size:64"`
	Kind        string `gorm:"size:16;uniqueIndex:idx_block_files_series_day"`
	Period      string `gorm:"size:16;uniqueIndex:idx_block_files_series_day"`
	TradingDay  int64  `gorm:"uniqueIndex:idx_block_files_series_day"`
	Path        string `gorm:"size:512"`
	Count       uint64
	FirstBucket int64
	LastBucket  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName names the catalog table.
func (BlockFile) TableName() string {
	return "block_files"
}

func rowFromEntry(e Entry) BlockFile {
	return BlockFile{
		SymbolID:    uint32(e.SymbolID),
		Symbol:      e.Symbol,
		Kind:        e.Kind.String(),
		Period:      e.Period.String(),
		TradingDay:  e.TradingDay,
		Path:        e.Path,
		Count:       e.Count,
		FirstBucket: e.FirstBucket,
		LastBucket:  e.LastBucket,
	}
}

func (r BlockFile) entry() (Entry, bool) {
	kind, ok := model.ParseKind(r.Kind)
	if !ok {
		return Entry{}, false
	}
	period := model.PeriodNone
	if r.Period != "" && r.Period != model.PeriodNone.String() {
		period, ok = model.ParsePeriod(r.Period)
		if !ok {
			return Entry{}, false
		}
	}
	return Entry{
		SymbolID:    schema.SymbolID(r.SymbolID),
		Symbol:      r.Symbol,
		Kind:        kind,
		Period:      period,
		TradingDay:  r.TradingDay,
		Path:        r.Path,
		Count:       r.Count,
		FirstBucket: r.FirstBucket,
		LastBucket:  r.LastBucket,
	}, true
}

// DB is the postgres backed catalog.
type DB struct {
	client *conn.Client
}

// NewDB connects to postgres, migrates the catalog table and returns the
// catalog.
func NewDB(ctx context.Context, opt conn.Option) (*DB, error) {
	client, err := conn.New(opt)
	if err != nil {
		return nil, errors.Wrap(err, "connect catalog database")
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping catalog database")
	}
	if err := client.DB().WithContext(ctx).AutoMigrate(&BlockFile{}); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "migrate catalog table")
	}
	return &DB{client: client}, nil
}

// Register upserts one entry keyed by (symbol, kind, period, trading day), so
// resealing a day replaces its row.
func (d *DB) Register(ctx context.Context, e Entry) error {
	row := rowFromEntry(e)
	err := d.client.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "symbol_id"}, {Name: "kind"}, {Name: "period"}, {Name: "trading_day"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"symbol", "path", "count", "first_bucket", "last_bucket", "updated_at",
			}),
		}).
		Create(&row).Error
	if err != nil {
		return errors.Wrapf(err, "register block file %s", e.Path)
	}
	return nil
}

// List returns the entries matching the query, oldest trading day first.
// Rows with kind or period names this build does not know are skipped.
func (d *DB) List(ctx context.Context, q Query) ([]Entry, error) {
	tx := d.client.DB().WithContext(ctx).
		Where("symbol_id = ? AND kind = ? AND period = ?",
			uint32(q.SymbolID), q.Kind.String(), q.Period.String())
	if q.FromDay > 0 {
		tx = tx.Where("trading_day >= ?", q.FromDay)
	}
	if q.ToDay > 0 {
		tx = tx.Where("trading_day <= ?", q.ToDay)
	}

	var rows []BlockFile
	if err := tx.Order("trading_day").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list block files")
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		if e, ok := row.entry(); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.client.Close()
}
