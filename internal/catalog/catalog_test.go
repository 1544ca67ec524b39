package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/blockfile"
	"main/internal/model"
	"main/internal/schema"
)

func dayBars(day int64, n int) []model.Bar {
	y, m, d := int(day/10000), int(day/100%100), int(day%100)
	base := time.Date(y, time.Month(m), d, 9, 30, 0, 0, time.UTC).UnixNano()
	recs := make([]model.Bar, n)
	for i := range recs {
		recs[i] = model.Bar{
			StartTsNano: base + int64(i)*int64(60)*1e9,
			Open:        model.Price(100_00 + i),
			Close:       model.Price(100_50 + i),
			Volume:      model.Quantity(1 + i),
		}
	}
	return recs
}

func writeBlock(t *testing.T, root string, symbolID schema.SymbolID, period model.Period, day int64, n int) string {
	t.Helper()
	name := strconv.FormatInt(day, 10) + BlockFileSuffix
	path := filepath.Join(root, "his", period.String(), strconv.Itoa(int(symbolID)), name)
	err := blockfile.Write(path, blockfile.Header{
		Kind:       model.KindBar,
		Period:     period,
		SymbolID:   symbolID,
		TradingDay: day,
	}, dayBars(day, n))
	require.NoError(t, err)
	return path
}

func TestDirListsMatchingSeries(t *testing.T) {
	root := t.TempDir()
	writeBlock(t, root, 7, model.PeriodMin1, 20240315, 16)
	writeBlock(t, root, 7, model.PeriodMin1, 20240314, 8)
	writeBlock(t, root, 7, model.PeriodMin5, 20240315, 4)
	writeBlock(t, root, 9, model.PeriodMin1, 20240315, 4)

	// Foreign files in the tree are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "his", "bogus"+BlockFileSuffix), []byte("not a block"), 0o644))

	cat := NewDir(root)
	defer cat.Close()

	entries, err := cat.List(context.Background(), Query{
		SymbolID: 7,
		Kind:     model.KindBar,
		Period:   model.PeriodMin1,
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, int64(20240314), entries[0].TradingDay)
	assert.Equal(t, int64(20240315), entries[1].TradingDay)
	assert.Equal(t, uint64(8), entries[0].Count)
	assert.Equal(t, uint64(16), entries[1].Count)
	for _, e := range entries {
		assert.Equal(t, schema.SymbolID(7), e.SymbolID)
		assert.Equal(t, model.KindBar, e.Kind)
		assert.Equal(t, model.PeriodMin1, e.Period)
		assert.NotZero(t, e.FirstBucket)
		assert.GreaterOrEqual(t, e.LastBucket, e.FirstBucket)
	}
}

func TestDirListDayRange(t *testing.T) {
	root := t.TempDir()
	for _, day := range []int64{20240311, 20240312, 20240313, 20240314} {
		writeBlock(t, root, 7, model.PeriodMin1, day, 2)
	}

	cat := NewDir(root)
	entries, err := cat.List(context.Background(), Query{
		SymbolID: 7,
		Kind:     model.KindBar,
		Period:   model.PeriodMin1,
		FromDay:  20240312,
		ToDay:    20240313,
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(20240312), entries[0].TradingDay)
	assert.Equal(t, int64(20240313), entries[1].TradingDay)
}

func TestDirMissingRootIsEmpty(t *testing.T) {
	cat := NewDir(filepath.Join(t.TempDir(), "absent"))
	entries, err := cat.List(context.Background(), Query{SymbolID: 1, Kind: model.KindTick})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBlockFileRowMapping(t *testing.T) {
	e := Entry{
		SymbolID:    42,
		Symbol:      "600519",
		Kind:        model.KindBar,
		Period:      model.PeriodMin5,
		TradingDay:  20240315,
		Path:        "/data/his/m5/600519/20240315.mdb",
		Count:       48,
		FirstBucket: 1710460800000000000,
		LastBucket:  1710475200000000000,
	}

	row := rowFromEntry(e)
	assert.Equal(t, "bar", row.Kind)
	assert.Equal(t, "m5", row.Period)

	back, ok := row.entry()
	require.True(t, ok)
	assert.Equal(t, e, back)

	row.Kind = "hologram"
	_, ok = row.entry()
	assert.False(t, ok, "unknown kind rows must be skipped")
}

func TestBlockFileRowTickSeries(t *testing.T) {
	row := rowFromEntry(Entry{SymbolID: 1, Kind: model.KindTick, Period: model.PeriodNone})
	assert.Equal(t, "tick", row.Kind)
	assert.Equal(t, "none", row.Period)

	back, ok := row.entry()
	require.True(t, ok)
	assert.Equal(t, model.PeriodNone, back.Period)
}
