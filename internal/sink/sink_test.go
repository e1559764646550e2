package sink

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnayoung/go-kline-sync/internal/models"
	"github.com/johnayoung/go-kline-sync/internal/normalize"
)

func testTable(t *testing.T, n int) models.BarTable {
	t.Helper()
	table := make(models.BarTable, 0, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		open := base.Add(time.Duration(i) * time.Minute)
		table = append(table, models.Bar{
			OpenTime:  open,
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100.5,
			Volume:    10,
			CloseTime: open.Add(time.Minute - time.Millisecond),
			Trades:    5,
		})
	}
	require.NoError(t, table.Validate())
	return table
}

func testCatalog(t *testing.T, market models.Market, g models.Granularity, format string) *Catalog {
	t.Helper()
	c, err := NewCatalog(t.TempDir(), market, g, format,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func TestCatalogPath(t *testing.T) {
	c := testCatalog(t, models.MarketSpot, models.Monthly, "parquet")
	p := models.PeriodSpec{Granularity: models.Monthly, Year: 2024, Month: time.January}

	rel, err := filepath.Rel(c.root, c.Path("BTCUSDT", p, "1m"))
	require.NoError(t, err)
	assert.Equal(t,
		filepath.Join("spot", "monthly", "klines", "BTCUSDT", "1m", "BTCUSDT-1m-2024-01.parquet"),
		rel)

	fc := testCatalog(t, models.MarketFutures, models.Daily, "csv")
	dp := models.PeriodSpec{Granularity: models.Daily, Year: 2024, Month: time.February, Day: 9}
	rel, err = filepath.Rel(fc.root, fc.Path("ETHUSDT", dp, "1m"))
	require.NoError(t, err)
	assert.Equal(t,
		filepath.Join("futures", "um", "daily", "klines", "ETHUSDT", "1m", "ETHUSDT-1m-2024-02-09.csv"),
		rel)
}

func TestNewCatalogRejectsUnknownFormat(t *testing.T) {
	_, err := NewCatalog(t.TempDir(), models.MarketSpot, models.Monthly, "xml", nil)
	require.Error(t, err)
}

func TestCatalogWriteAndExists(t *testing.T) {
	c := testCatalog(t, models.MarketSpot, models.Monthly, "csv")
	p := models.PeriodSpec{Granularity: models.Monthly, Year: 2024, Month: time.January}
	table := testTable(t, 3)

	exists, err := c.Exists("BTCUSDT", p, "1m")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, c.Write("BTCUSDT", p, "1m", table))

	exists, err = c.Exists("BTCUSDT", p, "1m")
	require.NoError(t, err)
	assert.True(t, exists)

	info, err := os.Stat(c.Path("BTCUSDT", p, "1m"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestCatalogWriteEmptyTableWritesNothing(t *testing.T) {
	c := testCatalog(t, models.MarketSpot, models.Monthly, "csv")
	p := models.PeriodSpec{Granularity: models.Monthly, Year: 2024, Month: time.January}

	require.NoError(t, c.Write("BTCUSDT", p, "1m", nil))
	exists, err := c.Exists("BTCUSDT", p, "1m")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCatalogExistsSurfacesStatErrors(t *testing.T) {
	c := testCatalog(t, models.MarketSpot, models.Monthly, "csv")
	p := models.PeriodSpec{Granularity: models.Monthly, Year: 2024, Month: time.January}

	// A regular file where the market directory belongs makes every stat
	// below it fail with something other than "not exist".
	require.NoError(t, os.WriteFile(filepath.Join(c.root, "spot"), []byte("x"), 0o644))

	_, err := c.Exists("BTCUSDT", p, "1m")
	require.Error(t, err)
	assert.False(t, errors.Is(err, fs.ErrNotExist))
}

func TestCatalogWriteIsIdempotent(t *testing.T) {
	c := testCatalog(t, models.MarketSpot, models.Monthly, "csv")
	p := models.PeriodSpec{Granularity: models.Monthly, Year: 2024, Month: time.January}

	require.NoError(t, c.Write("BTCUSDT", p, "1m", testTable(t, 2)))
	first, err := os.ReadFile(c.Path("BTCUSDT", p, "1m"))
	require.NoError(t, err)

	// A second write with different content must not replace the file.
	require.NoError(t, c.Write("BTCUSDT", p, "1m", testTable(t, 5)))
	second, err := os.ReadFile(c.Path("BTCUSDT", p, "1m"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCatalogWriteLeavesNoTempFiles(t *testing.T) {
	c := testCatalog(t, models.MarketSpot, models.Monthly, "csv")
	p := models.PeriodSpec{Granularity: models.Monthly, Year: 2024, Month: time.January}
	require.NoError(t, c.Write("BTCUSDT", p, "1m", testTable(t, 2)))

	dir := filepath.Dir(c.Path("BTCUSDT", p, "1m"))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "BTCUSDT-1m-2024-01.csv", entries[0].Name())
}

func TestCSVRoundTripsThroughNormalizer(t *testing.T) {
	c := testCatalog(t, models.MarketSpot, models.Monthly, "csv")
	p := models.PeriodSpec{Granularity: models.Monthly, Year: 2024, Month: time.January}
	table := testTable(t, 3)
	require.NoError(t, c.Write("BTCUSDT", p, "1m", table))

	raw, err := os.ReadFile(c.Path("BTCUSDT", p, "1m"))
	require.NoError(t, err)

	back, err := normalize.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, table, back)
}

func TestEncoderExtensions(t *testing.T) {
	assert.Equal(t, "parquet", NewRowEncoder("parquet").Extension())
	assert.Equal(t, "csv", NewRowEncoder("csv").Extension())
	assert.Equal(t, "json", NewRowEncoder("json").Extension())
	assert.Nil(t, NewRowEncoder("avro"))
}
