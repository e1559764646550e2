package exchange

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/johnayoung/go-kline-sync/internal/errors"
	"github.com/johnayoung/go-kline-sync/internal/models"
)

func monthlyPeriod(year int, month time.Month) models.PeriodSpec {
	return models.PeriodSpec{Granularity: models.Monthly, Year: year, Month: month}
}

func zipPayload(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestArchiveURL(t *testing.T) {
	spot := NewClient(models.MarketSpot)
	assert.Equal(t,
		"https://data.binance.vision/data/spot/monthly/klines/BTCUSDT/1m/BTCUSDT-1m-2024-01.zip",
		spot.ArchiveURL("BTCUSDT", monthlyPeriod(2024, time.January), "1m"))

	futures := NewClient(models.MarketFutures)
	daily := models.PeriodSpec{Granularity: models.Daily, Year: 2024, Month: time.February, Day: 9}
	assert.Equal(t,
		"https://data.binance.vision/data/futures/um/daily/klines/ETHUSDT/1m/ETHUSDT-1m-2024-02-09.zip",
		futures.ArchiveURL("ETHUSDT", daily, "1m"))
}

func TestProbeArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/data/spot/monthly/klines/BTCUSDT/1m/BTCUSDT-1m-2024-01.zip" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(t, models.MarketSpot, srv)
	assert.True(t, c.ProbeArchive(context.Background(), "BTCUSDT", monthlyPeriod(2024, time.January), "1m"))
	assert.False(t, c.ProbeArchive(context.Background(), "BTCUSDT", monthlyPeriod(2024, time.February), "1m"))
}

func TestProbeArchiveNetworkErrorReadsAsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := testClient(t, models.MarketSpot, srv)
	assert.False(t, c.ProbeArchive(context.Background(), "BTCUSDT", monthlyPeriod(2024, time.January), "1m"))
}

func TestFetchArchiveExtractsFirstEntry(t *testing.T) {
	const csvContent = "1704067200000,1,2,0.5,1.5,10,1704067259999,100,5,2,50\n"
	payload := zipPayload(t, "BTCUSDT-1m-2024-01.csv", csvContent)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	c := testClient(t, models.MarketSpot, srv)
	data, err := c.FetchArchive(context.Background(), "BTCUSDT", monthlyPeriod(2024, time.January), "1m")
	require.NoError(t, err)
	assert.Equal(t, csvContent, string(data))
}

func TestFetchArchiveErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
		{"not a zip", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("this is not a zip archive"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := testClient(t, models.MarketSpot, srv)
			_, err := c.FetchArchive(context.Background(), "BTCUSDT", monthlyPeriod(2024, time.January), "1m")
			require.Error(t, err)
			assert.True(t, serrors.IsArchive(err))
		})
	}
}
