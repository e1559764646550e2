// Package normalize reconciles the heterogeneous upstream kline payloads
// into the canonical bar schema. Both sources produce CSV-shaped bytes:
// the bulk archive ships 11- or 12-column files (with or without a
// header row), and the API fetcher re-encodes its JSON pages into the
// same 12-column shape so a single parser covers both.
package normalize

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	serrors "github.com/johnayoung/go-kline-sync/internal/errors"
	"github.com/johnayoung/go-kline-sync/internal/models"
)

const (
	// NumColumns is the canonical kline column count.
	NumColumns = 11

	// NumColumnsWithIgnore is the provider's extended shape; the trailing
	// column carries no data and is dropped.
	NumColumnsWithIgnore = 12
)

// Column order of the upstream payloads. The 12th column, when present,
// is ignorable by provider convention.
//
//	open_time, open, high, low, close, volume, close_time,
//	quote_asset_volume, trades, taker_buy_base_vol, taker_buy_quote_vol

// Normalize parses a raw CSV payload into a validated BarTable. Row
// order is preserved exactly as delivered; both sources emit ascending
// open times and the table-level validation rejects anything else rather
// than silently re-sorting.
func Normalize(raw []byte) (models.BarTable, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &serrors.FormatError{Reason: "unreadable payload", Err: err}
	}
	if len(records) == 0 {
		return nil, &serrors.FormatError{Reason: "empty payload"}
	}

	// A header row is detected by a non-numeric first cell.
	start := 0
	if _, err := decimal.NewFromString(records[0][0]); err != nil {
		start = 1
	}
	rows := records[start:]
	if len(rows) == 0 {
		return nil, &serrors.FormatError{Reason: "payload contains only a header"}
	}

	width := len(rows[0])
	if width != NumColumns && width != NumColumnsWithIgnore {
		return nil, &serrors.FormatError{Reason: fmt.Sprintf("unexpected column count %d", width)}
	}

	table := make(models.BarTable, 0, len(rows))
	for i, rec := range rows {
		if len(rec) != width {
			return nil, &serrors.FormatError{
				Reason: fmt.Sprintf("row %d has %d columns, expected %d", i, len(rec), width),
			}
		}
		bar, err := parseRow(rec)
		if err != nil {
			return nil, &serrors.FormatError{Reason: fmt.Sprintf("row %d", i), Err: err}
		}
		table = append(table, bar)
	}

	if err := table.Validate(); err != nil {
		return nil, &serrors.FormatError{Reason: "invalid table", Err: err}
	}
	return table, nil
}

func parseRow(rec []string) (models.Bar, error) {
	openTime, err := parseMillis(rec[0])
	if err != nil {
		return models.Bar{}, fmt.Errorf("open_time: %w", err)
	}
	closeTime, err := parseMillis(rec[6])
	if err != nil {
		return models.Bar{}, fmt.Errorf("close_time: %w", err)
	}
	trades, err := strconv.ParseInt(rec[8], 10, 64)
	if err != nil {
		return models.Bar{}, fmt.Errorf("trades: %w", err)
	}

	bar := models.Bar{OpenTime: openTime, CloseTime: closeTime, Trades: trades}

	// Parsed through decimal so malformed numerics fail the same way
	// regardless of magnitude; stored as float64 for the columnar file.
	for _, f := range []struct {
		name string
		cell string
		dst  *float64
	}{
		{"open", rec[1], &bar.Open},
		{"high", rec[2], &bar.High},
		{"low", rec[3], &bar.Low},
		{"close", rec[4], &bar.Close},
		{"volume", rec[5], &bar.Volume},
		{"quote_asset_volume", rec[7], &bar.QuoteAssetVolume},
		{"taker_buy_base_vol", rec[9], &bar.TakerBuyBaseVol},
		{"taker_buy_quote_vol", rec[10], &bar.TakerBuyQuoteVol},
	} {
		d, err := decimal.NewFromString(f.cell)
		if err != nil {
			return models.Bar{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = d.InexactFloat64()
	}

	return bar, nil
}

func parseMillis(cell string) (time.Time, error) {
	ms, err := strconv.ParseInt(cell, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
