package sink

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"github.com/johnayoung/go-kline-sync/internal/models"
)

// RowEncoder serializes one bar table into a catalog file. The catalog
// is format-agnostic; the encoder decides the file extension.
type RowEncoder interface {
	Encode(w io.Writer, table models.BarTable) error
	Extension() string
}

// NewRowEncoder creates the encoder for a format name (parquet, csv,
// json). Returns nil for unsupported formats.
func NewRowEncoder(format string) RowEncoder {
	switch format {
	case "parquet":
		return ParquetEncoder{}
	case "csv":
		return CSVEncoder{}
	case "json":
		return JSONEncoder{}
	default:
		return nil
	}
}

// ParquetEncoder writes the columnar layout defined by the Bar struct
// tags. This is the catalog's default format.
type ParquetEncoder struct{}

func (ParquetEncoder) Extension() string { return "parquet" }

func (ParquetEncoder) Encode(w io.Writer, table models.BarTable) error {
	return parquet.Write(w, []models.Bar(table))
}

// CSVEncoder writes the canonical 11-column layout with a header row.
// Timestamps are written back as epoch milliseconds, so a catalog CSV
// round-trips through the normalizer.
type CSVEncoder struct{}

func (CSVEncoder) Extension() string { return "csv" }

func (CSVEncoder) Encode(w io.Writer, table models.BarTable) error {
	cw := csv.NewWriter(w)
	header := []string{
		"open_time", "open", "high", "low", "close", "volume",
		"close_time", "quote_asset_volume", "trades",
		"taker_buy_base_vol", "taker_buy_quote_vol",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range table {
		b := &table[i]
		rec := []string{
			strconv.FormatInt(b.OpenTime.UnixMilli(), 10),
			floatStr(b.Open),
			floatStr(b.High),
			floatStr(b.Low),
			floatStr(b.Close),
			floatStr(b.Volume),
			strconv.FormatInt(b.CloseTime.UnixMilli(), 10),
			floatStr(b.QuoteAssetVolume),
			strconv.FormatInt(b.Trades, 10),
			floatStr(b.TakerBuyBaseVol),
			floatStr(b.TakerBuyQuoteVol),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// JSONEncoder writes an indented JSON array, mainly for debugging runs.
type JSONEncoder struct{}

func (JSONEncoder) Extension() string { return "json" }

func (JSONEncoder) Encode(w io.Writer, table models.BarTable) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(table)
}
