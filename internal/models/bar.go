package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one canonical 1-interval kline row. Both upstream sources (the
// bulk archive and the paginated API) are normalized into this schema
// before anything is persisted. The parquet tags define the on-disk
// column layout of the catalog.
type Bar struct {
	OpenTime          time.Time `json:"open_time" parquet:"open_time,timestamp(millisecond)"`
	Open              float64   `json:"open" parquet:"open"`
	High              float64   `json:"high" parquet:"high"`
	Low               float64   `json:"low" parquet:"low"`
	Close             float64   `json:"close" parquet:"close"`
	Volume            float64   `json:"volume" parquet:"volume"`
	CloseTime         time.Time `json:"close_time" parquet:"close_time,timestamp(millisecond)"`
	QuoteAssetVolume  float64   `json:"quote_asset_volume" parquet:"quote_asset_volume"`
	Trades            int64     `json:"trades" parquet:"trades"`
	TakerBuyBaseVol   float64   `json:"taker_buy_base_vol" parquet:"taker_buy_base_vol"`
	TakerBuyQuoteVol  float64   `json:"taker_buy_quote_vol" parquet:"taker_buy_quote_vol"`
}

// Validate checks the bar's internal invariants. Price relations are
// compared through decimal to avoid float equality surprises at the
// boundaries (high == open is legal, high < open is not).
func (b *Bar) Validate() error {
	if b.OpenTime.IsZero() {
		return fmt.Errorf("open_time is zero")
	}
	if !b.OpenTime.Before(b.CloseTime) {
		return fmt.Errorf("open_time %s is not before close_time %s", b.OpenTime, b.CloseTime)
	}
	if b.Trades < 0 {
		return fmt.Errorf("trades %d is negative", b.Trades)
	}

	open := decimal.NewFromFloat(b.Open)
	high := decimal.NewFromFloat(b.High)
	low := decimal.NewFromFloat(b.Low)
	close := decimal.NewFromFloat(b.Close)

	if high.LessThan(open) || high.LessThan(low) || high.LessThan(close) {
		return fmt.Errorf("high %s is below open/low/close", high)
	}
	if low.GreaterThan(open) || low.GreaterThan(close) {
		return fmt.Errorf("low %s is above open/close", low)
	}
	if b.Volume < 0 {
		return fmt.Errorf("volume %v is negative", b.Volume)
	}
	return nil
}

// String implements fmt.Stringer for log output.
func (b *Bar) String() string {
	return fmt.Sprintf("Bar{%s O:%v H:%v L:%v C:%v V:%v}",
		b.OpenTime.Format(time.RFC3339), b.Open, b.High, b.Low, b.Close, b.Volume)
}

// BarTable is an ordered sequence of bars, ascending by open time. A
// table is produced fresh per task and never mutated afterwards.
type BarTable []Bar

// Validate checks every bar and the table-level ordering invariant:
// strictly increasing open times (which also rules out duplicates).
func (t BarTable) Validate() error {
	for i := range t {
		if err := t[i].Validate(); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if i > 0 && !t[i-1].OpenTime.Before(t[i].OpenTime) {
			return fmt.Errorf("row %d: open_time %s does not advance past %s",
				i, t[i].OpenTime, t[i-1].OpenTime)
		}
	}
	return nil
}
