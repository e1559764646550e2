package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBar(openMS int64) Bar {
	open := time.UnixMilli(openMS).UTC()
	return Bar{
		OpenTime:  open,
		Open:      100,
		High:      105,
		Low:       99,
		Close:     102,
		Volume:    12.5,
		CloseTime: open.Add(time.Minute - time.Millisecond),
		Trades:    42,
	}
}

func TestBarValidate(t *testing.T) {
	b := validBar(1704067200000)
	require.NoError(t, b.Validate())

	// High equal to open is legal.
	flat := b
	flat.High = flat.Open
	flat.Low = flat.Open
	flat.Close = flat.Open
	assert.NoError(t, flat.Validate())
}

func TestBarValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Bar)
	}{
		{"high below open", func(b *Bar) { b.High = b.Open - 1 }},
		{"high below low", func(b *Bar) { b.High = b.Low - 1 }},
		{"low above close", func(b *Bar) { b.Low = b.Close + 1 }},
		{"negative volume", func(b *Bar) { b.Volume = -1 }},
		{"negative trades", func(b *Bar) { b.Trades = -1 }},
		{"zero open time", func(b *Bar) { b.OpenTime = time.Time{} }},
		{"close before open", func(b *Bar) { b.CloseTime = b.OpenTime.Add(-time.Second) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBar(1704067200000)
			tt.mutate(&b)
			assert.Error(t, b.Validate())
		})
	}
}

func TestBarTableValidateOrdering(t *testing.T) {
	table := BarTable{validBar(1704067200000), validBar(1704067260000)}
	require.NoError(t, table.Validate())

	// Duplicate open time.
	dup := BarTable{validBar(1704067200000), validBar(1704067200000)}
	assert.Error(t, dup.Validate())

	// Out of order.
	rev := BarTable{validBar(1704067260000), validBar(1704067200000)}
	assert.Error(t, rev.Validate())
}

func TestParseMarket(t *testing.T) {
	m, err := ParseMarket("spot")
	require.NoError(t, err)
	assert.Equal(t, "spot", m.CatalogRoot())

	m, err = ParseMarket("futures")
	require.NoError(t, err)
	assert.Equal(t, "futures/um", m.CatalogRoot())

	_, err = ParseMarket("margin")
	assert.Error(t, err)
}
