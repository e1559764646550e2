package models

import "fmt"

// Market identifies which Binance market a sync run targets.
type Market string

const (
	// MarketSpot targets the spot exchange.
	MarketSpot Market = "spot"

	// MarketFutures targets USD-M perpetual futures.
	MarketFutures Market = "futures"
)

// ParseMarket converts a CLI market string into a Market.
// Returns an error for anything other than "spot" or "futures".
func ParseMarket(s string) (Market, error) {
	switch Market(s) {
	case MarketSpot, MarketFutures:
		return Market(s), nil
	default:
		return "", fmt.Errorf("unsupported market %q (use: spot, futures)", s)
	}
}

// CatalogRoot returns the market's top-level directory inside both the
// remote archive tree and the local catalog. Binance publishes USD-M
// futures archives under futures/um.
func (m Market) CatalogRoot() string {
	if m == MarketFutures {
		return "futures/um"
	}
	return "spot"
}
