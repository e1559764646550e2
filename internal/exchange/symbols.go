package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/johnayoung/go-kline-sync/internal/models"
)

// settlementAsset is the quote currency the sync targets; only
// USDT-quoted instruments are expanded from the ALL selector.
const settlementAsset = "USDT"

type exchangeInfoSymbol struct {
	Symbol       string `json:"symbol"`
	Status       string `json:"status"`
	QuoteAsset   string `json:"quoteAsset"`
	ContractType string `json:"contractType"`
}

// ResolveSymbols expands CLI symbol selectors into the concrete symbol
// list to synchronize. An explicit list passes through uppercased and
// deduplicated in the order given. The single keyword ALL queries
// exchange metadata and filters to actively trading USDT-quoted
// instruments; on the futures market it further restricts to perpetual
// contracts.
//
// The ALL filter intentionally excludes delisted symbols: backfilling
// one of those is still possible by naming it explicitly, which bypasses
// the filter entirely.
func (c *Client) ResolveSymbols(ctx context.Context, selectors []string) ([]string, error) {
	if len(selectors) == 1 && strings.EqualFold(selectors[0], "ALL") {
		return c.fetchAllSymbols(ctx)
	}

	seen := make(map[string]bool, len(selectors))
	out := make([]string, 0, len(selectors))
	for _, s := range selectors {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no symbols selected")
	}
	return out, nil
}

func (c *Client) fetchAllSymbols(ctx context.Context) ([]string, error) {
	body, err := c.doRequest(ctx, c.apiBase+c.infoPath)
	if err != nil {
		return nil, fmt.Errorf("exchange info query failed: %w", err)
	}

	var info struct {
		Symbols []exchangeInfoSymbol `json:"symbols"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("unparseable exchange info response: %w", err)
	}

	var out []string
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		if s.QuoteAsset != settlementAsset {
			continue
		}
		if c.market == models.MarketFutures && s.ContractType != "PERPETUAL" {
			continue
		}
		out = append(out, strings.ToUpper(s.Symbol))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ALL expanded to zero symbols")
	}

	sort.Strings(out)
	c.logger.Info("expanded ALL selector", "symbols", len(out))
	return out, nil
}
