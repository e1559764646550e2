// Package exchange provides the Binance clients for both acquisition
// tiers: the bulk-archive endpoint (probe and zip download) and the
// paginated kline REST API, plus symbol resolution against exchange
// metadata. All requests carry explicit timeouts, page requests are
// rate limited, and transient failures retry with exponential backoff.
package exchange

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	serrors "github.com/johnayoung/go-kline-sync/internal/errors"
	"github.com/johnayoung/go-kline-sync/internal/models"
)

const (
	spotAPIBaseURL    = "https://api.binance.com"
	futuresAPIBaseURL = "https://fapi.binance.com"
	archiveBaseURL    = "https://data.binance.vision"

	spotKlinesPath    = "/api/v3/klines"
	futuresKlinesPath = "/fapi/v1/klines"
	spotInfoPath      = "/api/v3/exchangeInfo"
	futuresInfoPath   = "/fapi/v1/exchangeInfo"

	// Provider page-size limit for kline queries.
	maxRowsPerPage = 1000

	// Request configuration
	requestTimeout = 15 * time.Second
	probeTimeout   = 10 * time.Second
	archiveTimeout = 60 * time.Second

	// Pacing between kline page requests.
	pageRequestsPerSecond = 20
	pageBurst             = 1

	// Retry configuration for transient request failures.
	maxRequestAttempts = 3
	initialRetryDelay  = 500 * time.Millisecond
	maxRetryDelay      = 10 * time.Second
)

// Client talks to one Binance market. The zero value is not usable;
// construct with NewClient.
type Client struct {
	httpClient  *http.Client
	market      models.Market
	apiBase     string
	archiveBase string
	klinesPath  string
	infoPath    string
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a client for the given market with default logging.
func NewClient(market models.Market) *Client {
	return NewClientWithLogger(market, slog.Default())
}

// NewClientWithLogger creates a client for the given market.
func NewClientWithLogger(market models.Market, logger *slog.Logger) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		market:      market,
		apiBase:     spotAPIBaseURL,
		archiveBase: archiveBaseURL,
		klinesPath:  spotKlinesPath,
		infoPath:    spotInfoPath,
		limiter:     rate.NewLimiter(rate.Limit(pageRequestsPerSecond), pageBurst),
		logger:      logger,
	}
	if market == models.MarketFutures {
		c.apiBase = futuresAPIBaseURL
		c.klinesPath = futuresKlinesPath
		c.infoPath = futuresInfoPath
	}
	return c
}

// IntervalStep returns the duration of one kline interval. Unsupported
// interval strings are a configuration error.
func IntervalStep(interval string) (time.Duration, error) {
	switch interval {
	case "1m":
		return time.Minute, nil
	case "3m":
		return 3 * time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "2h":
		return 2 * time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "6h":
		return 6 * time.Hour, nil
	case "8h":
		return 8 * time.Hour, nil
	case "12h":
		return 12 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported interval %q", interval)
	}
}

// FetchKlines assembles the complete row set for the half-open window
// [startMS, endMS) by repeated paginated requests. Each page holds at
// most maxRowsPerPage rows; the next page starts one interval step after
// the prior page's last open time. The pages are re-encoded into one CSV
// payload so the normalizer handles archive and API bytes identically.
//
// A 400 response surfaces as *errors.ClientRejectedError and is never
// retried; 5xx, timeouts, and connection failures retry with backoff and
// surface as *errors.TransientError once attempts are exhausted. A
// window with zero rows overall returns *errors.EmptyResultError.
func (c *Client) FetchKlines(ctx context.Context, symbol, interval string, startMS, endMS int64) ([]byte, error) {
	step, err := IntervalStep(interval)
	if err != nil {
		return nil, err
	}
	stepMS := step.Milliseconds()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := 0

	for cur := startMS; cur < endMS; {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		page, err := c.fetchKlinePage(ctx, symbol, interval, cur, endMS)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		for _, rec := range page {
			openTime, err := strconv.ParseInt(rec[0], 10, 64)
			if err != nil {
				return nil, &serrors.FormatError{Reason: "non-numeric open time in API row", Err: err}
			}
			if openTime >= endMS {
				continue
			}
			if err := w.Write(rec); err != nil {
				return nil, err
			}
			rows++
		}

		last, err := strconv.ParseInt(page[len(page)-1][0], 10, 64)
		if err != nil {
			return nil, &serrors.FormatError{Reason: "non-numeric open time in API row", Err: err}
		}
		// A page whose last row is not past the requested start would
		// re-request the same window forever.
		next := last + stepMS
		if next <= cur {
			return nil, &serrors.FormatError{
				Reason: fmt.Sprintf("kline page did not advance past %d", cur),
			}
		}
		cur = next
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	if rows == 0 {
		return nil, &serrors.EmptyResultError{Symbol: symbol, StartMS: startMS, EndMS: endMS}
	}

	c.logger.Debug("assembled kline pages", "symbol", symbol, "rows", rows)
	return buf.Bytes(), nil
}

// fetchKlinePage requests one page and flattens the JSON array-of-arrays
// response into string records.
func (c *Client) fetchKlinePage(ctx context.Context, symbol, interval string, startMS, endMS int64) ([][]string, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(maxRowsPerPage))
	params.Set("startTime", strconv.FormatInt(startMS, 10))
	// The provider treats endTime as inclusive; the window is half-open.
	params.Set("endTime", strconv.FormatInt(endMS-1, 10))

	body, err := c.doRequest(ctx, c.apiBase+c.klinesPath+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw [][]any
	if err := dec.Decode(&raw); err != nil {
		return nil, &serrors.FormatError{Reason: "unparseable kline response", Err: err}
	}

	page := make([][]string, 0, len(raw))
	for _, row := range raw {
		rec := make([]string, 0, len(row))
		for _, cell := range row {
			switch v := cell.(type) {
			case json.Number:
				rec = append(rec, v.String())
			case string:
				rec = append(rec, v)
			default:
				rec = append(rec, fmt.Sprint(v))
			}
		}
		page = append(page, rec)
	}
	return page, nil
}

// doRequest performs a GET with bounded exponential-backoff retries.
// Classification follows the provider contract: 400-class responses are
// permanent client rejections, 429 and 5xx are transient, and transport
// errors are transient unless the context was cancelled.
func (c *Client) doRequest(ctx context.Context, requestURL string) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialRetryDelay
	policy.MaxInterval = maxRetryDelay
	policy.MaxElapsedTime = 0

	attempt := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, &serrors.TransientError{Op: "GET " + requestURL, Err: err}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &serrors.TransientError{Op: "read " + requestURL, Err: err}
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, &serrors.TransientError{
				Op:  "GET " + requestURL,
				Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body)),
			}
		default:
			return nil, backoff.Permanent(&serrors.ClientRejectedError{
				URL:    requestURL,
				Status: resp.StatusCode,
				Body:   truncate(body),
			})
		}
	}

	return backoff.RetryWithData(attempt,
		backoff.WithContext(backoff.WithMaxRetries(policy, maxRequestAttempts-1), ctx))
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
