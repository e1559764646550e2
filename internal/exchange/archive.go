package exchange

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	serrors "github.com/johnayoung/go-kline-sync/internal/errors"
	"github.com/johnayoung/go-kline-sync/internal/models"
)

// ArchiveURL builds the deterministic bulk-archive URL for one
// (symbol, period, interval). The layout mirrors the catalog tree:
// data/<market-root>/<granularity>/klines/<symbol>/<interval>/.
func (c *Client) ArchiveURL(symbol string, period models.PeriodSpec, interval string) string {
	return fmt.Sprintf("%s/data/%s/%s/klines/%s/%s/%s-%s-%s.zip",
		c.archiveBase, c.market.CatalogRoot(), period.Granularity,
		symbol, interval, symbol, interval, period.DateString())
}

// ProbeArchive checks whether the bulk archive has a file for the given
// task via a lightweight HEAD request. Any network error is treated as
// "not present": the caller falls back to the API path, which decides
// for itself whether data exists.
func (c *Client) ProbeArchive(ctx context.Context, symbol string, period models.PeriodSpec, interval string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	archiveURL := c.ArchiveURL(symbol, period, interval)
	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, archiveURL, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("archive probe failed", "url", archiveURL, "error", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// FetchArchive downloads the compressed archive for the given task and
// returns the decompressed bytes of its first entry. All failures
// surface as *errors.ArchiveError, which is non-fatal to the task: the
// caller falls back to the API path. No retry here for the same reason.
func (c *Client) FetchArchive(ctx context.Context, symbol string, period models.PeriodSpec, interval string) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	archiveURL := c.ArchiveURL(symbol, period, interval)
	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, archiveURL, nil)
	if err != nil {
		return nil, &serrors.ArchiveError{URL: archiveURL, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &serrors.ArchiveError{URL: archiveURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &serrors.ArchiveError{URL: archiveURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	compressed, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &serrors.ArchiveError{URL: archiveURL, Err: err}
	}

	zr, err := zip.NewReader(bytes.NewReader(compressed), int64(len(compressed)))
	if err != nil {
		return nil, &serrors.ArchiveError{URL: archiveURL, Err: err}
	}
	if len(zr.File) == 0 {
		return nil, &serrors.ArchiveError{URL: archiveURL, Err: fmt.Errorf("empty zip")}
	}

	entry, err := zr.File[0].Open()
	if err != nil {
		return nil, &serrors.ArchiveError{URL: archiveURL, Err: err}
	}
	defer entry.Close()

	data, err := io.ReadAll(entry)
	if err != nil {
		return nil, &serrors.ArchiveError{URL: archiveURL, Err: err}
	}

	c.logger.Debug("fetched archive", "url", archiveURL, "bytes", len(data))
	return data, nil
}
