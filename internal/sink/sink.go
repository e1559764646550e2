// Package sink persists normalized bar tables into an on-disk catalog
// that mirrors the bulk-archive tree. File presence is the resumability
// contract: a completed period exists as exactly one file at a
// deterministic path, and reruns skip existing files without opening
// them.
package sink

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/johnayoung/go-kline-sync/internal/models"
)

// Catalog writes period files under a fixed root directory.
type Catalog struct {
	root        string
	market      models.Market
	granularity models.Granularity
	enc         RowEncoder
	logger      *slog.Logger
}

// NewCatalog creates a catalog rooted at dir. The format must name a
// supported encoder (parquet, csv, json). A nil logger falls back to
// slog.Default.
func NewCatalog(dir string, market models.Market, granularity models.Granularity, format string, logger *slog.Logger) (*Catalog, error) {
	enc := NewRowEncoder(format)
	if enc == nil {
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		root:        dir,
		market:      market,
		granularity: granularity,
		enc:         enc,
		logger:      logger,
	}, nil
}

// Path returns the deterministic catalog path for one (symbol, period,
// interval). The layout mirrors the bulk-archive tree:
// <root>/<market-root>/<granularity>/klines/<symbol>/<interval>/<symbol>-<interval>-<date>.<ext>.
func (c *Catalog) Path(symbol string, period models.PeriodSpec, interval string) string {
	name := fmt.Sprintf("%s-%s-%s.%s", symbol, interval, period.DateString(), c.enc.Extension())
	return filepath.Join(c.root,
		filepath.FromSlash(c.market.CatalogRoot()),
		string(c.granularity), "klines", symbol, interval, name)
}

// Exists reports whether the period file is already present. Presence
// alone marks the period complete; the file contents are not inspected.
// A stat failure other than "does not exist" is a storage error, not an
// absent file.
func (c *Catalog) Exists(symbol string, period models.PeriodSpec, interval string) (bool, error) {
	_, err := os.Stat(c.Path(symbol, period, interval))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat catalog file: %w", err)
	}
}

// Write persists one period's table. An empty table writes nothing, so
// a failed or empty period never leaves a file that a rerun would
// mistake for completed. The file appears atomically: the encoder
// writes to a temp file in the destination directory which is then
// renamed into place.
func (c *Catalog) Write(symbol string, period models.PeriodSpec, interval string, table models.BarTable) error {
	if len(table) == 0 {
		return nil
	}

	dest := c.Path(symbol, period, interval)
	exists, err := c.Exists(symbol, period, interval)
	if err != nil {
		return err
	}
	if exists {
		c.logger.Debug("catalog file already present", "path", dest)
		return nil
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := c.enc.Encode(tmp, table); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encode %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("finalize %s: %w", dest, err)
	}

	c.logger.Debug("wrote catalog file", "path", dest, "rows", len(table))
	return nil
}
