// Package config parses and validates the CLI configuration for a sync
// run. Parsing and validation are separate steps so tests can build a
// Config directly and validate it without a flag set.
package config

import (
	"flag"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/johnayoung/go-kline-sync/internal/exchange"
	"github.com/johnayoung/go-kline-sync/internal/models"
)

// Defaults for optional flags.
const (
	DefaultInterval   = "1m"
	DefaultCatalogDir = "data"
	DefaultPeriod     = "monthly"
	DefaultFormat     = "parquet"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
)

// Config is the validated run configuration. Raw* fields hold flag
// input as given; the typed fields beside them are populated by
// Validate.
type Config struct {
	RawMarket string
	Market    models.Market

	// Symbols are the raw selectors: explicit symbol names or the single
	// keyword ALL. Resolution against exchange metadata happens later,
	// since it needs a network round trip.
	Symbols []string

	RawStart string
	Start    models.Month
	RawEnd   string
	End      models.Month

	RawPeriod   string
	Granularity models.Granularity

	Interval   string
	CatalogDir string
	Workers    int
	Format     string
	FailOn400  bool

	LogLevel  string
	LogFormat string
	LogFile   string
}

// Parse reads the configuration from command-line arguments (excluding
// the program name) and validates it. Usage output goes to errOut.
func Parse(args []string, errOut io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("klinesync", flag.ContinueOnError)
	fs.SetOutput(errOut)

	cfg := &Config{}
	var symbols string

	fs.StringVar(&cfg.RawMarket, "market", "", "market to sync: spot or futures (required)")
	fs.StringVar(&symbols, "symbols", "", "comma-separated symbols, or ALL (required)")
	fs.StringVar(&cfg.RawStart, "start", "", "first month of the range, YYYY-MM (required)")
	fs.StringVar(&cfg.RawEnd, "end", "", "last month of the range, YYYY-MM (required)")
	fs.StringVar(&cfg.RawPeriod, "period", DefaultPeriod, "period granularity: monthly or daily")
	fs.StringVar(&cfg.Interval, "interval", DefaultInterval, "kline interval, e.g. 1m")
	fs.StringVar(&cfg.CatalogDir, "catalog", DefaultCatalogDir, "catalog root directory")
	fs.IntVar(&cfg.Workers, "workers", runtime.NumCPU(), "number of concurrent sync workers")
	fs.StringVar(&cfg.Format, "format", DefaultFormat, "output format: parquet, csv, or json")
	fs.BoolVar(&cfg.FailOn400, "fail-on-400", false, "abort the whole run on a provider rejection")
	fs.StringVar(&cfg.LogLevel, "log-level", DefaultLogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", DefaultLogFormat, "log format: text or json")
	fs.StringVar(&cfg.LogFile, "log-file", "", "write logs to this rotated file instead of stderr")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	for _, s := range strings.Split(symbols, ",") {
		if s = strings.TrimSpace(s); s != "" {
			cfg.Symbols = append(cfg.Symbols, s)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and populates the typed fields.
func (c *Config) Validate() error {
	market, err := models.ParseMarket(c.RawMarket)
	if err != nil {
		return err
	}
	c.Market = market

	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required (-symbols)")
	}

	if c.RawStart == "" || c.RawEnd == "" {
		return fmt.Errorf("both -start and -end are required (YYYY-MM)")
	}
	if c.Start, err = models.ParseMonth(c.RawStart); err != nil {
		return err
	}
	if c.End, err = models.ParseMonth(c.RawEnd); err != nil {
		return err
	}
	if c.Start.After(c.End) {
		return fmt.Errorf("%w: %s > %s", models.ErrInvalidRange, c.Start, c.End)
	}

	if c.Granularity, err = models.ParseGranularity(c.RawPeriod); err != nil {
		return err
	}

	if _, err := exchange.IntervalStep(c.Interval); err != nil {
		return err
	}

	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}

	switch c.Format {
	case "parquet", "csv", "json":
	default:
		return fmt.Errorf("unsupported output format %q (use: parquet, csv, json)", c.Format)
	}

	return nil
}
