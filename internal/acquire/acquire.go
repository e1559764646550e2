// Package acquire implements the two-tier acquisition strategy: probe
// the bulk archive first, fall back to the paginated API when the
// archive path fails at any stage.
package acquire

import (
	"context"
	"log/slog"

	"github.com/johnayoung/go-kline-sync/internal/models"
	"github.com/johnayoung/go-kline-sync/internal/normalize"
)

// Source reports which acquisition tier produced a table.
type Source int

const (
	// SourceArchive means the bulk archive served the task.
	SourceArchive Source = iota + 1

	// SourceAPI means the paginated kline API served the task.
	SourceAPI
)

// String returns the source name used in logs.
func (s Source) String() string {
	switch s {
	case SourceArchive:
		return "archive"
	case SourceAPI:
		return "api"
	default:
		return "unknown"
	}
}

// Fetcher is the upstream surface the strategy orchestrates. The
// exchange.Client satisfies it; tests substitute fakes.
type Fetcher interface {
	// ProbeArchive reports whether the bulk archive has the task's file.
	// Network errors read as "not present".
	ProbeArchive(ctx context.Context, symbol string, period models.PeriodSpec, interval string) bool

	// FetchArchive downloads and decompresses the task's archive file.
	FetchArchive(ctx context.Context, symbol string, period models.PeriodSpec, interval string) ([]byte, error)

	// FetchKlines assembles the task's window from the paginated API.
	FetchKlines(ctx context.Context, symbol, interval string, startMS, endMS int64) ([]byte, error)
}

// Strategy acquires one task's bars: archive first, API fallback.
type Strategy struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// New creates a Strategy. A nil logger falls back to slog.Default.
func New(fetcher Fetcher, logger *slog.Logger) *Strategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Strategy{fetcher: fetcher, logger: logger}
}

// Acquire returns the normalized table for one task and the source that
// produced it. Any archive-path failure (probe negative, download or
// decompression error, unparseable payload) falls through to the API
// over the task's exact half-open window. API-path errors propagate
// unchanged; the scheduler owns retry and fail-on-reject policy.
func (s *Strategy) Acquire(ctx context.Context, task models.SyncTask) (models.BarTable, Source, error) {
	if s.fetcher.ProbeArchive(ctx, task.Symbol, task.Period, task.Interval) {
		raw, err := s.fetcher.FetchArchive(ctx, task.Symbol, task.Period, task.Interval)
		if err == nil {
			table, nerr := normalize.Normalize(raw)
			if nerr == nil {
				return table, SourceArchive, nil
			}
			s.logger.Warn("archive payload rejected, falling back to API",
				"task", task, "error", nerr)
		} else {
			s.logger.Warn("archive fetch failed, falling back to API",
				"task", task, "error", err)
		}
	}

	raw, err := s.fetcher.FetchKlines(ctx, task.Symbol, task.Interval,
		task.Period.StartMS(), task.Period.EndMS())
	if err != nil {
		return nil, SourceAPI, err
	}

	table, err := normalize.Normalize(raw)
	if err != nil {
		return nil, SourceAPI, err
	}
	return table, SourceAPI, nil
}
