// Command klinesync downloads Binance kline history into a local
// catalog. It decomposes a month range into periods, acquires each
// (symbol, period) pair from the bulk archive or the REST API, and
// writes one file per completed period. Reruns skip existing files, so
// an interrupted sync resumes where it stopped.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/johnayoung/go-kline-sync/internal/acquire"
	"github.com/johnayoung/go-kline-sync/internal/config"
	"github.com/johnayoung/go-kline-sync/internal/exchange"
	"github.com/johnayoung/go-kline-sync/internal/logger"
	"github.com/johnayoung/go-kline-sync/internal/models"
	"github.com/johnayoung/go-kline-sync/internal/scheduler"
	"github.com/johnayoung/go-kline-sync/internal/sink"
)

// Exit codes returned by the process.
const (
	ExitSuccess   = 0   // all tasks saved or skipped
	ExitUsage     = 1   // bad command-line usage
	ExitConfig    = 2   // invalid configuration or startup failure
	ExitData      = 4   // run completed with failed tasks
	ExitInterrupt = 130 // interrupted by SIGINT/SIGTERM
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Parse(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitUsage
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return ExitUsage
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return ExitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := exchange.NewClientWithLogger(cfg.Market, log)

	symbols, err := client.ResolveSymbols(ctx, cfg.Symbols)
	if err != nil {
		if ctx.Err() != nil {
			return ExitInterrupt
		}
		log.Error("symbol resolution failed", "error", err)
		return ExitConfig
	}

	periods, err := models.EnumeratePeriods(cfg.Start, cfg.End, cfg.Granularity)
	if err != nil {
		log.Error("period enumeration failed", "error", err)
		return ExitConfig
	}

	catalog, err := sink.NewCatalog(cfg.CatalogDir, cfg.Market, cfg.Granularity, cfg.Format, log)
	if err != nil {
		log.Error("catalog setup failed", "error", err)
		return ExitConfig
	}

	strategy := acquire.New(client, log)
	sched := scheduler.New(strategy, catalog, scheduler.Config{
		Workers:      cfg.Workers,
		FailOnReject: cfg.FailOn400,
	}, log)

	tasks := scheduler.Build(symbols, periods, cfg.Interval)
	log.Info("sync plan built",
		"market", string(cfg.Market), "symbols", len(symbols),
		"periods", len(periods), "tasks", len(tasks))

	results := sched.Run(ctx, tasks)

	if ctx.Err() != nil {
		log.Warn("sync interrupted", "completed", len(results), "planned", len(tasks))
		return ExitInterrupt
	}

	for _, r := range results {
		if r.Outcome.Status == models.StatusFailed {
			return ExitData
		}
	}
	return ExitSuccess
}
