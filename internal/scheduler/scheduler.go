// Package scheduler plans and executes a sync run: it expands symbols
// and periods into a task list and drives a bounded worker pool over
// it. Task failures are isolated per task; only context cancellation or
// an explicit fail-on-reject policy stops the run early.
package scheduler

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/johnayoung/go-kline-sync/internal/acquire"
	serrors "github.com/johnayoung/go-kline-sync/internal/errors"
	"github.com/johnayoung/go-kline-sync/internal/models"
)

// heartbeatInterval is how often the run logs progress counters.
const heartbeatInterval = 30 * time.Second

// Acquirer produces one task's normalized table. The acquire.Strategy
// satisfies it; tests substitute fakes.
type Acquirer interface {
	Acquire(ctx context.Context, task models.SyncTask) (models.BarTable, acquire.Source, error)
}

// Sink persists tables and reports which outputs already exist. The
// sink.Catalog satisfies it.
type Sink interface {
	Exists(symbol string, period models.PeriodSpec, interval string) (bool, error)
	Write(symbol string, period models.PeriodSpec, interval string, table models.BarTable) error
}

// Config holds the run-level scheduler knobs.
type Config struct {
	// Workers is the number of concurrent task workers.
	Workers int

	// MaxAttempts bounds task-level retries of transient failures. Other
	// failure classes never retry.
	MaxAttempts int

	// RetryDelay is the base delay between task-level retries; the actual
	// delay doubles per attempt.
	RetryDelay time.Duration

	// FailOnReject aborts the whole run when the provider rejects a
	// request as malformed, instead of failing just that task. Useful for
	// surfacing bad symbol or interval arguments immediately.
	FailOnReject bool
}

// DefaultConfig returns the scheduler defaults used by the CLI.
func DefaultConfig() Config {
	return Config{
		Workers:     runtime.NumCPU(),
		MaxAttempts: 3,
		RetryDelay:  2 * time.Second,
	}
}

// Result pairs a task with its terminal outcome.
type Result struct {
	Task     models.SyncTask
	Outcome  models.TaskOutcome
	Source   acquire.Source
	Duration time.Duration
}

// Scheduler executes sync runs.
type Scheduler struct {
	acquirer Acquirer
	sink     Sink
	cfg      Config
	logger   *slog.Logger
}

// New creates a Scheduler. Non-positive Workers or MaxAttempts fall
// back to the defaults; a nil logger falls back to slog.Default.
func New(acquirer Acquirer, sink Sink, cfg Config, logger *slog.Logger) *Scheduler {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{acquirer: acquirer, sink: sink, cfg: cfg, logger: logger}
}

// Build expands the symbol and period lists into the full ordered task
// list, symbol-major: all periods of the first symbol, then the next.
// Each task gets a run-scoped ID for log correlation.
func Build(symbols []string, periods []models.PeriodSpec, interval string) []models.SyncTask {
	tasks := make([]models.SyncTask, 0, len(symbols)*len(periods))
	for _, sym := range symbols {
		for _, p := range periods {
			tasks = append(tasks, models.SyncTask{
				ID:       uuid.NewString(),
				Symbol:   sym,
				Period:   p,
				Interval: interval,
			})
		}
	}
	return tasks
}

// Run executes the task list and returns one Result per task, in
// completion order. Cancellation of ctx stops dispatching new tasks;
// in-flight tasks finish or abort on their own context checks. Tasks
// never started after cancellation are simply absent from the results.
func (s *Scheduler) Run(ctx context.Context, tasks []models.SyncTask) []Result {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	s.logger.Info("sync run starting",
		"tasks", len(tasks), "workers", s.cfg.Workers)

	taskCh := make(chan models.SyncTask)
	resultCh := make(chan Result)

	go func() {
		defer close(taskCh)
		for _, t := range tasks {
			if runCtx.Err() != nil {
				return
			}
			select {
			case taskCh <- t:
			case <-runCtx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				res := s.runTask(runCtx, task)
				if s.cfg.FailOnReject && serrors.IsClientRejected(res.Outcome.Err) {
					s.logger.Error("provider rejected request, aborting run",
						"task", task, "error", res.Outcome.Err)
					cancel()
				}
				resultCh <- res
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var done atomic.Int64
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	results := make([]Result, 0, len(tasks))
	for {
		select {
		case res, ok := <-resultCh:
			if !ok {
				s.summarize(results, time.Since(start))
				return results
			}
			done.Add(1)
			results = append(results, res)
		case <-heartbeat.C:
			s.logger.Info("sync run progress",
				"done", done.Load(), "total", len(tasks))
		}
	}
}

// runTask drives one task to a terminal outcome. Only transient errors
// retry, up to MaxAttempts; format errors, provider rejections, and
// archive errors that already fell back are final on first occurrence.
func (s *Scheduler) runTask(ctx context.Context, task models.SyncTask) Result {
	start := time.Now()
	log := s.logger.With("task_id", task.ID, "symbol", task.Symbol,
		"period", task.Period.String())

	exists, err := s.sink.Exists(task.Symbol, task.Period, task.Interval)
	if err != nil {
		log.Error("catalog check failed", "error", err)
		return Result{Task: task, Outcome: models.Failed(err), Duration: time.Since(start)}
	}
	if exists {
		log.Debug("output present, skipping")
		return Result{Task: task, Outcome: models.Skipped(), Duration: time.Since(start)}
	}

	var (
		table  models.BarTable
		source acquire.Source
	)
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		table, source, err = s.acquirer.Acquire(ctx, task)
		if err == nil || !serrors.IsTransient(err) {
			break
		}
		if attempt == s.cfg.MaxAttempts {
			break
		}
		delay := s.cfg.RetryDelay << (attempt - 1)
		log.Warn("transient failure, retrying",
			"attempt", attempt, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			err = ctx.Err()
			attempt = s.cfg.MaxAttempts
		}
	}

	if err != nil {
		if serrors.IsEmptyResult(err) {
			log.Warn("no data for period")
			return Result{Task: task, Outcome: models.SkippedEmpty(),
				Source: source, Duration: time.Since(start)}
		}
		log.Error("task failed", "source", source.String(), "error", err)
		return Result{Task: task, Outcome: models.Failed(err),
			Source: source, Duration: time.Since(start)}
	}

	if err := s.sink.Write(task.Symbol, task.Period, task.Interval, table); err != nil {
		log.Error("write failed", "error", err)
		return Result{Task: task, Outcome: models.Failed(err),
			Source: source, Duration: time.Since(start)}
	}

	log.Info("task complete", "source", source.String(), "rows", len(table),
		"duration", time.Since(start))
	return Result{Task: task, Outcome: models.Saved(len(table)),
		Source: source, Duration: time.Since(start)}
}

func (s *Scheduler) summarize(results []Result, elapsed time.Duration) {
	var saved, skipped, empty, failed int
	for _, r := range results {
		switch r.Outcome.Status {
		case models.StatusSaved:
			saved++
		case models.StatusSkipped:
			skipped++
		case models.StatusSkippedEmpty:
			empty++
		case models.StatusFailed:
			failed++
		}
	}
	s.logger.Info("sync run finished",
		"saved", saved, "skipped", skipped, "empty", empty,
		"failed", failed, "elapsed", elapsed.Round(time.Millisecond))
}
