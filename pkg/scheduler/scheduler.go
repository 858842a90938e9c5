// Package scheduler runs adapter pipelines on cron schedules and on
// demand. Each source runs under a file lock so an on-demand run and a
// scheduled run of the same source never overlap, and a failing source
// never blocks the others.
package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/oarkflow/log"
	"github.com/robfig/cron/v3"

	"github.com/citypulse/ingest/pkg/adapters"
	"github.com/citypulse/ingest/pkg/config"
	"github.com/citypulse/ingest/pkg/contracts"
	"github.com/citypulse/ingest/pkg/models"
	"github.com/citypulse/ingest/pkg/scraper"
)

type Scheduler struct {
	cfg    *config.Config
	store  contracts.Store
	logger *log.Logger
	cron   *cron.Cron
	dryRun bool
}

func New(cfg *config.Config, store contracts.Store, dryRun bool, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	return &Scheduler{
		cfg:    cfg,
		store:  store,
		logger: logger,
		cron:   cron.New(),
		dryRun: dryRun,
	}
}

// Start registers every enabled source on its cron schedule and starts
// the cron loop. It returns immediately; Stop drains in-flight runs.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, name := range adapters.Names() {
		src := s.cfg.Sources[name]
		if !src.IsEnabled() {
			s.logger.Info().Str("source", name).Msg("source disabled, not scheduling")
			continue
		}
		name := name
		if _, err := s.cron.AddFunc(src.Schedule, func() {
			s.RunSource(ctx, name)
		}); err != nil {
			return fmt.Errorf("scheduling %s (%q): %w", name, src.Schedule, err)
		}
		s.logger.Info().Str("source", name).Str("schedule", src.Schedule).Msg("source scheduled")
	}
	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for any running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunSource executes one source pipeline with bounded retries. Transport
// failures are retried with a fixed delay; configuration failures are
// not, since they cannot succeed until the configuration changes. The
// tracking row is updated whatever the outcome.
func (s *Scheduler) RunSource(ctx context.Context, name string) models.RunResult {
	runner, err := s.runner(name)
	if err != nil {
		return s.track(ctx, failedResult(name, err))
	}

	lock := flock.New(filepath.Join(s.cfg.LockDir, "ingest-"+name+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return s.track(ctx, failedResult(name, fmt.Errorf("acquiring lock: %w", err)))
	}
	if !locked {
		s.logger.Warn().Str("source", name).Msg("previous run still holds the lock, skipping")
		return failedResult(name, fmt.Errorf("source %s is already running", name))
	}
	defer lock.Unlock()

	var result models.RunResult
	for attempt := 1; attempt <= s.cfg.Retry.Attempts; attempt++ {
		result = runner.Run(ctx)
		if result.OK() {
			break
		}
		if contracts.IsConfigError(result.Error) {
			s.logger.Error().Str("source", name).Str("error", result.Error).
				Msg("configuration error, not retrying")
			break
		}
		if attempt == s.cfg.Retry.Attempts {
			s.logger.Error().Str("source", name).Int("attempts", attempt).
				Str("error", result.Error).Msg("run failed, retries exhausted")
			break
		}
		s.logger.Warn().Str("source", name).Int("attempt", attempt).
			Str("error", result.Error).Msg("run failed, retrying after delay")
		select {
		case <-time.After(s.cfg.Retry.Delay()):
		case <-ctx.Done():
			result.Error = ctx.Err().Error()
			return s.track(ctx, result)
		}
	}
	return s.track(ctx, result)
}

// RunAll runs every enabled source sequentially. A failure in one source
// is recorded in its result and the batch moves on.
func (s *Scheduler) RunAll(ctx context.Context) []models.RunResult {
	var results []models.RunResult
	for _, name := range adapters.Names() {
		if !s.cfg.Sources[name].IsEnabled() {
			continue
		}
		results = append(results, s.RunSource(ctx, name))
	}
	return results
}

func (s *Scheduler) runner(name string) (*scraper.Runner, error) {
	adapter, err := adapters.Build(name, s.cfg, s.logger)
	if err != nil {
		return nil, err
	}
	return scraper.NewRunner(adapter, s.store, s.dryRun,
		scraper.WithTimeout(s.cfg.Scrape.Timeout()),
		scraper.WithUserAgent(s.cfg.Scrape.UserAgent),
		scraper.WithWindowDays(s.cfg.Scrape.WindowDays),
		scraper.WithLogger(s.logger),
	), nil
}

// track upserts the source tracking row; a tracking failure is logged
// but never alters the run outcome.
func (s *Scheduler) track(ctx context.Context, result models.RunResult) models.RunResult {
	if err := s.store.UpsertTracking(ctx, models.SyncFromResult(result)); err != nil {
		s.logger.Error().Err(err).Str("source", string(result.Source)).
			Msg("updating tracking row failed")
	}
	return result
}

func failedResult(name string, err error) models.RunResult {
	now := time.Now().UTC()
	return models.RunResult{
		Source:      models.Source(name),
		StartedAt:   now,
		CompletedAt: now,
		Error:       err.Error(),
	}
}
