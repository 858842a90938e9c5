package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/oarkflow/log"
	"github.com/oarkflow/xid"

	"github.com/citypulse/ingest/pkg/contracts"
	"github.com/citypulse/ingest/pkg/models"
)

// Runner drives one adapter through fetch -> transform -> load and
// aggregates a RunResult. A fetch failure is run-fatal; transform and
// load failures are isolated per item. Run never returns an error: fatal
// failures surface through RunResult.Error.
type Runner struct {
	adapter    contracts.Adapter
	loader     *Loader
	logger     *log.Logger
	timeout    time.Duration
	userAgent  string
	windowDays int
}

type Option func(*Runner)

func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

func WithUserAgent(ua string) Option {
	return func(r *Runner) { r.userAgent = ua }
}

func WithWindowDays(days int) Option {
	return func(r *Runner) { r.windowDays = days }
}

func WithLogger(logger *log.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

func NewRunner(adapter contracts.Adapter, store contracts.Store, dryRun bool, opts ...Option) *Runner {
	r := &Runner{
		adapter:    adapter,
		logger:     &log.DefaultLogger,
		timeout:    30 * time.Second,
		userAgent:  "citypulse-ingest/1.0",
		windowDays: 30,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.loader = NewLoader(store, dryRun, r.logger)
	return r
}

func (r *Runner) Source() models.Source {
	return r.adapter.Source()
}

// Run executes the full pipeline once. The HTTP client is scoped to this
// run and released on every exit path.
func (r *Runner) Run(ctx context.Context) models.RunResult {
	started := time.Now().UTC()
	source := r.adapter.Source()
	runID := xid.New().String()
	r.logger.Info().Str("source", string(source)).Str("run_id", runID).Msg("starting fetch")

	client := &http.Client{
		Timeout:   r.timeout,
		Transport: &userAgentTransport{agent: r.userAgent},
	}
	defer client.CloseIdleConnections()

	window := contracts.WindowFrom(started, r.windowDays)
	raw, err := r.adapter.Fetch(ctx, client, window)
	if err != nil {
		r.logger.Error().Err(err).Str("source", string(source)).Msg("fetch failed")
		return models.RunResult{
			RunID:       runID,
			Source:      source,
			StartedAt:   started,
			CompletedAt: time.Now().UTC(),
			Error:       err.Error(),
		}
	}
	found := len(raw)
	r.logger.Info().Str("source", string(source)).Int("found", found).Msg("fetched raw events")

	var events []*models.Event
	skipped, defects := 0, 0
	for _, item := range raw {
		ev, err := r.transform(item)
		if err != nil {
			if errors.Is(err, contracts.ErrSkip) {
				skipped++
				r.logger.Debug().Str("source", string(source)).Err(err).Msg("skipped during transform")
			} else {
				defects++
				r.logger.Warn().Str("source", string(source)).Err(err).Msg("transform failed")
			}
			continue
		}
		if err := ev.Validate(); err != nil {
			defects++
			r.logger.Warn().Str("source", string(source)).Err(err).Msg("transformed event invalid")
			continue
		}
		events = append(events, ev)
	}
	r.logger.Info().Str("source", string(source)).Int("transformed", len(events)).
		Int("skipped", skipped).Int("failed", defects).Msg("transform complete")

	newCount, updatedCount, loadFailed := r.loader.Load(ctx, events)

	result := models.RunResult{
		RunID:       runID,
		Source:      source,
		Found:       found,
		New:         newCount,
		Updated:     updatedCount,
		Failed:      defects + loadFailed,
		Skipped:     skipped,
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
	}
	r.logger.Info().Str("source", string(source)).Msg(result.String())
	return result
}

// transform shields the loop from adapter defects: a panic on one raw
// item becomes a counted per-item failure.
func (r *Runner) transform(item contracts.Record) (ev *models.Event, err error) {
	defer func() {
		if p := recover(); p != nil {
			ev = nil
			err = fmt.Errorf("transform panic: %v", p)
		}
	}()
	return r.adapter.Transform(item)
}

type userAgentTransport struct {
	agent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.agent)
	}
	return http.DefaultTransport.RoundTrip(req)
}
