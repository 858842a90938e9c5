// Package server exposes the operational HTTP surface: health, per-source
// sync status, and on-demand run triggers.
package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/oarkflow/log"

	"github.com/citypulse/ingest/pkg/adapters"
	"github.com/citypulse/ingest/pkg/contracts"
	"github.com/citypulse/ingest/pkg/models"
	"github.com/citypulse/ingest/pkg/scheduler"
)

type Server struct {
	app    *fiber.App
	store  contracts.Store
	sched  *scheduler.Scheduler
	queue  contracts.Queue
	logger *log.Logger
}

// New builds the API. queue may be nil; without one, run triggers execute
// in-process instead of being handed to a worker.
func New(store contracts.Store, sched *scheduler.Scheduler, queue contracts.Queue, logger *log.Logger) *Server {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "citypulse-ingest",
			DisableStartupMessage: true,
		}),
		store:  store,
		sched:  sched,
		queue:  queue,
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.health)
	s.app.Get("/sources", s.listSources)
	s.app.Post("/sources/:name/run", s.triggerRun)
	s.app.Get("/runs/summary", s.runSummary)
}

func (s *Server) Listen(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("status API listening")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "time": time.Now().UTC()})
}

// listSources returns the tracking row for every source that has run at
// least once.
func (s *Server) listSources(c *fiber.Ctx) error {
	syncs, err := s.store.ListTracking(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if syncs == nil {
		syncs = []models.SourceSync{}
	}
	return c.JSON(syncs)
}

// triggerRun kicks off one source. With a queue attached the job is
// enqueued for a worker; otherwise it runs in-process in the background
// and the caller polls /sources for the outcome.
func (s *Server) triggerRun(c *fiber.Ctx) error {
	name := c.Params("name")
	known := false
	for _, n := range adapters.Names() {
		if n == name {
			known = true
			break
		}
	}
	if !known {
		return fiber.NewError(fiber.StatusNotFound, "unknown source "+name)
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(c.Context(), name); err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"source": name, "status": "queued"})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()
		result := s.sched.RunSource(ctx, name)
		s.logger.Info().Str("source", name).Msg(result.String())
	}()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"source": name, "status": "started"})
}

// runSummary aggregates the tracking rows into one batch-level view.
func (s *Server) runSummary(c *fiber.Ctx) error {
	syncs, err := s.store.ListTracking(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	summary := fiber.Map{"sources": len(syncs)}
	found, newCount, updated, failures := 0, 0, 0, 0
	var lastRun time.Time
	for _, sync := range syncs {
		found += sync.Found
		newCount += sync.New
		updated += sync.Updated
		if sync.Status == models.SyncFailed {
			failures++
		}
		if sync.LastRunAt.After(lastRun) {
			lastRun = sync.LastRunAt
		}
	}
	summary["events_found"] = found
	summary["events_new"] = newCount
	summary["events_updated"] = updated
	summary["failed_sources"] = failures
	if !lastRun.IsZero() {
		summary["last_run_at"] = lastRun
	}
	return c.JSON(summary)
}
