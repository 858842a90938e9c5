// Command ingest runs the event ingestion pipeline: on demand for one or
// all sources, on cron schedules, or as a queue worker.
//
//	ingest run <source|all> [--dry-run] [--verbose] [--config path]
//	ingest schedule [--serve] [--verbose] [--config path]
//	ingest worker [--verbose] [--config path]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/oarkflow/log"

	"github.com/citypulse/ingest/pkg/adapters"
	"github.com/citypulse/ingest/pkg/config"
	"github.com/citypulse/ingest/pkg/contracts"
	"github.com/citypulse/ingest/pkg/models"
	"github.com/citypulse/ingest/pkg/queue"
	"github.com/citypulse/ingest/pkg/scheduler"
	"github.com/citypulse/ingest/pkg/server"
	"github.com/citypulse/ingest/pkg/storage"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 1
	}
	switch args[0] {
	case "run":
		return cmdRun(args[1:])
	case "schedule":
		return cmdSchedule(args[1:])
	case "worker":
		return cmdWorker(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		usage()
		return 1
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  ingest run <source|all> [--dry-run] [--verbose] [--config path]")
	fmt.Fprintln(os.Stderr, "  ingest schedule [--serve] [--verbose] [--config path]")
	fmt.Fprintln(os.Stderr, "  ingest worker [--verbose] [--config path]")
	fmt.Fprintf(os.Stderr, "sources: %v\n", adapters.Names())
}

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "report what would be written without writing")
	verbose := fs.Bool("verbose", false, "debug logging")
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "run: expected exactly one source name or \"all\"")
		return 1
	}
	target := fs.Arg(0)

	logger := newLogger(*verbose)
	cfg, store, ok := setup(*configPath, logger)
	if !ok {
		return 1
	}
	defer store.Close()

	sched := scheduler.New(cfg, store, *dryRun, logger)
	ctx, cancel := signalContext()
	defer cancel()

	var results []models.RunResult
	if target == "all" {
		results = sched.RunAll(ctx)
	} else {
		results = append(results, sched.RunSource(ctx, target))
	}
	return summarize(results)
}

func cmdSchedule(args []string) int {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	serve := fs.Bool("serve", false, "also expose the status API")
	verbose := fs.Bool("verbose", false, "debug logging")
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	logger := newLogger(*verbose)
	cfg, store, ok := setup(*configPath, logger)
	if !ok {
		return 1
	}
	defer store.Close()

	sched := scheduler.New(cfg, store, false, logger)
	ctx, cancel := signalContext()
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("starting scheduler failed")
		return 1
	}
	defer sched.Stop()

	if *serve {
		var q *queue.AMQP
		if cfg.Queue.URL != "" {
			var err error
			q, err = queue.Dial(cfg.Queue.URL, cfg.Queue.Name, logger)
			if err != nil {
				logger.Error().Err(err).Msg("connecting to queue failed")
				return 1
			}
			defer q.Close()
		}
		var jobs contracts.Queue
		if q != nil {
			jobs = q
		}
		api := server.New(store, sched, jobs, logger)
		go func() {
			<-ctx.Done()
			api.Shutdown()
		}()
		if err := api.Listen(cfg.Listen); err != nil {
			logger.Error().Err(err).Msg("status API failed")
			return 1
		}
		return 0
	}

	logger.Info().Msg("scheduler running, ctrl-c to stop")
	<-ctx.Done()
	return 0
}

func cmdWorker(args []string) int {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "debug logging")
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	logger := newLogger(*verbose)
	cfg, store, ok := setup(*configPath, logger)
	if !ok {
		return 1
	}
	defer store.Close()

	if cfg.Queue.URL == "" {
		logger.Error().Msg("worker mode needs a queue URL (queue.url or INGEST_QUEUE_URL)")
		return 1
	}
	q, err := queue.Dial(cfg.Queue.URL, cfg.Queue.Name, logger)
	if err != nil {
		logger.Error().Err(err).Msg("connecting to queue failed")
		return 1
	}
	defer q.Close()

	sched := scheduler.New(cfg, store, false, logger)
	ctx, cancel := signalContext()
	defer cancel()

	logger.Info().Str("queue", cfg.Queue.Name).Msg("worker consuming jobs")
	err = q.Consume(ctx, func(ctx context.Context, job string) error {
		result := sched.RunSource(ctx, job)
		if !result.OK() {
			return fmt.Errorf("run %s: %s", job, result.Error)
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("worker stopped")
		return 1
	}
	return 0
}

func setup(configPath string, logger *log.Logger) (*config.Config, *storage.Postgres, bool) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg = config.Default()
	}
	if err != nil {
		logger.Error().Err(err).Msg("loading configuration failed")
		return nil, nil, false
	}

	store, err := storage.NewPostgres(cfg.Database)
	if err != nil {
		logger.Error().Err(err).Msg("connecting to database failed")
		return nil, nil, false
	}
	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		logger.Error().Err(err).Msg("migrating schema failed")
		return nil, nil, false
	}
	return cfg, store, true
}

func newLogger(verbose bool) *log.Logger {
	logger := log.DefaultLogger
	logger.Level = log.InfoLevel
	if verbose {
		logger.Level = log.DebugLevel
	}
	return &logger
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// summarize prints the batch outcome and returns the process exit code:
// zero only when every source succeeded.
func summarize(results []models.RunResult) int {
	fmt.Println()
	fmt.Println("=== Ingestion Summary ===")
	failed := 0
	for _, r := range results {
		fmt.Println(r.String())
		if !r.OK() {
			failed++
		}
	}
	fmt.Printf("%d/%d sources succeeded\n", len(results)-failed, len(results))
	if failed > 0 {
		return 1
	}
	return 0
}
