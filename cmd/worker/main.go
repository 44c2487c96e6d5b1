// Package main is the entry point for the pharmaflow background worker:
// outbox relay, expiry marking and cleanup of idempotency keys.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pharmaflow/internal/app"
	"pharmaflow/internal/config"
	"pharmaflow/pkg/logger"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before reading the environment")
	once := flag.String("once", "", "run the named job once and exit")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	log = log.WithComponent("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	if err := run(ctx, cfg, log, *once); err != nil {
		log.Fatalw("worker failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, once string) error {
	if cfg.Storage.Driver != config.DriverPostgres {
		return fmt.Errorf("worker needs the postgres driver, got %q", cfg.Storage.Driver)
	}

	st, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	locker, closeLocker, err := app.NewLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	authz, err := app.NewAuthorizer(cfg)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}

	svcs := app.NewServices(st, locker, authz, cfg, app.Options{})
	jobs := app.Jobs(st, svcs, cfg)

	sched, err := app.Schedule(ctx, log, jobs)
	if err != nil {
		return err
	}

	if once != "" {
		for _, job := range jobs {
			if job.Name == once {
				return sched.RunNow(job)
			}
		}
		return fmt.Errorf("unknown job %q", once)
	}

	sched.Start()
	log.Infow("worker started", "jobs", len(jobs))
	<-ctx.Done()

	log.Info("shutting down worker...")
	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		return err
	}
	st.Pool.LogStats(stopCtx)
	log.Info("worker stopped")
	return nil
}
