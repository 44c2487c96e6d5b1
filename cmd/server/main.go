// Package main is the entry point for the pharmaflow API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pharmaflow/internal/app"
	"pharmaflow/internal/config"
	"pharmaflow/internal/core/security"
	"pharmaflow/internal/domain/auth"
	v1 "pharmaflow/internal/infrastructure/http/v1"
	"pharmaflow/pkg/logger"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before reading the environment")
	seedFile := flag.String("seed", "", "YAML master data to load at startup (memory driver)")
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	if err := run(ctx, cfg, log, *seedFile); err != nil {
		log.Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, seedFile string) error {
	log.Infow("starting pharmaflow server", "env", cfg.App.Env, "storage", cfg.Storage.Driver)

	// --- Storage ---
	st, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	if seedFile != "" {
		seed, err := app.LoadSeed(seedFile)
		if err != nil {
			return err
		}
		res, err := seed.Apply(security.WithSystemActor(ctx), st)
		if err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
		log.Infow("seed applied", "products", res.Products, "warehouses", res.Warehouses, "skipped", res.Skipped)
	}

	// --- Locks and authorization ---
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
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer))

	// The worker cannot reach an in-process store, so the server runs its jobs.
	if st.Memory != nil {
		sched, err := app.Schedule(ctx, log, app.Jobs(st, svcs, cfg))
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
			defer cancel()
			_ = sched.Stop(stopCtx)
		}()
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:        log,
		JWTValidator:  jwtService,
		Authorizer:    authz,
		Idempotency:   st.Idempotency,
		Health:        st,
		StorageDriver: st.Driver,
		QC:            svcs.QC,
		Approvals:     svcs.Approvals,
		Inventory:     svcs.Inventory,
		Products:      svcs.Products,
		Warehouses:    svcs.Warehouses,
		Debug:         cfg.App.Development(),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("server listening", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// --- Graceful shutdown ---
	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
