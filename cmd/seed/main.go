// Package main provides a CLI tool for seeding master data and issuing
// development tokens.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"pharmaflow/internal/app"
	"pharmaflow/internal/config"
	appctx "pharmaflow/internal/core/context"
	"pharmaflow/internal/core/security"
	"pharmaflow/internal/domain/auth"
	"pharmaflow/pkg/logger"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before reading the environment")
	seedFile := flag.String("file", "configs/seed.yaml", "YAML file with products and warehouses")
	migration := flag.String("migrate", "", "SQL file to execute before seeding")
	tokenFor := flag.String("token", "", "print a development access token for this user id and exit")
	perms := flag.String("perms", "", "comma-separated resource:action permissions for -token; empty means admin")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.App.LogLevel, Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	ctx := logger.WithLogger(context.Background(), log)

	if *tokenFor != "" {
		if err := printToken(cfg, *tokenFor, *perms); err != nil {
			log.Fatalw("failed to issue token", "error", err)
		}
		return
	}

	if err := seed(ctx, cfg, log, *seedFile, *migration); err != nil {
		log.Fatalw("seeding failed", "error", err)
	}
	log.Info("seeding completed successfully")
}

func seed(ctx context.Context, cfg *config.Config, log *logger.Logger, seedFile, migration string) error {
	if cfg.Storage.Driver != config.DriverPostgres {
		return fmt.Errorf("seed needs the postgres driver; start the server with -seed for %q", cfg.Storage.Driver)
	}

	st, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if migration != "" {
		sql, err := os.ReadFile(migration)
		if err != nil {
			return fmt.Errorf("read migration: %w", err)
		}
		if _, err := st.Pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", migration, err)
		}
		log.Infow("migration applied", "file", migration)
	}

	data, err := app.LoadSeed(seedFile)
	if err != nil {
		return err
	}
	res, err := data.Apply(security.WithSystemActor(ctx), st)
	if err != nil {
		return err
	}
	log.Infow("master data seeded",
		"products", res.Products,
		"warehouses", res.Warehouses,
		"skipped", res.Skipped,
	)
	return nil
}

func printToken(cfg *config.Config, userID, perms string) error {
	user := appctx.UserContext{UserID: userID, IsAdmin: perms == ""}
	if perms != "" {
		for _, p := range strings.Split(perms, ",") {
			if p = strings.TrimSpace(p); p != "" {
				user.Permissions = append(user.Permissions, p)
			}
		}
	}

	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer))
	token, expires, err := jwtService.GenerateAccessToken(user)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expires.Format("2006-01-02 15:04:05 MST"))
	return nil
}
