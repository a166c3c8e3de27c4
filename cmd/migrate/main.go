// Package main applies database schema migrations.
//
// Usage:
//
//	migrate [--target postgres|clickhouse|all] [up|down|status|version|reset]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"vsr-power-lab/internal/config"
	"vsr-power-lab/internal/logger"
	"vsr-power-lab/internal/storage/migrations"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string (or set POSTGRES_DSN)")
	fs.StringVar(&cfg.ClickHouseDSN, "clickhouse-dsn", cfg.ClickHouseDSN, "ClickHouse connection string (or set CLICKHOUSE_DSN)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable verbose (debug) logging")
	target := fs.String("target", "all", "Database to migrate: postgres, clickhouse or all")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	name := "up"
	if fs.NArg() > 0 {
		name = fs.Arg(0)
	}
	cmd, err := migrations.ParseCommand(name)
	if err != nil {
		return err
	}

	log := logger.New(cfg.Verbose)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *target {
	case "postgres", "clickhouse", "all":
	default:
		return fmt.Errorf("unknown target %q", *target)
	}

	if *target != "clickhouse" {
		if cfg.PostgresDSN == "" {
			return fmt.Errorf("--postgres-dsn is required for target %s", *target)
		}
		if err := migrations.RunPostgres(ctx, log.With("db", "postgres"), cfg.PostgresDSN, cmd); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if *target != "postgres" {
		if cfg.ClickHouseDSN == "" {
			if *target == "clickhouse" {
				return fmt.Errorf("--clickhouse-dsn is required for target clickhouse")
			}
			log.Info("skipping clickhouse: no DSN configured")
			return nil
		}
		if err := migrations.RunClickhouse(ctx, log.With("db", "clickhouse"), cfg.ClickHouseDSN, cmd); err != nil {
			return fmt.Errorf("clickhouse: %w", err)
		}
	}
	return nil
}
