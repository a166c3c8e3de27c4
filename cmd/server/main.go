// Package main provides the power server that runs all components together:
// - Scheduler (periodic): full recalculation every --recalc-interval
// - Watcher (continuous): programSubscribe on voter accounts, debounced recalculation
// - API: power queries, leaderboard reports, manual recalculation, metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"vsr-power-lab/internal/api"
	"vsr-power-lab/internal/app"
	"vsr-power-lab/internal/config"
	"vsr-power-lab/internal/logger"
	"vsr-power-lab/internal/orchestrator"
	"vsr-power-lab/internal/snapshot"
	"vsr-power-lab/internal/solana"
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

	fs := flag.NewFlagSet("server", flag.ExitOnError)
	cfg.RegisterFlags(fs)
	noWatch := fs.Bool("no-watch", false, "Disable the WebSocket account watcher")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateStorage(); err != nil {
		return err
	}

	log := logger.New(cfg.Verbose)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go handleSignals(cancel, done, log)

	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer stores.Close()

	in, err := app.LoadInputs(cfg, log)
	if err != nil {
		return err
	}
	if in.Registrar.IsZero() {
		return errors.New("registrar unknown: set --registrar or the registrar field of --registrar-config")
	}
	orch, err := app.NewOrchestrator(cfg, in, stores, log)
	if err != nil {
		return err
	}

	srv, err := api.NewServer(api.Config{
		Addr:          cfg.HTTPAddr,
		Registrar:     in.Registrar.String(),
		Recalculator:  orch,
		SnapshotStore: stores.Snapshots,
		MemberStore:   stores.Members,
		HistoryStore:  stores.History,
		Aliases:       in.Aliases,
		RateLimit:     cfg.APIRateLimit,
		Logger:        log,
	})
	if err != nil {
		return err
	}

	log.Info("starting power server",
		"registrar", in.Registrar.String(),
		"program", cfg.ProgramID,
		"recalc_interval", cfg.RecalcInterval,
		"http_addr", cfg.HTTPAddr,
		"use_memory", cfg.UseMemory,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	orchestrator.StartScheduler(gctx, orch, cfg.RecalcInterval, nil, log)

	switch {
	case *noWatch:
		log.Info("watcher disabled")
	case in.RPC == nil:
		log.Info("watcher disabled for file snapshots")
	case cfg.WSEndpoint == "":
		log.Info("watcher disabled: no --ws-endpoint")
	default:
		g.Go(func() error {
			return runWatcher(gctx, cfg, in, orch, stores, log)
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// runWatcher keeps a watcher subscribed, re-dialing when the subscription ends.
func runWatcher(ctx context.Context, cfg *config.Config, in *app.Inputs, r orchestrator.Runner, stores *app.Stores, log *slog.Logger) error {
	wsLog := log.With("component", "ws")
	wsCfg := solana.DefaultWSConfig()
	wsCfg.Logger = wsLog

	for {
		err := watchOnce(ctx, cfg, in, r, stores, &wsCfg, wsLog)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("watcher stopped, restarting", "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wsCfg.ReconnectDelay):
		}
	}
}

func watchOnce(ctx context.Context, cfg *config.Config, in *app.Inputs, r orchestrator.Runner, stores *app.Stores, wsCfg *solana.WSClientConfig, log *slog.Logger) error {
	ws, err := solana.NewWSClient(ctx, cfg.WSEndpoint, wsCfg)
	if err != nil {
		return fmt.Errorf("create websocket client: %w", err)
	}
	defer ws.Close()

	w, err := orchestrator.NewWatcher(orchestrator.WatcherConfig{
		WS:            ws,
		Runner:        r,
		ProgramID:     in.ProgramID.String(),
		Filter:        snapshot.VoterFilter(in.Registrar),
		Debounce:      cfg.WatchDebounce,
		ProgressStore: stores.Progress,
		Registrar:     in.Registrar.String(),
		Logger:        log,
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// handleSignals cancels on the first signal and exits on the second or
// when graceful shutdown takes longer than 30s.
func handleSignals(cancel context.CancelFunc, done <-chan struct{}, log *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received signal, initiating graceful shutdown", "signal", sig.String())
		cancel()
	case <-done:
		return
	}

	select {
	case sig := <-sigCh:
		log.Warn("received second signal, forcing immediate shutdown", "signal", sig.String())
		os.Exit(1)
	case <-time.After(30 * time.Second):
		log.Error("graceful shutdown timed out after 30s, forcing exit")
		os.Exit(1)
	case <-done:
	}
}
