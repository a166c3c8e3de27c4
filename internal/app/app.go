// Package app wires configuration into the components shared by the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"vsr-power-lab/internal/authority"
	"vsr-power-lab/internal/config"
	"vsr-power-lab/internal/domain"
	"vsr-power-lab/internal/orchestrator"
	"vsr-power-lab/internal/power"
	"vsr-power-lab/internal/snapshot"
	"vsr-power-lab/internal/solana"
	"vsr-power-lab/internal/storage"
	chstore "vsr-power-lab/internal/storage/clickhouse"
	"vsr-power-lab/internal/storage/memory"
	pgstore "vsr-power-lab/internal/storage/postgres"
)

// Stores holds the storage implementations selected by config.
type Stores struct {
	Snapshots storage.SnapshotStore
	Members   storage.MemberPowerStore
	History   storage.PowerHistoryStore // nil when no history backend is configured
	Progress  storage.WatchProgressStore

	close func()
}

// Close releases database connections.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStores creates in-memory stores or connects to PostgreSQL and,
// when a DSN is set, ClickHouse.
func OpenStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Stores, error) {
	if cfg.UseMemory {
		snaps := memory.NewSnapshotStore()
		return &Stores{
			Snapshots: snaps,
			Members:   snaps,
			History:   memory.NewPowerHistoryStore(),
			Progress:  memory.NewWatchProgressStore(),
		}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	snaps := pgstore.NewSnapshotStore(pool)
	stores := &Stores{
		Snapshots: snaps,
		Members:   snaps,
		Progress:  pgstore.NewWatchProgressStore(pool),
		close:     pool.Close,
	}

	if cfg.ClickHouseDSN == "" {
		log.Info("clickhouse not configured, power history disabled")
		return stores, nil
	}
	conn, err := chstore.NewConn(ctx, cfg.ClickHouseDSN)
	if err != nil {
		pool.Close()
		return nil, err
	}
	stores.History = chstore.NewPowerHistoryStore(conn)
	stores.close = func() {
		_ = conn.Close()
		pool.Close()
	}
	return stores, nil
}

// Inputs are the resolved computation inputs.
type Inputs struct {
	Source         snapshot.Source
	RPC            *snapshot.RPCSource // nil for file sources
	ProgramID      domain.PubKey
	Registrar      domain.PubKey
	Mint           domain.PubKey
	ConfigOverride *domain.RegistrarConfig
	Aliases        *authority.Table
}

// LoadInputs builds the snapshot source and loads the optional registrar
// config and alias table files.
func LoadInputs(cfg *config.Config, log *slog.Logger) (*Inputs, error) {
	programID, err := config.PubKey(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}
	registrar, err := config.PubKey(cfg.Registrar)
	if err != nil {
		return nil, fmt.Errorf("registrar: %w", err)
	}
	mint, err := config.PubKey(cfg.GoverningMint)
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}

	in := &Inputs{ProgramID: programID, Registrar: registrar, Mint: mint}

	if cfg.AccountsFile != "" {
		in.Source = snapshot.NewFileSource(cfg.AccountsFile, programID)
		log.Info("using account snapshot file", "path", cfg.AccountsFile)
	} else {
		rpc := solana.NewHTTPClient(cfg.RPCEndpoint, solana.WithRateLimit(cfg.RPCRateLimit))
		in.RPC = snapshot.NewRPCSource(rpc, programID, registrar, log)
		in.Source = in.RPC
	}

	if cfg.RegistrarConfigFile != "" {
		rc, err := snapshot.LoadRegistrarConfig(cfg.RegistrarConfigFile)
		if err != nil {
			return nil, err
		}
		if rc.Registrar.IsZero() {
			rc.Registrar = registrar
		}
		if in.Registrar.IsZero() {
			in.Registrar = rc.Registrar
		}
		in.ConfigOverride = &rc
	}

	if cfg.AliasTableFile != "" {
		table, err := authority.LoadTable(cfg.AliasTableFile)
		if err != nil {
			return nil, err
		}
		in.Aliases = table
		log.Info("loaded alias table", "aliases", table.Len())
	}
	return in, nil
}

// NewEngine builds the power engine from config.
func NewEngine(cfg *config.Config, programID domain.PubKey, log *slog.Logger) *power.Engine {
	return power.New(power.Options{
		ProgramID:          programID,
		PlaceholderAmounts: cfg.PlaceholderAmounts,
		Workers:            cfg.Workers,
		Logger:             log,
	})
}

// NewClock returns a clock frozen at the configured evaluation timestamp,
// or the real clock.
func NewClock(cfg *config.Config) clockwork.Clock {
	if cfg.EvalTimestamp > 0 {
		return clockwork.NewFakeClockAt(time.Unix(cfg.EvalTimestamp, 0).UTC())
	}
	return clockwork.NewRealClock()
}

// NewOrchestrator wires inputs, engine and stores into an orchestrator.
// stores may be nil for a compute-only run.
func NewOrchestrator(cfg *config.Config, in *Inputs, stores *Stores, log *slog.Logger) (*orchestrator.Orchestrator, error) {
	opts := orchestrator.Options{
		Source:         in.Source,
		Engine:         NewEngine(cfg, in.ProgramID, log),
		Aliases:        in.Aliases,
		ConfigOverride: in.ConfigOverride,
		Mint:           in.Mint,
		Registrar:      in.Registrar,
		Clock:          NewClock(cfg),
		Logger:         log,
	}
	if stores != nil {
		opts.SnapshotStore = stores.Snapshots
		opts.HistoryStore = stores.History
		opts.ProgressStore = stores.Progress
	}
	return orchestrator.New(opts)
}
