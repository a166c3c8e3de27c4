// Package orchestrator runs voting power computations end to end.
// It coordinates: snapshot fetch → config resolution → power engine → storage
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"vsr-power-lab/internal/authority"
	"vsr-power-lab/internal/domain"
	"vsr-power-lab/internal/idhash"
	"vsr-power-lab/internal/observability"
	"vsr-power-lab/internal/power"
	"vsr-power-lab/internal/snapshot"
	"vsr-power-lab/internal/storage"
)

// Run triggers.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerWatch     = "watch"
	TriggerAPI       = "api"
)

// Options for creating Orchestrator.
type Options struct {
	// Required
	Source snapshot.Source
	Engine *power.Engine

	// Aliases maps alias authorities to primaries. Nil means no aliases.
	Aliases *authority.Table
	// ConfigOverride replaces the registrar account's voting mint config.
	ConfigOverride *domain.RegistrarConfig
	// Mint selects the voting mint entry. Zero selects the governing mint.
	Mint domain.PubKey
	// Registrar labels persisted snapshots when the source has no registrar account.
	Registrar domain.PubKey

	// Optional stores. Nil skips the corresponding step.
	SnapshotStore storage.SnapshotStore
	HistoryStore  storage.PowerHistoryStore
	ProgressStore storage.WatchProgressStore

	// Clock supplies the evaluation time. A fake clock freezes it.
	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Validate checks required options and fills defaults.
func (o *Options) Validate() error {
	if o.Source == nil {
		return errors.New("snapshot source is required")
	}
	if o.Engine == nil {
		return errors.New("power engine is required")
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return nil
}

// RunResult contains results from one orchestrator run.
type RunResult struct {
	RunID      string
	Trigger    string
	SnapshotID string
	Registrar  string
	Slot       int64
	Config     domain.RegistrarConfig
	Report     *power.Report

	// Persisted is false when storage is disabled or the snapshot already existed.
	Persisted  bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Status describes the orchestrator state for health endpoints.
type Status struct {
	Runs       int64
	Failures   int64
	LastError  string
	LastRun    *RunResult
	LastFailed time.Time
}

// Orchestrator coordinates power computations. Runs are serialized.
type Orchestrator struct {
	opts Options
	log  *slog.Logger

	runMu sync.Mutex

	mu     sync.RWMutex
	status Status
}

// New creates a new Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		opts: opts,
		log:  opts.Logger,
	}, nil
}

// Run executes one computation.
// Phases:
//  1. Fetch the account snapshot
//  2. Resolve the registrar config
//  3. Compute power for all members
//  4. Persist snapshot, history and watch progress
func (o *Orchestrator) Run(ctx context.Context, trigger string) (*RunResult, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	start := o.opts.Clock.Now()
	result, err := o.run(ctx, trigger, start)
	elapsed := o.opts.Clock.Since(start).Seconds()

	o.mu.Lock()
	o.status.Runs++
	if err != nil {
		o.status.Failures++
		o.status.LastError = err.Error()
		o.status.LastFailed = start
	} else {
		o.status.LastRun = result
		o.status.LastError = ""
	}
	o.mu.Unlock()

	if err != nil {
		observability.RecordRun(trigger, "error", elapsed)
		return nil, err
	}
	observability.RecordRun(trigger, "ok", elapsed)
	total, _ := result.Report.TotalPower().Float64()
	observability.RecordResult(len(result.Report.Results), total, result.FinishedAt.Unix())
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, trigger string, start time.Time) (*RunResult, error) {
	runID := uuid.NewString()
	log := o.log.With("run_id", runID, "trigger", trigger)

	// Phase 1: Fetch snapshot
	log.Debug("fetching snapshot")
	snap, err := o.opts.Source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (fetch snapshot) failed: %w", err)
	}
	log.Debug("snapshot fetched", "accounts", len(snap.Accounts), "slot", snap.Slot)

	// Phase 2: Resolve config
	cfg, err := snapshot.ResolveConfig(snap, o.opts.ConfigOverride, o.opts.Mint)
	if err != nil {
		return nil, fmt.Errorf("phase 2 (resolve config) failed: %w", err)
	}
	registrar := o.registrarLabel(snap, cfg)

	// Phase 3: Compute
	now := start.Unix()
	report, err := o.opts.Engine.ComputePower(ctx, snap.Accounts, cfg, o.opts.Aliases, now)
	if err != nil {
		return nil, fmt.Errorf("phase 3 (compute power) failed: %w", err)
	}
	recordScan(report.Diagnostics)

	digest := idhash.ComputeAccountsDigest(snap.Accounts)
	snapshotID := idhash.ComputeSnapshotID(registrar, cfg.GoverningMint.String(), report.EvaluatedAt, digest)

	result := &RunResult{
		RunID:      runID,
		Trigger:    trigger,
		SnapshotID: snapshotID,
		Registrar:  registrar,
		Slot:       snap.Slot,
		Config:     cfg,
		Report:     report,
		StartedAt:  start,
	}

	// Phase 4: Persist
	if err := o.persist(ctx, log, result); err != nil {
		return nil, fmt.Errorf("phase 4 (persist) failed: %w", err)
	}

	result.FinishedAt = o.opts.Clock.Now()
	log.Info("power computed",
		"snapshot_id", snapshotID,
		"members", len(report.Results),
		"total_power", report.TotalPower().StringFixed(domain.TokenDecimals),
		"eval_at", report.EvaluatedAt,
		"persisted", result.Persisted,
		"duration", result.FinishedAt.Sub(start).String(),
	)
	return result, nil
}

func (o *Orchestrator) persist(ctx context.Context, log *slog.Logger, result *RunResult) error {
	if o.opts.SnapshotStore == nil {
		return nil
	}

	snap, members, contributions := BuildRecords(result.SnapshotID, result.Registrar, result.Report, result.StartedAt.UnixMilli())
	err := o.opts.SnapshotStore.Save(ctx, snap, members, contributions)
	switch {
	case errors.Is(err, storage.ErrDuplicateKey):
		// Identical inputs at the same evaluation time were already stored.
		log.Debug("snapshot already stored", "snapshot_id", result.SnapshotID)
	case err != nil:
		return fmt.Errorf("save snapshot: %w", err)
	default:
		result.Persisted = true
	}

	if o.opts.HistoryStore != nil && result.Persisted && len(members) > 0 {
		if err := o.opts.HistoryStore.InsertBulk(ctx, members); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("insert history: %w", err)
		}
	}

	if o.opts.ProgressStore != nil && result.Slot > 0 {
		err := o.opts.ProgressStore.SetProgress(ctx, &storage.WatchProgress{
			Registrar:  result.Registrar,
			Slot:       result.Slot,
			SnapshotID: result.SnapshotID,
		})
		if err != nil {
			return fmt.Errorf("set watch progress: %w", err)
		}
	}
	return nil
}

// registrarLabel identifies the registrar of a run for storage.
func (o *Orchestrator) registrarLabel(snap *snapshot.Snapshot, cfg domain.RegistrarConfig) string {
	switch {
	case !cfg.Registrar.IsZero():
		return cfg.Registrar.String()
	case snap.Registrar != nil:
		return snap.Registrar.Address.String()
	default:
		return o.opts.Registrar.String()
	}
}

// Status returns a copy of the current status.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// LastResult returns the most recent successful run, nil if none.
func (o *Orchestrator) LastResult() *RunResult {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status.LastRun
}

// BuildRecords converts an engine report into storage rows.
func BuildRecords(snapshotID, registrar string, report *power.Report, createdAtMs int64) (*domain.PowerSnapshot, []*domain.MemberPowerRecord, []*domain.ContributionRecord) {
	snap := &domain.PowerSnapshot{
		SnapshotID:    snapshotID,
		Registrar:     registrar,
		EvaluatedAt:   report.EvaluatedAt,
		AccountsTotal: report.Diagnostics.AccountsTotal,
		MembersTotal:  len(report.Results),
		TotalPower:    report.TotalPower(),
		CreatedAt:     createdAtMs,
	}

	members := make([]*domain.MemberPowerRecord, 0, len(report.Results))
	var contributions []*domain.ContributionRecord
	for _, res := range report.Results {
		wallet := res.Member.String()
		members = append(members, &domain.MemberPowerRecord{
			SnapshotID:      snapshotID,
			Registrar:       registrar,
			Wallet:          wallet,
			TotalPower:      res.TotalPower,
			AccountsScanned: int(res.AccountsScanned),
			EvaluatedAt:     report.EvaluatedAt,
		})
		for _, c := range res.Contributions {
			source := c.SourceAccount.String()
			contributions = append(contributions, &domain.ContributionRecord{
				ContributionID: idhash.ComputeContributionID(snapshotID, wallet, source, int(c.SlotIndex)),
				SnapshotID:     snapshotID,
				Wallet:         wallet,
				SourceAccount:  source,
				SlotIndex:      int(c.SlotIndex),
				LockupKind:     c.Lockup.Kind,
				StartTs:        c.Lockup.StartTs,
				EndTs:          c.Lockup.EndTs,
				Amount:         c.Amount,
				Multiplier:     c.Multiplier,
				Power:          c.Power,
			})
		}
	}
	return snap, members, contributions
}

func recordScan(d power.Diagnostics) {
	observability.RecordScan(observability.ScanStats{
		Voters:                   d.VotersDecoded,
		Registrars:               d.RegistrarsSeen,
		Unknown:                  d.UnknownAccounts,
		DecodeErrors:             d.DecodeErrors,
		ClassificationMismatches: d.ClassificationMismatches + d.OwnerMismatches,
		RegistrarMismatches:      d.RegistrarMismatches,
		Phantoms:                 d.PhantomsDropped,
		Duplicates:               d.DuplicatesDropped,
	})
}
