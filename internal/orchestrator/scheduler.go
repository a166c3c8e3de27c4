package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"vsr-power-lab/internal/solana"
	"vsr-power-lab/internal/storage"
)

// Runner executes one computation.
type Runner interface {
	Run(ctx context.Context, trigger string) (*RunResult, error)
}

var _ Runner = (*Orchestrator)(nil)

// StartScheduler runs r immediately and then every interval until ctx is done.
func StartScheduler(ctx context.Context, r Runner, interval time.Duration, clock clockwork.Clock, log *slog.Logger) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	go func() {
		log.Info("scheduler: starting", "interval", interval)

		safeRun(ctx, r, TriggerScheduled, log)

		ticker := clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				safeRun(ctx, r, TriggerScheduled, log)
			}
		}
	}()
}

func safeRun(ctx context.Context, r Runner, trigger string, log *slog.Logger) *RunResult {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("run panicked", "trigger", trigger, "panic", rec)
		}
	}()

	res, err := r.Run(ctx, trigger)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		log.Error("run failed", "trigger", trigger, "error", err)
		return nil
	}
	return res
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	WS        solana.WSClient
	Runner    Runner
	ProgramID string
	Filter    *solana.ProgramAccountsOpts
	// Debounce delays a recalculation after the first change so bursts of
	// notifications trigger a single run.
	Debounce time.Duration

	// Optional. Notifications at or below the stored slot are ignored.
	ProgressStore storage.WatchProgressStore
	Registrar     string

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Validate checks required fields and fills defaults.
func (cfg *WatcherConfig) Validate() error {
	if cfg.WS == nil {
		return errors.New("websocket client is required")
	}
	if cfg.Runner == nil {
		return errors.New("runner is required")
	}
	if cfg.ProgramID == "" {
		return errors.New("program id is required")
	}
	if cfg.Debounce <= 0 {
		return errors.New("debounce must be greater than 0")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return nil
}

// Watcher recalculates power when voter accounts change on chain.
type Watcher struct {
	cfg WatcherConfig
	log *slog.Logger

	coveredSlot int64
}

// NewWatcher creates a Watcher.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Watcher{cfg: cfg, log: cfg.Logger}, nil
}

// Run subscribes to program account changes and blocks until ctx is done
// or the subscription ends.
func (w *Watcher) Run(ctx context.Context) error {
	w.loadProgress(ctx)

	ch, err := w.cfg.WS.SubscribeProgram(ctx, w.cfg.ProgramID, w.cfg.Filter)
	if err != nil {
		return fmt.Errorf("subscribe program: %w", err)
	}
	w.log.Info("watcher: subscribed", "program", w.cfg.ProgramID, "debounce", w.cfg.Debounce)

	var (
		timer   clockwork.Timer
		timerC  <-chan time.Time
		pending int
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case n, ok := <-ch:
			if !ok {
				return errors.New("subscription closed")
			}
			if n.Slot > 0 && n.Slot <= w.coveredSlot {
				w.log.Debug("watcher: change already covered", "account", n.Pubkey, "slot", n.Slot)
				continue
			}
			pending++
			if timer == nil {
				timer = w.cfg.Clock.NewTimer(w.cfg.Debounce)
				timerC = timer.Chan()
			}

		case <-timerC:
			timer, timerC = nil, nil
			w.log.Info("watcher: accounts changed, recalculating", "notifications", pending)
			pending = 0
			if res := safeRun(ctx, w.cfg.Runner, TriggerWatch, w.log); res != nil && res.Slot > w.coveredSlot {
				w.coveredSlot = res.Slot
			}
		}
	}
}

func (w *Watcher) loadProgress(ctx context.Context) {
	if w.cfg.ProgressStore == nil || w.cfg.Registrar == "" {
		return
	}
	p, err := w.cfg.ProgressStore.GetProgress(ctx, w.cfg.Registrar)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			w.log.Warn("watcher: load progress failed", "error", err)
		}
		return
	}
	w.coveredSlot = p.Slot
	w.log.Debug("watcher: resumed", "slot", p.Slot, "snapshot_id", p.SnapshotID)
}
