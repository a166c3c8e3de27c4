package storage

import (
	"context"

	"vsr-power-lab/internal/domain"
)

// SnapshotStore provides access to power_snapshots and their member and
// contribution rows.
type SnapshotStore interface {
	// Save persists a snapshot with its members and contributions atomically.
	// Returns ErrDuplicateKey if snapshot_id exists.
	Save(ctx context.Context, snap *domain.PowerSnapshot, members []*domain.MemberPowerRecord, contributions []*domain.ContributionRecord) error

	// GetByID retrieves a snapshot by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, snapshotID string) (*domain.PowerSnapshot, error)

	// Latest retrieves the snapshot with the greatest evaluated_at for registrar.
	// Ties resolve to the most recently created. Returns ErrNotFound if none.
	Latest(ctx context.Context, registrar string) (*domain.PowerSnapshot, error)

	// List retrieves up to limit snapshots for registrar, newest first.
	List(ctx context.Context, registrar string, limit int) ([]*domain.PowerSnapshot, error)
}

// MemberPowerStore provides read access to member_power and power_contributions.
type MemberPowerStore interface {
	// GetBySnapshot retrieves all members of a snapshot ordered by
	// total_power DESC, wallet ASC.
	GetBySnapshot(ctx context.Context, snapshotID string) ([]*domain.MemberPowerRecord, error)

	// GetMember retrieves one member row. Returns ErrNotFound if not exists.
	GetMember(ctx context.Context, snapshotID, wallet string) (*domain.MemberPowerRecord, error)

	// GetContributions retrieves a member's contributions ordered by
	// source_account ASC, slot_index ASC.
	GetContributions(ctx context.Context, snapshotID, wallet string) ([]*domain.ContributionRecord, error)
}

// PowerHistoryStore provides access to the member_power_history time series.
type PowerHistoryStore interface {
	// InsertBulk appends history rows. Rows of an already recorded
	// (snapshot_id, wallet) pair are rejected with ErrDuplicateKey.
	InsertBulk(ctx context.Context, records []*domain.MemberPowerRecord) error

	// GetByWallet retrieves a wallet's rows with evaluated_at within
	// [start, end] (inclusive), ordered by evaluated_at ASC.
	GetByWallet(ctx context.Context, registrar, wallet string, start, end int64) ([]*domain.MemberPowerRecord, error)
}

// WatchProgress is the last chain position a recalculation covered.
type WatchProgress struct {
	Registrar  string
	Slot       int64
	SnapshotID string
}

// WatchProgressStore persists watcher state per registrar so restarts do not
// recompute for notifications already covered.
type WatchProgressStore interface {
	// GetProgress returns the progress for registrar.
	// Returns ErrNotFound if no progress has been saved yet.
	GetProgress(ctx context.Context, registrar string) (*WatchProgress, error)

	// SetProgress saves progress. A slot lower than the stored one is ignored.
	SetProgress(ctx context.Context, progress *WatchProgress) error
}
