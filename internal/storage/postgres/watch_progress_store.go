package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"vsr-power-lab/internal/storage"
)

// WatchProgressStore is a PostgreSQL implementation of storage.WatchProgressStore.
type WatchProgressStore struct {
	pool *Pool
}

// NewWatchProgressStore creates a new PostgreSQL watch progress store.
func NewWatchProgressStore(pool *Pool) *WatchProgressStore {
	return &WatchProgressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WatchProgressStore = (*WatchProgressStore)(nil)

// GetProgress returns the progress for registrar.
func (s *WatchProgressStore) GetProgress(ctx context.Context, registrar string) (*storage.WatchProgress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT registrar, slot, snapshot_id
		FROM watch_progress
		WHERE registrar = $1
	`, registrar)

	var progress storage.WatchProgress
	err := row.Scan(&progress.Registrar, &progress.Slot, &progress.SnapshotID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	return &progress, nil
}

// SetProgress saves progress. Uses upsert; a lower slot than stored is ignored.
func (s *WatchProgressStore) SetProgress(ctx context.Context, progress *storage.WatchProgress) error {
	if progress == nil || progress.Registrar == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO watch_progress (registrar, slot, snapshot_id, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (registrar) DO UPDATE
		SET slot = EXCLUDED.slot,
		    snapshot_id = EXCLUDED.snapshot_id,
		    updated_at = NOW()
		WHERE watch_progress.slot <= EXCLUDED.slot
	`, progress.Registrar, progress.Slot, progress.SnapshotID)

	return err
}
