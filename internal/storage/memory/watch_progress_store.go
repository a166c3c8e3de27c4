package memory

import (
	"context"
	"sync"

	"vsr-power-lab/internal/storage"
)

// WatchProgressStore is an in-memory implementation of storage.WatchProgressStore.
type WatchProgressStore struct {
	mu       sync.RWMutex
	progress map[string]storage.WatchProgress
}

// NewWatchProgressStore creates a new in-memory watch progress store.
func NewWatchProgressStore() *WatchProgressStore {
	return &WatchProgressStore{
		progress: make(map[string]storage.WatchProgress),
	}
}

// Compile-time interface check.
var _ storage.WatchProgressStore = (*WatchProgressStore)(nil)

// GetProgress returns the progress for registrar.
func (s *WatchProgressStore) GetProgress(_ context.Context, registrar string) (*storage.WatchProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[registrar]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// SetProgress saves progress. A slot lower than the stored one is ignored.
func (s *WatchProgressStore) SetProgress(_ context.Context, progress *storage.WatchProgress) error {
	if progress == nil || progress.Registrar == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.progress[progress.Registrar]; ok && cur.Slot > progress.Slot {
		return nil
	}
	s.progress[progress.Registrar] = *progress
	return nil
}
