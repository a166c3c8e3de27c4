package memory

import (
	"context"
	"sort"
	"sync"

	"vsr-power-lab/internal/domain"
	"vsr-power-lab/internal/storage"
)

// PowerHistoryStore is an in-memory implementation of storage.PowerHistoryStore.
type PowerHistoryStore struct {
	mu   sync.RWMutex
	data []*domain.MemberPowerRecord
	keys map[string]struct{} // snapshot_id|wallet
}

// NewPowerHistoryStore creates a new in-memory power history store.
func NewPowerHistoryStore() *PowerHistoryStore {
	return &PowerHistoryStore{
		keys: make(map[string]struct{}),
	}
}

// Compile-time interface check.
var _ storage.PowerHistoryStore = (*PowerHistoryStore)(nil)

// InsertBulk appends rows. Fails entire batch on any duplicate.
func (s *PowerHistoryStore) InsertBulk(_ context.Context, records []*domain.MemberPowerRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.SnapshotID == "" || r.Wallet == "" {
			return storage.ErrInvalidInput
		}
		key := r.SnapshotID + "|" + r.Wallet
		if _, exists := s.keys[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[key]; exists {
			return storage.ErrDuplicateKey
		}
		batch[key] = struct{}{}
	}

	for _, r := range records {
		rc := *r
		s.data = append(s.data, &rc)
		s.keys[r.SnapshotID+"|"+r.Wallet] = struct{}{}
	}
	return nil
}

// GetByWallet retrieves rows within [start, end] (inclusive), ordered by evaluated_at ASC.
func (s *PowerHistoryStore) GetByWallet(_ context.Context, registrar, wallet string, start, end int64) ([]*domain.MemberPowerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MemberPowerRecord
	for _, r := range s.data {
		if r.Registrar == registrar && r.Wallet == wallet && r.EvaluatedAt >= start && r.EvaluatedAt <= end {
			rc := *r
			result = append(result, &rc)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].EvaluatedAt < result[j].EvaluatedAt
	})
	return result, nil
}
