package memory

import (
	"context"
	"sort"
	"sync"

	"vsr-power-lab/internal/domain"
	"vsr-power-lab/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore and
// storage.MemberPowerStore.
type SnapshotStore struct {
	mu            sync.RWMutex
	snapshots     map[string]*domain.PowerSnapshot                  // keyed by snapshot_id
	members       map[string][]*domain.MemberPowerRecord            // keyed by snapshot_id
	contributions map[string]map[string][]*domain.ContributionRecord // snapshot_id -> wallet
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		snapshots:     make(map[string]*domain.PowerSnapshot),
		members:       make(map[string][]*domain.MemberPowerRecord),
		contributions: make(map[string]map[string][]*domain.ContributionRecord),
	}
}

// Compile-time interface checks.
var (
	_ storage.SnapshotStore    = (*SnapshotStore)(nil)
	_ storage.MemberPowerStore = (*SnapshotStore)(nil)
)

// Save persists a snapshot with its members and contributions atomically.
// Returns ErrDuplicateKey if snapshot_id exists.
func (s *SnapshotStore) Save(_ context.Context, snap *domain.PowerSnapshot, members []*domain.MemberPowerRecord, contributions []*domain.ContributionRecord) error {
	if snap == nil || snap.SnapshotID == "" {
		return storage.ErrInvalidInput
	}

	seenWallets := make(map[string]struct{}, len(members))
	memberCopies := make([]*domain.MemberPowerRecord, 0, len(members))
	for _, m := range members {
		if m == nil || m.SnapshotID != snap.SnapshotID || m.Wallet == "" {
			return storage.ErrInvalidInput
		}
		if _, dup := seenWallets[m.Wallet]; dup {
			return storage.ErrDuplicateKey
		}
		seenWallets[m.Wallet] = struct{}{}
		mc := *m
		memberCopies = append(memberCopies, &mc)
	}
	sortMembers(memberCopies)

	seenContribs := make(map[string]struct{}, len(contributions))
	byWallet := make(map[string][]*domain.ContributionRecord)
	for _, c := range contributions {
		if c == nil || c.SnapshotID != snap.SnapshotID || c.ContributionID == "" {
			return storage.ErrInvalidInput
		}
		if _, dup := seenContribs[c.ContributionID]; dup {
			return storage.ErrDuplicateKey
		}
		seenContribs[c.ContributionID] = struct{}{}
		cc := *c
		byWallet[c.Wallet] = append(byWallet[c.Wallet], &cc)
	}
	for _, list := range byWallet {
		sort.Slice(list, func(i, j int) bool {
			if list[i].SourceAccount != list[j].SourceAccount {
				return list[i].SourceAccount < list[j].SourceAccount
			}
			return list[i].SlotIndex < list[j].SlotIndex
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.snapshots[snap.SnapshotID]; exists {
		return storage.ErrDuplicateKey
	}

	snapCopy := *snap
	s.snapshots[snap.SnapshotID] = &snapCopy
	s.members[snap.SnapshotID] = memberCopies
	s.contributions[snap.SnapshotID] = byWallet
	return nil
}

// GetByID retrieves a snapshot by its ID. Returns ErrNotFound if not exists.
func (s *SnapshotStore) GetByID(_ context.Context, snapshotID string) (*domain.PowerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, exists := s.snapshots[snapshotID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	snapCopy := *snap
	return &snapCopy, nil
}

// Latest retrieves the newest snapshot for registrar. Returns ErrNotFound if none.
func (s *SnapshotStore) Latest(ctx context.Context, registrar string) (*domain.PowerSnapshot, error) {
	list, err := s.List(ctx, registrar, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, storage.ErrNotFound
	}
	return list[0], nil
}

// List retrieves up to limit snapshots for registrar, newest first.
// A non-positive limit returns all snapshots.
func (s *SnapshotStore) List(_ context.Context, registrar string, limit int) ([]*domain.PowerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PowerSnapshot
	for _, snap := range s.snapshots {
		if snap.Registrar == registrar {
			snapCopy := *snap
			result = append(result, &snapCopy)
		}
	}

	// Sort by evaluated_at DESC, created_at DESC, snapshot_id ASC
	sort.Slice(result, func(i, j int) bool {
		if result[i].EvaluatedAt != result[j].EvaluatedAt {
			return result[i].EvaluatedAt > result[j].EvaluatedAt
		}
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].SnapshotID < result[j].SnapshotID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetBySnapshot retrieves all members of a snapshot ordered by total_power DESC, wallet ASC.
func (s *SnapshotStore) GetBySnapshot(_ context.Context, snapshotID string) ([]*domain.MemberPowerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.members[snapshotID]
	result := make([]*domain.MemberPowerRecord, 0, len(members))
	for _, m := range members {
		mc := *m
		result = append(result, &mc)
	}
	return result, nil
}

// GetMember retrieves one member row. Returns ErrNotFound if not exists.
func (s *SnapshotStore) GetMember(_ context.Context, snapshotID, wallet string) (*domain.MemberPowerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.members[snapshotID] {
		if m.Wallet == wallet {
			mc := *m
			return &mc, nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetContributions retrieves a member's contributions ordered by source_account, slot_index.
func (s *SnapshotStore) GetContributions(_ context.Context, snapshotID, wallet string) ([]*domain.ContributionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.contributions[snapshotID][wallet]
	result := make([]*domain.ContributionRecord, 0, len(list))
	for _, c := range list {
		cc := *c
		result = append(result, &cc)
	}
	return result, nil
}

func sortMembers(members []*domain.MemberPowerRecord) {
	sort.Slice(members, func(i, j int) bool {
		if c := members[i].TotalPower.Cmp(members[j].TotalPower); c != 0 {
			return c > 0
		}
		return members[i].Wallet < members[j].Wallet
	})
}
