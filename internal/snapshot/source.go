// Package snapshot loads raw VSR account state from RPC or from files.
package snapshot

import (
	"context"
	"fmt"

	"vsr-power-lab/internal/domain"
	"vsr-power-lab/internal/vsr"
)

// Snapshot is the raw account set of one registrar at one point in time.
type Snapshot struct {
	Accounts []domain.RawAccount
	// Registrar is the decoded registrar account, nil when not available.
	Registrar *vsr.Registrar
	// Slot is the slot the snapshot was read at, 0 when unknown.
	Slot int64
}

// Source provides VSR snapshots from external sources.
type Source interface {
	// Fetch returns the current snapshot.
	Fetch(ctx context.Context) (*Snapshot, error)
}

// ResolveConfig picks the multiplier configuration for a snapshot. An
// explicit override wins; otherwise the registrar's voting mint entry for
// mint is used (zero mint selects the governing mint).
func ResolveConfig(snap *Snapshot, override *domain.RegistrarConfig, mint domain.PubKey) (domain.RegistrarConfig, error) {
	if override != nil {
		return *override, nil
	}
	if snap == nil || snap.Registrar == nil {
		return domain.RegistrarConfig{}, fmt.Errorf("no registrar config: registrar account not in snapshot and no config file given")
	}
	return snap.Registrar.RegistrarConfigFor(mint)
}
