package reporting

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"vsr-power-lab/internal/power"
	"vsr-power-lab/internal/storage"
)

// Generator produces reports from engine output or stored snapshots.
type Generator struct {
	snapshotStore storage.SnapshotStore
	memberStore   storage.MemberPowerStore
	now           func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. Stores may be nil when only
// FromPowerReport is used.
func NewGenerator(snapshotStore storage.SnapshotStore, memberStore storage.MemberPowerStore) *Generator {
	return &Generator{
		snapshotStore: snapshotStore,
		memberStore:   memberStore,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// FromPowerReport builds a report from a fresh computation.
func (g *Generator) FromPowerReport(summary Summary, r *power.Report) *Report {
	members := make([]MemberOutput, 0, len(r.Results))
	for _, res := range r.Results {
		members = append(members, NewMemberOutput(res))
	}
	sortLeaderboard(members)

	diag := r.Diagnostics
	summary.EvaluatedAt = r.EvaluatedAt
	summary.AccountsTotal = diag.AccountsTotal
	summary.MembersTotal = len(members)
	summary.TotalPower = FormatDecimal(r.TotalPower())

	return &Report{
		GeneratedAt: g.now(),
		Summary:     summary,
		Members:     members,
		Diagnostics: &diag,
	}
}

// FromSnapshot rebuilds a report from a persisted snapshot.
func (g *Generator) FromSnapshot(ctx context.Context, snapshotID string) (*Report, error) {
	if g.snapshotStore == nil || g.memberStore == nil {
		return nil, fmt.Errorf("%w: generator has no stores", storage.ErrInvalidInput)
	}
	snap, err := g.snapshotStore.GetByID(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", snapshotID, err)
	}

	records, err := g.memberStore.GetBySnapshot(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("get members: %w", err)
	}

	members := make([]MemberOutput, 0, len(records))
	for _, rec := range records {
		contribs, err := g.memberStore.GetContributions(ctx, snapshotID, rec.Wallet)
		if err != nil {
			return nil, fmt.Errorf("get contributions for %s: %w", rec.Wallet, err)
		}
		members = append(members, MemberFromRecords(rec, contribs))
	}
	sortLeaderboard(members)

	return &Report{
		GeneratedAt: g.now(),
		Summary: Summary{
			SnapshotID:    snap.SnapshotID,
			Registrar:     snap.Registrar,
			EvaluatedAt:   snap.EvaluatedAt,
			AccountsTotal: snap.AccountsTotal,
			MembersTotal:  snap.MembersTotal,
			TotalPower:    FormatDecimal(snap.TotalPower),
		},
		Members: members,
	}, nil
}

// sortLeaderboard orders members by total power DESC, wallet ASC.
func sortLeaderboard(members []MemberOutput) {
	slices.SortStableFunc(members, func(a, b MemberOutput) int {
		pa, _ := decimal.NewFromString(a.TotalPower)
		pb, _ := decimal.NewFromString(b.TotalPower)
		if c := pb.Cmp(pa); c != 0 {
			return c
		}
		return cmp.Compare(a.Wallet, b.Wallet)
	})
}
