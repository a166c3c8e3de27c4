package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"vsr-power-lab/internal/domain"
	"vsr-power-lab/internal/power"
	"vsr-power-lab/internal/storage"
	"vsr-power-lab/internal/storage/memory"
)

var fixedTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func key(b byte) domain.PubKey {
	var k domain.PubKey
	k[0] = b
	return k
}

func testPowerReport() *power.Report {
	return &power.Report{
		EvaluatedAt: 1_700_000_000,
		Results: []domain.MemberPowerResult{
			{
				Member:     key(1),
				TotalPower: decimal.RequireFromString("100"),
				Contributions: []domain.PowerContribution{
					{
						Amount:        decimal.RequireFromString("100"),
						Multiplier:    decimal.RequireFromString("1"),
						Power:         decimal.RequireFromString("100"),
						SourceAccount: key(11),
						SlotIndex:     0,
						Lockup:        domain.Lockup{Kind: domain.LockupNone},
					},
				},
				AccountsScanned: 1,
			},
			{
				Member:     key(2),
				TotalPower: decimal.RequireFromString("250.5"),
				Contributions: []domain.PowerContribution{
					{
						Amount:        decimal.RequireFromString("100"),
						Multiplier:    decimal.RequireFromString("2.505"),
						Power:         decimal.RequireFromString("250.5"),
						SourceAccount: key(12),
						SlotIndex:     3,
						Lockup:        domain.Lockup{Kind: domain.LockupCliff, StartTs: 1_600_000_000, EndTs: 1_800_000_000},
					},
				},
				AccountsScanned: 2,
			},
			{
				Member:          key(3),
				TotalPower:      decimal.RequireFromString("100"),
				AccountsScanned: 1,
			},
		},
		Diagnostics: power.Diagnostics{
			AccountsTotal:   5,
			VotersDecoded:   4,
			PhantomsDropped: 1,
			Messages:        []string{"account x: decode error"},
		},
	}
}

func TestFromPowerReport(t *testing.T) {
	gen := NewGenerator(nil, nil).WithClock(func() time.Time { return fixedTime })
	r := gen.FromPowerReport(Summary{SnapshotID: "snap1", Registrar: "reg"}, testPowerReport())

	if !r.GeneratedAt.Equal(fixedTime) {
		t.Errorf("GeneratedAt = %v, want %v", r.GeneratedAt, fixedTime)
	}
	if r.Summary.TotalPower != "450.500000" {
		t.Errorf("TotalPower = %s, want 450.500000", r.Summary.TotalPower)
	}
	if r.Summary.MembersTotal != 3 {
		t.Errorf("MembersTotal = %d, want 3", r.Summary.MembersTotal)
	}
	if r.Summary.AccountsTotal != 5 {
		t.Errorf("AccountsTotal = %d, want 5", r.Summary.AccountsTotal)
	}
	if r.Summary.EvaluatedAt != 1_700_000_000 {
		t.Errorf("EvaluatedAt = %d", r.Summary.EvaluatedAt)
	}

	// Leaderboard: power DESC, wallet ASC on ties.
	want := []string{key(2).String(), key(1).String(), key(3).String()}
	for i, w := range want {
		if r.Members[i].Wallet != w {
			t.Errorf("Members[%d] = %s, want %s", i, r.Members[i].Wallet, w)
		}
	}
	if r.Diagnostics == nil || r.Diagnostics.PhantomsDropped != 1 {
		t.Errorf("Diagnostics not carried over: %+v", r.Diagnostics)
	}
}

func TestNewMemberOutput_Format(t *testing.T) {
	out := NewMemberOutput(testPowerReport().Results[1])

	if out.TotalPower != "250.500000" {
		t.Errorf("TotalPower = %s, want 250.500000", out.TotalPower)
	}
	if len(out.Deposits) != 1 {
		t.Fatalf("len(Deposits) = %d, want 1", len(out.Deposits))
	}
	d := out.Deposits[0]
	if d.Amount != "100.000000" || d.Multiplier != "2.505000" || d.Power != "250.500000" {
		t.Errorf("deposit decimals = %s/%s/%s", d.Amount, d.Multiplier, d.Power)
	}
	if d.LockupKind != "cliff" || d.StartTs != 1_600_000_000 || d.EndTs != 1_800_000_000 {
		t.Errorf("deposit lockup = %+v", d)
	}
	if d.SourceAccount != key(12).String() || d.SlotIndex != 3 {
		t.Errorf("deposit source = %s/%d", d.SourceAccount, d.SlotIndex)
	}
	if out.AccountsScanned != 2 {
		t.Errorf("AccountsScanned = %d, want 2", out.AccountsScanned)
	}
}

func TestRenderJSON_Contract(t *testing.T) {
	members := []MemberOutput{NewMemberOutput(testPowerReport().Results[0])}

	var buf bytes.Buffer
	if err := RenderJSON(&buf, members); err != nil {
		t.Fatalf("RenderJSON failed: %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("len = %d, want 1", len(decoded))
	}
	for _, field := range []string{"wallet", "totalPower", "deposits", "accountsScanned"} {
		if _, ok := decoded[0][field]; !ok {
			t.Errorf("missing field %q", field)
		}
	}
	deposits := decoded[0]["deposits"].([]any)
	dep := deposits[0].(map[string]any)
	for _, field := range []string{"amount", "multiplier", "power", "lockupKind", "startTs", "endTs", "sourceAccount", "slotIndex"} {
		if _, ok := dep[field]; !ok {
			t.Errorf("missing deposit field %q", field)
		}
	}
	if dep["amount"] != "100.000000" {
		t.Errorf("amount = %v, want string 100.000000", dep["amount"])
	}
}

func TestRenderJSON_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderJSON(&buf, nil); err != nil {
		t.Fatalf("RenderJSON failed: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty output = %q, want []", buf.String())
	}
}

func TestRenderCSV(t *testing.T) {
	gen := NewGenerator(nil, nil).WithClock(func() time.Time { return fixedTime })
	r := gen.FromPowerReport(Summary{}, testPowerReport())

	csv := RenderCSV(r.Members)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want 4", len(lines))
	}
	if lines[0] != "rank,wallet,total_power,deposits,accounts_scanned" {
		t.Errorf("header = %q", lines[0])
	}
	wantFirst := "1," + key(2).String() + ",250.500000,1,2"
	if lines[1] != wantFirst {
		t.Errorf("row 1 = %q, want %q", lines[1], wantFirst)
	}

	deposits := RenderDepositsCSV(r.Members)
	if n := strings.Count(deposits, "\n"); n != 3 {
		t.Errorf("deposit csv lines = %d, want 3", n)
	}
}

func TestRenderMarkdown(t *testing.T) {
	gen := NewGenerator(nil, nil).WithClock(func() time.Time { return fixedTime })
	r := gen.FromPowerReport(Summary{SnapshotID: "snap1", Registrar: "reg"}, testPowerReport())

	md := RenderMarkdown(r, 2)

	for _, want := range []string{
		"# Voting Power Report",
		"Generated: 2026-01-15T12:00:00Z",
		"| Snapshot | snap1 |",
		"| Total Power | 450.500000 |",
		"## Leaderboard",
		"1 more members not shown.",
		"| Phantoms Dropped | 1 |",
		"- account x: decode error",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(md, key(3).String()) {
		t.Error("member beyond topN should not be listed")
	}
}

func TestRenderMarkdown_Deterministic(t *testing.T) {
	gen := NewGenerator(nil, nil).WithClock(func() time.Time { return fixedTime })
	a := RenderMarkdown(gen.FromPowerReport(Summary{}, testPowerReport()), 0)
	b := RenderMarkdown(gen.FromPowerReport(Summary{}, testPowerReport()), 0)
	if a != b {
		t.Error("markdown output not deterministic")
	}
}

func TestFromSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSnapshotStore()

	snap := &domain.PowerSnapshot{
		SnapshotID:    "snap1",
		Registrar:     "reg",
		EvaluatedAt:   1_700_000_000,
		AccountsTotal: 2,
		MembersTotal:  2,
		TotalPower:    decimal.RequireFromString("300"),
	}
	members := []*domain.MemberPowerRecord{
		{SnapshotID: "snap1", Registrar: "reg", Wallet: "walletA", TotalPower: decimal.RequireFromString("100"), AccountsScanned: 1},
		{SnapshotID: "snap1", Registrar: "reg", Wallet: "walletB", TotalPower: decimal.RequireFromString("200"), AccountsScanned: 1},
	}
	contribs := []*domain.ContributionRecord{
		{
			ContributionID: "c1", SnapshotID: "snap1", Wallet: "walletB", SourceAccount: "acct",
			LockupKind: domain.LockupConstant, Amount: decimal.RequireFromString("100"),
			Multiplier: decimal.RequireFromString("2"), Power: decimal.RequireFromString("200"),
		},
	}
	if err := store.Save(ctx, snap, members, contribs); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	gen := NewGenerator(store, store).WithClock(func() time.Time { return fixedTime })
	r, err := gen.FromSnapshot(ctx, "snap1")
	if err != nil {
		t.Fatalf("FromSnapshot failed: %v", err)
	}
	if r.Summary.TotalPower != "300.000000" {
		t.Errorf("TotalPower = %s", r.Summary.TotalPower)
	}
	if len(r.Members) != 2 || r.Members[0].Wallet != "walletB" {
		t.Fatalf("unexpected leaderboard: %+v", r.Members)
	}
	if len(r.Members[0].Deposits) != 1 || r.Members[0].Deposits[0].LockupKind != "constant" {
		t.Errorf("deposits = %+v", r.Members[0].Deposits)
	}
	if r.Diagnostics != nil {
		t.Error("stored report should not carry diagnostics")
	}

	_, err = gen.FromSnapshot(ctx, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("FromSnapshot(missing) error = %v, want ErrNotFound", err)
	}
}

func TestFromSnapshot_NoStores(t *testing.T) {
	_, err := NewGenerator(nil, nil).FromSnapshot(context.Background(), "x")
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}
