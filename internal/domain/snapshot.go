package domain

import "github.com/shopspring/decimal"

// PowerSnapshot describes one persisted computation run.
// Corresponds to power_snapshots table in PostgreSQL.
type PowerSnapshot struct {
	SnapshotID    string // deterministic, see idhash.ComputeSnapshotID
	Registrar     string
	EvaluatedAt   int64 // evaluation timestamp (unix seconds)
	AccountsTotal int
	MembersTotal  int
	TotalPower    decimal.Decimal
	CreatedAt     int64 // ms
}

// MemberPowerRecord is a persisted member result row.
// Corresponds to member_power table in PostgreSQL.
type MemberPowerRecord struct {
	SnapshotID      string
	Registrar       string
	Wallet          string
	TotalPower      decimal.Decimal
	AccountsScanned int
	EvaluatedAt     int64
}

// ContributionRecord is a persisted contribution row.
// Corresponds to power_contributions table in PostgreSQL.
type ContributionRecord struct {
	ContributionID string
	SnapshotID     string
	Wallet         string
	SourceAccount  string
	SlotIndex      int
	LockupKind     LockupKind
	StartTs        int64
	EndTs          int64
	Amount         decimal.Decimal
	Multiplier     decimal.Decimal
	Power          decimal.Decimal
}
