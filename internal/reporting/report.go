package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"vsr-power-lab/internal/domain"
	"vsr-power-lab/internal/power"
)

// Report contains all sections of a voting power report.
type Report struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Summary     Summary   `json:"summary"`

	// Members is the leaderboard: total power DESC, wallet ASC.
	Members []MemberOutput `json:"members"`

	// Diagnostics is nil for reports rebuilt from storage.
	Diagnostics *power.Diagnostics `json:"diagnostics,omitempty"`
}

// Summary contains snapshot-level figures.
type Summary struct {
	SnapshotID    string `json:"snapshotId"`
	Registrar     string `json:"registrar"`
	GoverningMint string `json:"governingMint,omitempty"`
	EvaluatedAt   int64  `json:"evaluatedAt"`
	AccountsTotal int    `json:"accountsTotal"`
	MembersTotal  int    `json:"membersTotal"`
	TotalPower    string `json:"totalPower"`
}

// MemberOutput is the external representation of one member result.
// Decimal values are rendered with 6 fractional digits.
type MemberOutput struct {
	Wallet          string          `json:"wallet"`
	TotalPower      string          `json:"totalPower"`
	Deposits        []DepositOutput `json:"deposits"`
	AccountsScanned int             `json:"accountsScanned"`
}

// DepositOutput is the external representation of one contribution.
type DepositOutput struct {
	Amount        string `json:"amount"`
	Multiplier    string `json:"multiplier"`
	Power         string `json:"power"`
	LockupKind    string `json:"lockupKind"`
	StartTs       int64  `json:"startTs"`
	EndTs         int64  `json:"endTs"`
	SourceAccount string `json:"sourceAccount"`
	SlotIndex     int    `json:"slotIndex"`
}

// FormatDecimal renders d with the token precision.
func FormatDecimal(d decimal.Decimal) string {
	return d.StringFixed(domain.TokenDecimals)
}

// NewMemberOutput converts an engine result.
func NewMemberOutput(res domain.MemberPowerResult) MemberOutput {
	deposits := make([]DepositOutput, 0, len(res.Contributions))
	for _, c := range res.Contributions {
		deposits = append(deposits, DepositOutput{
			Amount:        FormatDecimal(c.Amount),
			Multiplier:    FormatDecimal(c.Multiplier),
			Power:         FormatDecimal(c.Power),
			LockupKind:    c.Lockup.Kind.String(),
			StartTs:       c.Lockup.StartTs,
			EndTs:         c.Lockup.EndTs,
			SourceAccount: c.SourceAccount.String(),
			SlotIndex:     int(c.SlotIndex),
		})
	}
	return MemberOutput{
		Wallet:          res.Member.String(),
		TotalPower:      FormatDecimal(res.TotalPower),
		Deposits:        deposits,
		AccountsScanned: int(res.AccountsScanned),
	}
}

// MemberFromRecords converts persisted rows.
func MemberFromRecords(m *domain.MemberPowerRecord, contributions []*domain.ContributionRecord) MemberOutput {
	deposits := make([]DepositOutput, 0, len(contributions))
	for _, c := range contributions {
		deposits = append(deposits, DepositOutput{
			Amount:        FormatDecimal(c.Amount),
			Multiplier:    FormatDecimal(c.Multiplier),
			Power:         FormatDecimal(c.Power),
			LockupKind:    c.LockupKind.String(),
			StartTs:       c.StartTs,
			EndTs:         c.EndTs,
			SourceAccount: c.SourceAccount,
			SlotIndex:     c.SlotIndex,
		})
	}
	return MemberOutput{
		Wallet:          m.Wallet,
		TotalPower:      FormatDecimal(m.TotalPower),
		Deposits:        deposits,
		AccountsScanned: m.AccountsScanned,
	}
}
