package domain

import "github.com/shopspring/decimal"

// TokenDecimals is the precision of the governing token and of all emitted
// decimal strings.
const TokenDecimals = 6

// PowerContribution is the power derived from one surviving deposit.
type PowerContribution struct {
	Amount        decimal.Decimal
	Multiplier    decimal.Decimal
	Power         decimal.Decimal
	SourceAccount PubKey
	SlotIndex     uint8
	Lockup        Lockup
}

// MemberPowerResult is the engine output for one member. It is regenerated
// on every computation.
type MemberPowerResult struct {
	Member          PubKey
	TotalPower      decimal.Decimal
	Contributions   []PowerContribution
	AccountsScanned uint32
}

// NativeToDecimal converts native token units to a decimal token amount.
func NativeToDecimal(native uint64) decimal.Decimal {
	return decimal.NewFromUint64(native).Shift(-TokenDecimals)
}
