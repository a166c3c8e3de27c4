package domain

import "github.com/shopspring/decimal"

// Fixed is a unit-normalized fixed-point weight (on-chain scaled factor / 1e9).
type Fixed = decimal.Decimal

// RegistrarConfig is the multiplier configuration shared by all deposits of
// one DAO instance. LockupSaturationSecs must be > 0.
type RegistrarConfig struct {
	// Registrar restricts attribution to voters of this registrar. Zero means any.
	Registrar PubKey

	GoverningMint PubKey

	// VotingMintIndex is the registrar voting_mints entry of GoverningMint.
	// Deposits of other mints carry no power under this config.
	VotingMintIndex uint8

	BaselineVoteWeight       Fixed
	MaxExtraLockupVoteWeight Fixed
	LockupSaturationSecs     uint64

	// TimeOffset is added to the evaluation timestamp (registrar clock offset).
	TimeOffset int64
}
