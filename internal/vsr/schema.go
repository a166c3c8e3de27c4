// Package vsr decodes Voter Stake Registry accounts.
//
// Offsets follow the Anchor account definitions of the VSR program
// (voter-stake-registry v0.2.x). All integers are little-endian.
package vsr

import "crypto/sha256"

// ProgramID is the mainnet VSR program.
const ProgramID = "vsr2nfGVNHmSY8uxoBGqq8AQbwz3JwaEaHqGbsTPXqQ"

// Discriminator is the 8-byte Anchor account tag stored at offset 0.
type Discriminator [8]byte

// Anchor discriminators: sha256("account:<Name>")[:8].
var (
	VoterDiscriminator     = accountDiscriminator("Voter")
	RegistrarDiscriminator = accountDiscriminator("Registrar")
)

func accountDiscriminator(name string) Discriminator {
	sum := sha256.Sum256([]byte("account:" + name))
	var d Discriminator
	copy(d[:], sum[:8])
	return d
}

// Voter account layout.
const (
	DiscriminatorSize = 8

	VoterAuthorityOffset = 8
	VoterRegistrarOffset = 40
	VoterDepositsOffset  = 72
	VoterMaxDeposits     = 32
	DepositStride        = 80
	VoterAccountSize     = 2728 // includes voter_bump, voter_weight_record_bump and padding
)

// Deposit slot field offsets, relative to the slot start.
const (
	depositStartTsOffset               = 0
	depositEndTsOffset                 = 8
	depositKindOffset                  = 16
	depositAmountDepositedOffset       = 32
	depositAmountInitiallyLockedOffset = 40
	depositIsUsedOffset                = 48
	depositAllowClawbackOffset         = 49
	depositVotingMintIdxOffset         = 50
)

// Registrar account layout.
const (
	RegistrarRealmOffset         = 40
	RegistrarGoverningMintOffset = 72
	RegistrarAuthorityOffset     = 104
	RegistrarVotingMintsOffset   = 168
	RegistrarMaxVotingMints      = 4
	VotingMintStride             = 152
	RegistrarTimeOffsetOffset    = 776
	RegistrarAccountSize         = 880
)

// Voting mint config field offsets, relative to the entry start.
const (
	mintOffset               = 0
	mintGrantAuthorityOffset = 32
	mintBaselineScaledOffset = 64
	mintMaxExtraScaledOffset = 72
	mintSaturationSecsOffset = 80
	mintDigitShiftOffset     = 88
)

// ScaledFactorBase is the denominator of on-chain scaled vote weight factors.
const ScaledFactorBase = 1_000_000_000

// On-chain LockupKind tags.
const (
	kindTagNone     = 0
	kindTagDaily    = 1
	kindTagMonthly  = 2
	kindTagCliff    = 3
	kindTagConstant = 4
)
