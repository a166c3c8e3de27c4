package vsr

import (
	"fmt"

	"vsr-power-lab/internal/domain"
	"vsr-power-lab/internal/layout"
)

// DecodeError reports a buffer too short for a required field.
type DecodeError struct {
	Account domain.PubKey
	Field   string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s field %s: %v", e.Account, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeVoter decodes a Voter account. The account must classify as
// VariantVoter; any other input yields ErrClassificationMismatch.
func DecodeVoter(acct domain.RawAccount) (*domain.VoterRecord, error) {
	v, err := ClassifyStrict(acct.Data)
	if err != nil {
		return nil, err
	}
	if v != VariantVoter {
		return nil, fmt.Errorf("%w: %s is %s, not voter", ErrClassificationMismatch, acct.Address, v)
	}

	authority, err := layout.ReadPubKey(acct.Data, VoterAuthorityOffset)
	if err != nil {
		return nil, &DecodeError{Account: acct.Address, Field: "voter_authority", Err: err}
	}
	registrar, err := layout.ReadPubKey(acct.Data, VoterRegistrarOffset)
	if err != nil {
		return nil, &DecodeError{Account: acct.Address, Field: "registrar", Err: err}
	}

	return &domain.VoterRecord{
		Address:   acct.Address,
		Authority: authority,
		Registrar: registrar,
		Deposits:  DecodeDeposits(acct.Data),
	}, nil
}

// SlotCount returns the number of deposit slots fully contained in a voter buffer.
func SlotCount(bufLen int) int {
	if bufLen < VoterDepositsOffset {
		return 0
	}
	return min(VoterMaxDeposits, (bufLen-VoterDepositsOffset)/DepositStride)
}

// DecodeDeposits decodes every slot fully present in a voter buffer.
// Slot order is preserved. Malformed slots come back with IsUsed=false.
func DecodeDeposits(data []byte) []domain.DepositEntry {
	n := SlotCount(len(data))
	deposits := make([]domain.DepositEntry, n)
	for i := 0; i < n; i++ {
		deposits[i] = decodeSlot(data, i)
	}
	return deposits
}

func decodeSlot(data []byte, idx int) domain.DepositEntry {
	base := VoterDepositsOffset + idx*DepositStride
	entry := domain.DepositEntry{SlotIndex: uint8(idx)}

	// The slot is fully in bounds (see SlotCount), so reads cannot fail.
	isUsed, ok, _ := layout.ReadBool(data, base+depositIsUsedOffset)
	if !ok || !isUsed {
		return entry
	}

	tag, _ := layout.ReadU8(data, base+depositKindOffset)
	kind, ok := lockupKindFromTag(tag)
	if !ok {
		return entry
	}

	entry.IsUsed = true
	entry.Lockup.Kind = kind
	entry.Lockup.StartTs, _ = layout.ReadI64(data, base+depositStartTsOffset)
	entry.Lockup.EndTs, _ = layout.ReadI64(data, base+depositEndTsOffset)
	entry.AmountDepositedNative, _ = layout.ReadU64(data, base+depositAmountDepositedOffset)
	entry.AmountInitiallyLockedNative, _ = layout.ReadU64(data, base+depositAmountInitiallyLockedOffset)
	entry.VotingMintConfigIdx, _ = layout.ReadU8(data, base+depositVotingMintIdxOffset)
	return entry
}

// lockupKindFromTag maps the on-chain enum tag. Daily vesting maps to LockupVesting.
func lockupKindFromTag(tag uint8) (domain.LockupKind, bool) {
	switch tag {
	case kindTagNone:
		return domain.LockupNone, true
	case kindTagDaily:
		return domain.LockupVesting, true
	case kindTagMonthly:
		return domain.LockupMonthly, true
	case kindTagCliff:
		return domain.LockupCliff, true
	case kindTagConstant:
		return domain.LockupConstant, true
	}
	return "", false
}

// LockupKindTag returns the on-chain tag for kind.
func LockupKindTag(kind domain.LockupKind) (uint8, bool) {
	switch kind {
	case domain.LockupNone:
		return kindTagNone, true
	case domain.LockupVesting:
		return kindTagDaily, true
	case domain.LockupMonthly:
		return kindTagMonthly, true
	case domain.LockupCliff:
		return kindTagCliff, true
	case domain.LockupConstant:
		return kindTagConstant, true
	}
	return 0, false
}
