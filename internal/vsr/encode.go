package vsr

import (
	"encoding/binary"

	"vsr-power-lab/internal/domain"
)

// EncodeVoter serializes rec into a full-size Voter account buffer.
// Deposits are written at their SlotIndex; slots beyond VoterMaxDeposits
// and unused entries are left zeroed.
func EncodeVoter(rec *domain.VoterRecord) []byte {
	buf := make([]byte, VoterAccountSize)
	copy(buf, VoterDiscriminator[:])
	copy(buf[VoterAuthorityOffset:], rec.Authority[:])
	copy(buf[VoterRegistrarOffset:], rec.Registrar[:])

	for _, d := range rec.Deposits {
		if !d.IsUsed || int(d.SlotIndex) >= VoterMaxDeposits {
			continue
		}
		tag, ok := LockupKindTag(d.Lockup.Kind)
		if !ok {
			continue
		}
		base := VoterDepositsOffset + int(d.SlotIndex)*DepositStride
		binary.LittleEndian.PutUint64(buf[base+depositStartTsOffset:], uint64(d.Lockup.StartTs))
		binary.LittleEndian.PutUint64(buf[base+depositEndTsOffset:], uint64(d.Lockup.EndTs))
		buf[base+depositKindOffset] = tag
		binary.LittleEndian.PutUint64(buf[base+depositAmountDepositedOffset:], d.AmountDepositedNative)
		binary.LittleEndian.PutUint64(buf[base+depositAmountInitiallyLockedOffset:], d.AmountInitiallyLockedNative)
		buf[base+depositIsUsedOffset] = 1
		buf[base+depositVotingMintIdxOffset] = d.VotingMintConfigIdx
	}
	return buf
}

// EncodeRegistrar serializes r into a Registrar account buffer.
func EncodeRegistrar(r *Registrar) []byte {
	buf := make([]byte, RegistrarAccountSize)
	copy(buf, RegistrarDiscriminator[:])
	copy(buf[RegistrarRealmOffset:], r.Realm[:])
	copy(buf[RegistrarGoverningMintOffset:], r.GoverningMint[:])
	copy(buf[RegistrarAuthorityOffset:], r.RealmAuthority[:])

	for i, mc := range r.VotingMints {
		if i >= RegistrarMaxVotingMints {
			break
		}
		base := RegistrarVotingMintsOffset + i*VotingMintStride
		copy(buf[base+mintOffset:], mc.Mint[:])
		copy(buf[base+mintGrantAuthorityOffset:], mc.GrantAuthority[:])
		binary.LittleEndian.PutUint64(buf[base+mintBaselineScaledOffset:], mc.BaselineScaledFactor)
		binary.LittleEndian.PutUint64(buf[base+mintMaxExtraScaledOffset:], mc.MaxExtraScaledFactor)
		binary.LittleEndian.PutUint64(buf[base+mintSaturationSecsOffset:], mc.LockupSaturationSecs)
		buf[base+mintDigitShiftOffset] = byte(mc.DigitShift)
	}
	binary.LittleEndian.PutUint64(buf[RegistrarTimeOffsetOffset:], uint64(r.TimeOffset))
	return buf
}
