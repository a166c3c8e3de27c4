package domain

// DepositEntry is one decoded deposit slot of a voter record.
// Slots with IsUsed=false must be ignored entirely.
type DepositEntry struct {
	SlotIndex             uint8
	IsUsed                bool
	AmountDepositedNative uint64 // 6-decimal token units
	Lockup                Lockup

	// Audit-only fields; not used in power math.
	AmountInitiallyLockedNative uint64
	VotingMintConfigIdx         uint8
}

// VoterRecord is a decoded VSR voter account.
type VoterRecord struct {
	Address   PubKey
	Authority PubKey // key permitted to control this record's stake
	Registrar PubKey
	Deposits  []DepositEntry
}

// UsedDeposits returns deposits with IsUsed=true, preserving slot order.
func (v *VoterRecord) UsedDeposits() []DepositEntry {
	used := make([]DepositEntry, 0, len(v.Deposits))
	for _, d := range v.Deposits {
		if d.IsUsed {
			used = append(used, d)
		}
	}
	return used
}
