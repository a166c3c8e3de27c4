package vsr

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vsr-power-lab/internal/domain"
)

func testKey(b byte) domain.PubKey {
	var pk domain.PubKey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func voterAccount(addr, authority domain.PubKey, deposits ...domain.DepositEntry) domain.RawAccount {
	return domain.RawAccount{
		Address: addr,
		Owner:   solana.MustPublicKeyFromBase58(ProgramID),
		Data: EncodeVoter(&domain.VoterRecord{
			Authority: authority,
			Registrar: testKey(0xee),
			Deposits:  deposits,
		}),
	}
}

func used(slot uint8, amount uint64, kind domain.LockupKind, start, end int64) domain.DepositEntry {
	return domain.DepositEntry{
		SlotIndex:             slot,
		IsUsed:                true,
		AmountDepositedNative: amount,
		Lockup:                domain.Lockup{Kind: kind, StartTs: start, EndTs: end},
	}
}

func TestDiscriminators(t *testing.T) {
	assert.Equal(t, Discriminator{0xf1, 0x5d, 0x23, 0xbf, 0xfe, 0x93, 0x11, 0xca}, VoterDiscriminator)
	assert.Equal(t, Discriminator{0xc1, 0xca, 0xcd, 0x33, 0x4e, 0xa8, 0x96, 0x80}, RegistrarDiscriminator)
	assert.NotEqual(t, VoterDiscriminator, RegistrarDiscriminator)
}

func TestClassify(t *testing.T) {
	voter := voterAccount(testKey(1), testKey(2)).Data
	registrar := EncodeRegistrar(&Registrar{})

	tests := []struct {
		name     string
		data     []byte
		want     Variant
		mismatch bool
	}{
		{"voter full size", voter, VariantVoter, false},
		{"voter truncated to header", voter[:VoterDepositsOffset], VariantVoter, false},
		{"voter header too short", voter[:VoterDepositsOffset-1], VariantUnknown, true},
		{"voter oversized", append(append([]byte{}, voter...), 0), VariantUnknown, true},
		{"registrar", registrar, VariantRegistrar, false},
		{"registrar wrong size", registrar[:RegistrarAccountSize-8], VariantUnknown, true},
		{"empty", nil, VariantUnknown, false},
		{"short", []byte{1, 2, 3}, VariantUnknown, false},
		{"random discriminator", make([]byte, VoterAccountSize), VariantUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClassifyStrict(tt.data)
			assert.Equal(t, tt.want, got)
			if tt.mismatch {
				assert.ErrorIs(t, err, ErrClassificationMismatch)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, Classify(tt.data))
		})
	}
}

func TestClassifyAccount_Owner(t *testing.T) {
	program := solana.MustPublicKeyFromBase58(ProgramID)
	acct := voterAccount(testKey(1), testKey(2))

	v, err := ClassifyAccount(acct, program)
	require.NoError(t, err)
	assert.Equal(t, VariantVoter, v)

	acct.Owner = testKey(9)
	v, err = ClassifyAccount(acct, program)
	assert.ErrorIs(t, err, ErrClassificationMismatch)
	assert.ErrorIs(t, err, ErrOwnerMismatch)
	assert.Equal(t, VariantUnknown, v)

	v, err = ClassifyAccount(acct, domain.PubKey{})
	require.NoError(t, err)
	assert.Equal(t, VariantVoter, v)
}

func TestDecodeVoter(t *testing.T) {
	acct := voterAccount(testKey(1), testKey(2),
		used(0, 1_000_000, domain.LockupNone, 0, 0),
		used(3, 5_000_000, domain.LockupCliff, 1_700_000_000, 1_800_000_000),
		used(31, 7, domain.LockupVesting, 10, 20),
	)

	rec, err := DecodeVoter(acct)
	require.NoError(t, err)
	assert.Equal(t, testKey(1), rec.Address)
	assert.Equal(t, testKey(2), rec.Authority)
	assert.Equal(t, testKey(0xee), rec.Registrar)
	require.Len(t, rec.Deposits, VoterMaxDeposits)

	for i, d := range rec.Deposits {
		assert.Equal(t, uint8(i), d.SlotIndex)
	}

	usedDeposits := rec.UsedDeposits()
	require.Len(t, usedDeposits, 3)
	assert.Equal(t, used(0, 1_000_000, domain.LockupNone, 0, 0), usedDeposits[0])
	assert.Equal(t, used(3, 5_000_000, domain.LockupCliff, 1_700_000_000, 1_800_000_000), usedDeposits[1])
	assert.Equal(t, used(31, 7, domain.LockupVesting, 10, 20), usedDeposits[2])
}

func TestDecodeDeposits_TruncatedBuffer(t *testing.T) {
	acct := voterAccount(testKey(1), testKey(2),
		used(0, 10, domain.LockupNone, 0, 0),
		used(1, 20, domain.LockupNone, 0, 0),
		used(2, 30, domain.LockupNone, 0, 0),
	)

	// Two full slots plus half of the third.
	data := acct.Data[:VoterDepositsOffset+2*DepositStride+DepositStride/2]
	deposits := DecodeDeposits(data)
	require.Len(t, deposits, 2)
	assert.Equal(t, uint64(20), deposits[1].AmountDepositedNative)

	assert.Empty(t, DecodeDeposits(acct.Data[:VoterDepositsOffset]))
	assert.Empty(t, DecodeDeposits(nil))
}

func TestDecodeDeposits_MalformedSlots(t *testing.T) {
	acct := voterAccount(testKey(1), testKey(2),
		used(0, 10, domain.LockupCliff, 1, 2),
		used(1, 20, domain.LockupCliff, 1, 2),
	)
	data := acct.Data

	// is_used byte outside {0,1}.
	data[VoterDepositsOffset+depositIsUsedOffset] = 2
	// Unknown lockup kind tag.
	data[VoterDepositsOffset+DepositStride+depositKindOffset] = 9

	deposits := DecodeDeposits(data)
	assert.False(t, deposits[0].IsUsed)
	assert.False(t, deposits[1].IsUsed)
	assert.Zero(t, deposits[0].AmountDepositedNative)
}

func TestDecodeDeposits_OnChainTags(t *testing.T) {
	tests := []struct {
		tag  byte
		want domain.LockupKind
	}{
		{0, domain.LockupNone},
		{1, domain.LockupVesting},
		{2, domain.LockupMonthly},
		{3, domain.LockupCliff},
		{4, domain.LockupConstant},
	}
	for _, tt := range tests {
		data := voterAccount(testKey(1), testKey(2), used(0, 1, domain.LockupNone, 5, 6)).Data
		data[VoterDepositsOffset+depositKindOffset] = tt.tag
		d := DecodeDeposits(data)[0]
		assert.True(t, d.IsUsed)
		assert.Equal(t, tt.want, d.Lockup.Kind, "tag %d", tt.tag)
	}
}

func TestDecodeVoter_RejectsOtherVariants(t *testing.T) {
	_, err := DecodeVoter(domain.RawAccount{Data: EncodeRegistrar(&Registrar{})})
	assert.ErrorIs(t, err, ErrClassificationMismatch)

	_, err = DecodeVoter(domain.RawAccount{Data: []byte{1, 2, 3}})
	assert.ErrorIs(t, err, ErrClassificationMismatch)
}

func TestDecodeVoter_NegativeTimestamps(t *testing.T) {
	acct := voterAccount(testKey(1), testKey(2), used(0, 10, domain.LockupCliff, -5, -1))
	rec, err := DecodeVoter(acct)
	require.NoError(t, err)
	assert.Equal(t, int64(-5), rec.Deposits[0].Lockup.StartTs)
	assert.Equal(t, int64(-1), rec.Deposits[0].Lockup.EndTs)
}

func TestDecodeRegistrar(t *testing.T) {
	mint := testKey(7)
	src := &Registrar{
		Realm:          testKey(3),
		GoverningMint:  mint,
		RealmAuthority: testKey(4),
		VotingMints: []VotingMintConfig{
			{Mint: testKey(8), BaselineScaledFactor: 1_000_000_000},
			{
				Mint:                 mint,
				GrantAuthority:       testKey(5),
				BaselineScaledFactor: 1_000_000_000,
				MaxExtraScaledFactor: 2_000_000_000,
				LockupSaturationSecs: 5 * 365 * 86400,
				DigitShift:           -3,
			},
		},
		TimeOffset: -120,
	}
	acct := domain.RawAccount{Address: testKey(6), Data: EncodeRegistrar(src)}

	r, err := DecodeRegistrar(acct)
	require.NoError(t, err)
	assert.Equal(t, testKey(3), r.Realm)
	assert.Equal(t, mint, r.GoverningMint)
	assert.Equal(t, testKey(4), r.RealmAuthority)
	assert.Equal(t, int64(-120), r.TimeOffset)
	require.Len(t, r.VotingMints, RegistrarMaxVotingMints)
	assert.Equal(t, int8(-3), r.VotingMints[1].DigitShift)
	assert.False(t, r.VotingMints[2].InUse())

	cfg, err := r.RegistrarConfigFor(domain.PubKey{})
	require.NoError(t, err)
	assert.Equal(t, testKey(6), cfg.Registrar)
	assert.Equal(t, mint, cfg.GoverningMint)
	assert.Equal(t, uint8(1), cfg.VotingMintIndex)
	assert.True(t, cfg.BaselineVoteWeight.Equal(decimal.NewFromInt(1)))
	assert.True(t, cfg.MaxExtraLockupVoteWeight.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, uint64(5*365*86400), cfg.LockupSaturationSecs)
	assert.Equal(t, int64(-120), cfg.TimeOffset)

	_, err = r.RegistrarConfigFor(testKey(9))
	assert.Error(t, err)
}

func TestDecodeRegistrar_RawOffsets(t *testing.T) {
	data := EncodeRegistrar(&Registrar{})
	base := RegistrarVotingMintsOffset + VotingMintStride
	mint := testKey(2)
	copy(data[base:], mint[:])
	binary.LittleEndian.PutUint64(data[base+64:], 500_000_000)
	binary.LittleEndian.PutUint64(data[base+80:], 86400)
	binary.LittleEndian.PutUint64(data[776:], uint64(3600))

	r, err := DecodeRegistrar(domain.RawAccount{Data: data})
	require.NoError(t, err)
	cfg, err := r.RegistrarConfigFor(mint)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), cfg.VotingMintIndex)
	assert.Equal(t, "0.5", cfg.BaselineVoteWeight.String())
	assert.Equal(t, uint64(86400), cfg.LockupSaturationSecs)
	assert.Equal(t, int64(3600), cfg.TimeOffset)
}

func TestPhantomFilter(t *testing.T) {
	f := NewPhantomFilter()

	tests := []struct {
		name    string
		d       domain.DepositEntry
		phantom bool
	}{
		{"placeholder with empty lockup", used(0, 1, domain.LockupNone, 0, 0), true},
		{"placeholder with cliff kind", used(0, 1, domain.LockupCliff, 0, 0), false},
		{"placeholder with start ts", used(0, 1, domain.LockupNone, 100, 0), false},
		{"placeholder with end ts", used(0, 1, domain.LockupNone, 0, 100), false},
		{"small legit deposit", used(0, 2, domain.LockupNone, 0, 0), false},
		{"large unlocked deposit", used(0, 1_000_000, domain.LockupNone, 0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.phantom, f.IsPhantom(tt.d))
		})
	}
}

func TestPhantomFilter_CustomAmounts(t *testing.T) {
	f := NewPhantomFilter(1, 1000)
	kept, dropped := f.Filter([]domain.DepositEntry{
		used(0, 1, domain.LockupNone, 0, 0),
		used(1, 1000, domain.LockupNone, 0, 0),
		used(2, 1000, domain.LockupMonthly, 1, 2),
		used(3, 5, domain.LockupNone, 0, 0),
	})
	assert.Equal(t, 2, dropped)
	require.Len(t, kept, 2)
	assert.Equal(t, uint8(2), kept[0].SlotIndex)
	assert.Equal(t, uint8(3), kept[1].SlotIndex)
}

func TestDeriveVoterAddress(t *testing.T) {
	program := solana.MustPublicKeyFromBase58(ProgramID)
	registrar := testKey(3)
	authority := solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")

	got, bump, err := DeriveVoterAddress(registrar, authority, program)
	require.NoError(t, err)

	want, wantBump, err := solana.FindProgramAddress(
		[][]byte{registrar[:], []byte("voter"), authority[:]},
		program,
	)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, wantBump, bump)
	assert.False(t, isOnCurve(got[:]))
}

func TestDecodeError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := error(&DecodeError{Account: testKey(1), Field: "registrar", Err: inner})
	assert.ErrorIs(t, err, inner)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "registrar", de.Field)
}
