package vsr

import (
	"fmt"

	"github.com/shopspring/decimal"

	"vsr-power-lab/internal/domain"
	"vsr-power-lab/internal/layout"
)

// VotingMintConfig is one entry of the registrar's voting_mints array.
type VotingMintConfig struct {
	Index                int
	Mint                 domain.PubKey
	GrantAuthority       domain.PubKey
	BaselineScaledFactor uint64
	MaxExtraScaledFactor uint64
	LockupSaturationSecs uint64
	DigitShift           int8
}

// InUse reports whether the entry is configured.
func (c VotingMintConfig) InUse() bool {
	return !c.Mint.IsZero()
}

// Registrar is a decoded VSR registrar account.
type Registrar struct {
	Address        domain.PubKey
	Realm          domain.PubKey
	GoverningMint  domain.PubKey
	RealmAuthority domain.PubKey
	VotingMints    []VotingMintConfig
	TimeOffset     int64
}

// DecodeRegistrar decodes a Registrar account.
func DecodeRegistrar(acct domain.RawAccount) (*Registrar, error) {
	v, err := ClassifyStrict(acct.Data)
	if err != nil {
		return nil, err
	}
	if v != VariantRegistrar {
		return nil, fmt.Errorf("%w: %s is %s, not registrar", ErrClassificationMismatch, acct.Address, v)
	}

	data := acct.Data
	r := &Registrar{Address: acct.Address}
	fields := []struct {
		name string
		off  int
		dst  *domain.PubKey
	}{
		{"realm", RegistrarRealmOffset, &r.Realm},
		{"realm_governing_token_mint", RegistrarGoverningMintOffset, &r.GoverningMint},
		{"realm_authority", RegistrarAuthorityOffset, &r.RealmAuthority},
	}
	for _, f := range fields {
		pk, err := layout.ReadPubKey(data, f.off)
		if err != nil {
			return nil, &DecodeError{Account: acct.Address, Field: f.name, Err: err}
		}
		*f.dst = pk
	}

	for i := 0; i < RegistrarMaxVotingMints; i++ {
		mc, err := decodeVotingMint(data, i)
		if err != nil {
			return nil, &DecodeError{Account: acct.Address, Field: fmt.Sprintf("voting_mints[%d]", i), Err: err}
		}
		r.VotingMints = append(r.VotingMints, mc)
	}

	if r.TimeOffset, err = layout.ReadI64(data, RegistrarTimeOffsetOffset); err != nil {
		return nil, &DecodeError{Account: acct.Address, Field: "time_offset", Err: err}
	}
	return r, nil
}

func decodeVotingMint(data []byte, idx int) (VotingMintConfig, error) {
	base := RegistrarVotingMintsOffset + idx*VotingMintStride
	mc := VotingMintConfig{Index: idx}
	var err error
	if mc.Mint, err = layout.ReadPubKey(data, base+mintOffset); err != nil {
		return mc, err
	}
	if mc.GrantAuthority, err = layout.ReadPubKey(data, base+mintGrantAuthorityOffset); err != nil {
		return mc, err
	}
	if mc.BaselineScaledFactor, err = layout.ReadU64(data, base+mintBaselineScaledOffset); err != nil {
		return mc, err
	}
	if mc.MaxExtraScaledFactor, err = layout.ReadU64(data, base+mintMaxExtraScaledOffset); err != nil {
		return mc, err
	}
	if mc.LockupSaturationSecs, err = layout.ReadU64(data, base+mintSaturationSecsOffset); err != nil {
		return mc, err
	}
	if mc.DigitShift, err = layout.ReadI8(data, base+mintDigitShiftOffset); err != nil {
		return mc, err
	}
	return mc, nil
}

// VotingMint returns the configured entry for mint.
func (r *Registrar) VotingMint(mint domain.PubKey) (VotingMintConfig, bool) {
	for _, mc := range r.VotingMints {
		if mc.InUse() && mc.Mint == mint {
			return mc, true
		}
	}
	return VotingMintConfig{}, false
}

// RegistrarConfigFor builds the multiplier configuration for mint.
// A zero mint selects the realm's governing mint.
func (r *Registrar) RegistrarConfigFor(mint domain.PubKey) (domain.RegistrarConfig, error) {
	if mint.IsZero() {
		mint = r.GoverningMint
	}
	mc, ok := r.VotingMint(mint)
	if !ok {
		return domain.RegistrarConfig{}, fmt.Errorf("registrar %s has no voting mint %s", r.Address, mint)
	}
	return domain.RegistrarConfig{
		Registrar:                r.Address,
		GoverningMint:            mc.Mint,
		VotingMintIndex:          uint8(mc.Index),
		BaselineVoteWeight:       scaledToFixed(mc.BaselineScaledFactor),
		MaxExtraLockupVoteWeight: scaledToFixed(mc.MaxExtraScaledFactor),
		LockupSaturationSecs:     mc.LockupSaturationSecs,
		TimeOffset:               r.TimeOffset,
	}, nil
}

func scaledToFixed(v uint64) decimal.Decimal {
	return decimal.NewFromUint64(v).Div(decimal.NewFromInt(ScaledFactorBase))
}
