package vsr

import (
	"bytes"
	"errors"
	"fmt"

	"vsr-power-lab/internal/domain"
)

// Variant is the structural kind of a VSR account.
type Variant int

const (
	VariantUnknown Variant = iota
	VariantRegistrar
	VariantVoter
)

// String returns the string representation of Variant.
func (v Variant) String() string {
	switch v {
	case VariantRegistrar:
		return "registrar"
	case VariantVoter:
		return "voter"
	}
	return "unknown"
}

// ErrClassificationMismatch is returned when an account carries a known
// discriminator but fails the layout checks for that variant.
var ErrClassificationMismatch = errors.New("classification mismatch")

// ErrOwnerMismatch is a classification mismatch caused by an account owned
// by a program other than the expected one.
var ErrOwnerMismatch = fmt.Errorf("%w: owner", ErrClassificationMismatch)

// Classify determines the account variant from its discriminator and length.
// Unrecognized buffers are VariantUnknown.
func Classify(data []byte) Variant {
	v, _ := ClassifyStrict(data)
	return v
}

// ClassifyStrict behaves like Classify but also reports
// ErrClassificationMismatch when the discriminator matches and the length
// does not.
func ClassifyStrict(data []byte) (Variant, error) {
	if len(data) < DiscriminatorSize {
		return VariantUnknown, nil
	}
	disc := data[:DiscriminatorSize]

	switch {
	case bytes.Equal(disc, VoterDiscriminator[:]):
		if len(data) < VoterDepositsOffset || len(data) > VoterAccountSize {
			return VariantUnknown, fmt.Errorf("%w: voter discriminator with length %d", ErrClassificationMismatch, len(data))
		}
		return VariantVoter, nil
	case bytes.Equal(disc, RegistrarDiscriminator[:]):
		if len(data) != RegistrarAccountSize {
			return VariantUnknown, fmt.Errorf("%w: registrar discriminator with length %d", ErrClassificationMismatch, len(data))
		}
		return VariantRegistrar, nil
	}
	return VariantUnknown, nil
}

// ClassifyAccount classifies acct, additionally requiring it to be owned by
// programID when programID is non-zero.
func ClassifyAccount(acct domain.RawAccount, programID domain.PubKey) (Variant, error) {
	v, err := ClassifyStrict(acct.Data)
	if err != nil || v == VariantUnknown {
		return v, err
	}
	if !programID.IsZero() && acct.Owner != programID {
		return VariantUnknown, fmt.Errorf("%w: %s owned by %s, expected %s", ErrOwnerMismatch, acct.Address, acct.Owner, programID)
	}
	return v, nil
}
