package vsr

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"

	"vsr-power-lab/internal/domain"
)

// ErrNoViableBump is returned when every bump seed yields an on-curve point.
var ErrNoViableBump = errors.New("unable to find a viable program address bump seed")

const pdaMarker = "ProgramDerivedAddress"

// DeriveVoterAddress returns the voter PDA for authority under registrar:
// seeds [registrar, "voter", authority].
func DeriveVoterAddress(registrar, authority, programID domain.PubKey) (domain.PubKey, uint8, error) {
	return findProgramAddress([][]byte{registrar[:], []byte("voter"), authority[:]}, programID)
}

// findProgramAddress derives a Program Derived Address.
// Tries bumps from 255 down and returns the first off-curve hash.
func findProgramAddress(seeds [][]byte, programID domain.PubKey) (domain.PubKey, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{byte(bump)})
		h.Write(programID[:])
		h.Write([]byte(pdaMarker))
		sum := h.Sum(nil)

		if !isOnCurve(sum) {
			var pk domain.PubKey
			copy(pk[:], sum)
			return pk, uint8(bump), nil
		}
	}
	return domain.PubKey{}, 0, ErrNoViableBump
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
