package domain

import (
	"bytes"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// PubKey is a 32-byte Solana public key.
type PubKey = solana.PublicKey

// PubKeySize is the encoded width of a public key.
const PubKeySize = solana.PublicKeyLength

// ParsePubKey parses a base58 public key.
func ParsePubKey(s string) (PubKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return PubKey{}, fmt.Errorf("parse pubkey %q: %w", s, err)
	}
	return pk, nil
}

// MustPubKey parses a base58 public key and panics on error.
// Intended for constants and tests.
func MustPubKey(s string) PubKey {
	return solana.MustPublicKeyFromBase58(s)
}

// PubKeyFromBytes copies b into a PubKey. b must be exactly 32 bytes.
func PubKeyFromBytes(b []byte) (PubKey, error) {
	if len(b) != PubKeySize {
		return PubKey{}, fmt.Errorf("pubkey must be %d bytes, got %d", PubKeySize, len(b))
	}
	return solana.PublicKeyFromBytes(b), nil
}

// ComparePubKeys orders keys by raw bytes.
func ComparePubKeys(a, b PubKey) int {
	return bytes.Compare(a[:], b[:])
}
