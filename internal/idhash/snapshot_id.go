package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"

	"vsr-power-lab/internal/domain"
)

// ComputeSnapshotID computes a deterministic snapshot_id using SHA256.
// Formula: SHA256(registrar|governing_mint|evaluated_at|accounts_digest)
// Returns hex-encoded hash (64 characters).
func ComputeSnapshotID(
	registrar string,
	governingMint string,
	evaluatedAt int64,
	accountsDigest string,
) string {
	data := fmt.Sprintf("%s|%s|%d|%s",
		registrar,
		governingMint,
		evaluatedAt,
		accountsDigest,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeAccountsDigest hashes an account snapshot independent of input order.
// Each account contributes address|owner|sha256(data); entries are sorted by
// address and duplicate addresses count once.
func ComputeAccountsDigest(accounts []domain.RawAccount) string {
	lines := make([]string, 0, len(accounts))
	seen := make(map[domain.PubKey]struct{}, len(accounts))
	for _, a := range accounts {
		if _, dup := seen[a.Address]; dup {
			continue
		}
		seen[a.Address] = struct{}{}
		dataHash := sha256.Sum256(a.Data)
		lines = append(lines, fmt.Sprintf("%s|%s|%s", a.Address, a.Owner, hex.EncodeToString(dataHash[:])))
	}
	slices.Sort(lines)

	h := sha256.New()
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
