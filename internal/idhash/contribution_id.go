package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeContributionID computes a deterministic contribution_id using SHA256.
// Formula: SHA256(snapshot_id|wallet|source_account|slot_index)
// Returns hex-encoded hash (64 characters).
func ComputeContributionID(
	snapshotID string,
	wallet string,
	sourceAccount string,
	slotIndex int,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		snapshotID,
		wallet,
		sourceAccount,
		slotIndex,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
