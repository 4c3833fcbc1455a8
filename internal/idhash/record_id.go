package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeEventID computes a deterministic event_id using SHA256.
// Formula: SHA256(tx_signature|program_id|event_index)
// Returns hex-encoded hash (64 characters).
func ComputeEventID(
	txSignature string,
	programID string,
	eventIndex int,
) string {
	data := fmt.Sprintf("%s|%s|%d",
		txSignature,
		programID,
		eventIndex,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeFeedRecordID computes a deterministic record_id for one feed detail.
// Formula: SHA256(feed|window|slot|timestamp)
// Returns hex-encoded hash (64 characters).
func ComputeFeedRecordID(
	feed string,
	window string,
	slot uint64,
	timestamp uint32,
) string {
	data := fmt.Sprintf("%s|%s|%d|%d",
		feed,
		window,
		slot,
		timestamp,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
