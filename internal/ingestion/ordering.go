package ingestion

import (
	"slices"

	"solana-idl-kit/internal/solana"
)

// OldestFirst reverses a newest-first getSignaturesForAddress listing and
// stably orders it by slot ASC, keeping the RPC order within a slot.
func OldestFirst(sigs []solana.SignatureInfo) {
	slices.Reverse(sigs)
	slices.SortStableFunc(sigs, compareSignatures)
}

// compareSignatures returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (slot ASC)
func compareSignatures(a, b solana.SignatureInfo) int {
	switch {
	case a.Slot < b.Slot:
		return -1
	case a.Slot > b.Slot:
		return 1
	}
	return 0
}
