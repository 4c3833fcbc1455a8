// Package lookup answers point-in-time questions over stored feed records.
package lookup

import (
	"errors"

	"solana-idl-kit/internal/domain"
)

// ErrNoRecords is returned when there is nothing to search.
var ErrNoRecords = errors.New("no feed records available")

// RecordAt returns the record in force at target: the latest one with a
// timestamp at or before it. records must be ordered by (timestamp, slot), as
// the feed record stores return them; ties resolve to the highest slot.
// An empty window matches both windows.
// Returns (nil, nil) if the feed had no answer yet at target.
// Returns ErrNoRecords if no record of the window exists.
func RecordAt(target int64, window domain.FeedWindow, records []*domain.FeedRecord) (*domain.FeedRecord, error) {
	found := false
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if window != "" && r.Window != window {
			continue
		}
		found = true
		if r.Timestamp <= target {
			return r, nil
		}
	}

	if !found {
		return nil, ErrNoRecords
	}
	return nil, nil
}
