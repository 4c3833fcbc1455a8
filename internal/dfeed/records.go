package dfeed

import (
	"solana-idl-kit/internal/domain"
	"solana-idl-kit/internal/idhash"
	"solana-idl-kit/internal/solana"
)

// Records flattens both windows into storable records, live window first.
func (f *Feed) Records(address solana.PublicKey) []*domain.FeedRecord {
	records := make([]*domain.FeedRecord, 0, len(f.LiveData)+len(f.HistoricalData))
	add := func(window domain.FeedWindow, details []FeedDetail) {
		for _, d := range details {
			records = append(records, &domain.FeedRecord{
				RecordID:  idhash.ComputeFeedRecordID(address.String(), string(window), d.Slot, d.Timestamp),
				Feed:      address.String(),
				Window:    window,
				Slot:      int64(d.Slot),
				Timestamp: int64(d.Timestamp),
				Answer:    d.Price.String(),
				Price:     d.Decimal(f.Decimals),
			})
		}
	}
	add(domain.FeedWindowLive, f.LiveData)
	add(domain.FeedWindowHistorical, f.HistoricalData)
	return records
}
