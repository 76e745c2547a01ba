package model

import (
	"time"

	"dynamicFee/internal/fee"
	"dynamicFee/internal/fixedpoint"
)

// FeeChangeRecord is the stored form of a fee-changed notification.
// Fee and volatility values are decimal fractions ("0.05" == 5%).
type FeeChangeRecord struct {
	ID         string    `json:"id"`
	Pool       string    `json:"pool"`
	OldFee     string    `json:"old_fee"`
	NewFee     string    `json:"new_fee"`
	Volatility string    `json:"volatility"`
	Timestamp  uint64    `json:"timestamp"`
	ObservedAt time.Time `json:"observed_at"`
}

func NewFeeChangeRecord(change fee.FeeChange) FeeChangeRecord {
	return FeeChangeRecord{
		ID:         change.ID,
		Pool:       change.Pool.Hex(),
		OldFee:     fixedpoint.Format(change.OldFee),
		NewFee:     fixedpoint.Format(change.NewFee),
		Volatility: fixedpoint.Format(change.Volatility),
		Timestamp:  change.Timestamp,
		ObservedAt: time.Unix(int64(change.Timestamp), 0).UTC(),
	}
}
