package storage

import (
	"context"

	"dynamicFee/internal/model"
)

// Storage defines a sink for fee-change records.
type Storage interface {
	PutFeeChanges(ctx context.Context, changes []model.FeeChangeRecord) error
}

// LogStorage defines a sink for raw pool logs.
type LogStorage interface {
	PutLogBatch(ctx context.Context, records []model.LogRecord) error
}

var (
	_ Storage    = (*JsonlStorage)(nil)
	_ LogStorage = (*JsonlStorage)(nil)
)
