package replay

import (
	"context"

	"dynamicFee/internal/model"
	"dynamicFee/internal/storage/postgres"
)

// DBStateStore stores the snapshot in the fee_engine_state table.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (model.EngineSnapshot, bool, error) {
	if s == nil || s.Store == nil {
		return model.EngineSnapshot{}, false, nil
	}
	return s.Store.LoadSnapshot(ctx, s.Name)
}

func (s *DBStateStore) Save(ctx context.Context, snap model.EngineSnapshot) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveSnapshot(ctx, s.Name, snap)
}
