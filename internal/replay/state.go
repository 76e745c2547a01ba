package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"dynamicFee/internal/model"
)

// StateStore persists engine snapshots between runs.
type StateStore interface {
	Load(ctx context.Context) (model.EngineSnapshot, bool, error)
	Save(ctx context.Context, snap model.EngineSnapshot) error
}

// FileStateStore stores the snapshot in a local JSON file.
type FileStateStore struct {
	Path string
}

func (s *FileStateStore) Load(ctx context.Context) (model.EngineSnapshot, bool, error) {
	if s == nil || s.Path == "" {
		return model.EngineSnapshot{}, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.EngineSnapshot{}, false, nil
		}
		return model.EngineSnapshot{}, false, fmt.Errorf("read state: %w", err)
	}

	var snap model.EngineSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.EngineSnapshot{}, false, fmt.Errorf("parse state: %w", err)
	}
	return snap, true, nil
}

func (s *FileStateStore) Save(ctx context.Context, snap model.EngineSnapshot) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}
