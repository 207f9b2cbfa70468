package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Snapshot is one durable checkpoint of the source's offset vector.
type Snapshot struct {
	CheckpointID int64   `json:"checkpoint_id"`
	Offsets      []int64 `json:"offsets"`
}

// StateStore persists the latest completed checkpoint as a single JSON file,
// replaced atomically so a crash mid-write leaves the previous checkpoint
// intact.
type StateStore struct {
	path string
}

func NewStateStore(dir string) (*StateStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("state: create %s: %w", dir, err)
	}
	return &StateStore{path: filepath.Join(dir, "checkpoint.json")}, nil
}

func (s *StateStore) Save(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("state: encode checkpoint %d: %w", snap.CheckpointID, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("state: write checkpoint %d: %w", snap.CheckpointID, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("state: publish checkpoint %d: %w", snap.CheckpointID, err)
	}
	return nil
}

// Load returns the latest persisted checkpoint, or ok=false when none has
// been taken yet.
func (s *StateStore) Load() (Snapshot, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("state: read %s: %w", s.path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("state: decode %s: %w", s.path, err)
	}
	return snap, true, nil
}
