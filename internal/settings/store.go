package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"stockwidget/internal/model"
)

// Store persists the last applied snapshot so a restart comes back with
// the configuration the operator applied last, not the file default.
type Store struct {
	blob model.BlobStore
}

// NewStore creates a Store over blob.
func NewStore(blob model.BlobStore) *Store {
	return &Store{blob: blob}
}

// Load returns the persisted snapshot. ok is false when nothing usable is
// stored; a corrupt or invalid copy is reported as not stored.
func (s *Store) Load(ctx context.Context) (Settings, bool, error) {
	data, err := s.blob.Load(ctx)
	if err != nil {
		return Settings{}, false, err
	}
	if len(data) == 0 {
		return Settings{}, false, nil
	}
	st := Default()
	if err := json.Unmarshal(data, &st); err != nil {
		return Settings{}, false, nil
	}
	if st.Validate() != nil {
		return Settings{}, false, nil
	}
	return st, true, nil
}

// Save overwrites the persisted snapshot.
func (s *Store) Save(ctx context.Context, st Settings) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return s.blob.Save(ctx, data)
}
