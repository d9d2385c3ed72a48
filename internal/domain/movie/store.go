package movie

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Store owns the current dataset. Reloads build a complete Dataset first and
// then swap the pointer under the write lock, so readers see either the old
// or the new dataset, never a partial one.
type Store struct {
	mu      sync.RWMutex
	current *Dataset
	logger  *slog.Logger
}

// NewStore creates an empty store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{logger: logger}
}

// Load reads src, builds a dataset and makes it current.
// On failure the previously loaded dataset, if any, stays in place.
func (s *Store) Load(ctx context.Context, src Source) (*Dataset, error) {
	records, err := src.Read(ctx)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return nil, err
		}
		return nil, &LoadError{Source: src.Name(), Index: -1, Reason: "read snapshot", Err: err}
	}
	if len(records) == 0 {
		return nil, &LoadError{Source: src.Name(), Index: -1, Reason: "snapshot is empty"}
	}

	ds, err := NewDataset(src.Name(), records)
	if err != nil {
		return nil, err
	}

	s.Swap(ds)
	s.logger.Info("dataset loaded", "source", ds.Source(), "records", ds.Len(), "version", ds.Version())
	return ds, nil
}

// Swap makes ds the current dataset.
func (s *Store) Swap(ds *Dataset) {
	s.mu.Lock()
	s.current = ds
	s.mu.Unlock()
}

// Dataset returns the current dataset.
func (s *Store) Dataset() (*Dataset, error) {
	s.mu.RLock()
	ds := s.current
	s.mu.RUnlock()
	if ds == nil {
		return nil, fmt.Errorf("store: %w", ErrDatasetUnavailable)
	}
	return ds, nil
}
