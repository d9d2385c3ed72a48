package movie

import "context"

// Source reads a pre-processed snapshot.
type Source interface {
	// Name identifies the snapshot in logs and errors.
	Name() string
	Read(ctx context.Context) ([]SnapshotRecord, error)
}
