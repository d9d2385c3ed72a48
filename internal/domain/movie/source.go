package movie

import (
	"context"
	"slices"
)

// StaticSource serves snapshot records that are already in memory.
type StaticSource struct {
	Label   string
	Records []SnapshotRecord
}

func (s StaticSource) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

func (s StaticSource) Read(_ context.Context) ([]SnapshotRecord, error) {
	return slices.Clone(s.Records), nil
}

// SnapshotOf converts movies back into snapshot records.
func SnapshotOf(movies ...Movie) []SnapshotRecord {
	out := make([]SnapshotRecord, 0, len(movies))
	for _, m := range movies {
		m := m.Clone()
		rec := SnapshotRecord{
			ID:             &m.ID,
			Title:          &m.Title,
			Year:           &m.Year,
			Rating:         &m.Rating,
			Genres:         m.Genres,
			Actors:         m.Actors,
			RuntimeMinutes: m.RuntimeMinutes,
		}
		if m.Director != "" {
			rec.Director = &m.Director
		}
		out = append(out, rec)
	}
	return out
}
