package movie

import "slices"

// Movie is one film in the loaded dataset.
type Movie struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Year           int      `json:"year"`
	Rating         float64  `json:"rating"`
	Director       string   `json:"director"`
	Genres         []string `json:"genres"`
	Actors         []string `json:"actors"`
	RuntimeMinutes *int     `json:"runtime_minutes,omitempty"`
}

// Clone returns a deep copy so callers cannot reach dataset internals.
func (m Movie) Clone() Movie {
	out := m
	out.Genres = slices.Clone(m.Genres)
	out.Actors = slices.Clone(m.Actors)
	if out.Genres == nil {
		out.Genres = []string{}
	}
	if out.Actors == nil {
		out.Actors = []string{}
	}
	if m.RuntimeMinutes != nil {
		v := *m.RuntimeMinutes
		out.RuntimeMinutes = &v
	}
	return out
}

// SnapshotRecord is a movie as read from a snapshot, before validation.
// Pointer fields are nil when the snapshot omitted them.
type SnapshotRecord struct {
	ID             *string
	Title          *string
	Year           *int
	Rating         *float64
	Director       *string
	Genres         []string
	Actors         []string
	RuntimeMinutes *int
}
