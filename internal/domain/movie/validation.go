package movie

import (
	"math"
	"strings"
)

// MaxRating is the upper bound of the rating scale.
const MaxRating = 10.0

// nullMarker is the IMDb export's placeholder for a missing value.
const nullMarker = `\N`

// toMovie validates a snapshot record and converts it into a Movie.
// It returns a non-empty reason when the record must be rejected.
func toMovie(rec SnapshotRecord) (Movie, string) {
	id := cleanString(rec.ID)
	if id == "" {
		return Movie{}, "missing id"
	}
	title := cleanString(rec.Title)
	if title == "" {
		return Movie{}, "missing title"
	}
	if rec.Year == nil {
		return Movie{}, "missing year"
	}
	if rec.Rating == nil {
		return Movie{}, "missing rating"
	}
	rating := *rec.Rating
	if math.IsNaN(rating) || rating < 0 || rating > MaxRating {
		return Movie{}, "rating out of range"
	}

	m := Movie{
		ID:       id,
		Title:    title,
		Year:     *rec.Year,
		Rating:   rating,
		Director: cleanString(rec.Director),
		Genres:   cleanList(rec.Genres),
		Actors:   cleanList(rec.Actors),
	}
	if rec.RuntimeMinutes != nil && *rec.RuntimeMinutes > 0 {
		v := *rec.RuntimeMinutes
		m.RuntimeMinutes = &v
	}
	return m, ""
}

func cleanString(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	if v == nullMarker {
		return ""
	}
	return v
}

// cleanList trims entries and drops empties and duplicates, keeping order.
func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		v := strings.TrimSpace(item)
		if v == "" || v == nullMarker {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
