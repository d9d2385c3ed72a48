package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rpggio/cinequery/internal/domain/movie"
)

// JSONSource reads a snapshot file produced by the offline ETL: either a
// top-level array of movie objects or an object with a "movies" array.
type JSONSource struct {
	Path  string
	Label string // empty = Path
}

func (s JSONSource) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Path
}

func (s JSONSource) Read(_ context.Context) ([]movie.SnapshotRecord, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("snapshot file: %w", err)
	}
	defer f.Close()
	return DecodeJSON(f)
}

// DecodeJSON parses snapshot JSON. Ids may be strings or numbers and may be
// given as "tconst"; list fields may be arrays or comma-separated text.
// Values that cannot be read are left nil for dataset validation to reject.
func DecodeJSON(r io.Reader) ([]movie.SnapshotRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("snapshot is empty")
	}

	var items []map[string]json.RawMessage
	if data[0] == '{' {
		var wrapper struct {
			Movies []map[string]json.RawMessage `json:"movies"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		if wrapper.Movies == nil {
			return nil, fmt.Errorf("decode snapshot: object has no \"movies\" array")
		}
		items = wrapper.Movies
	} else if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	records := make([]movie.SnapshotRecord, 0, len(items))
	for i, item := range items {
		if item == nil {
			return nil, fmt.Errorf("decode snapshot: record %d is null", i)
		}
		records = append(records, decodeRecord(item))
	}
	return records, nil
}

func decodeRecord(item map[string]json.RawMessage) movie.SnapshotRecord {
	return movie.SnapshotRecord{
		ID:             text(first(item, "id", "tconst")),
		Title:          text(first(item, "title", "primaryTitle")),
		Year:           integer(first(item, "year", "startYear")),
		Rating:         number(first(item, "rating", "averageRating")),
		Director:       text(first(item, "director")),
		Genres:         list(first(item, "genres", "genre")),
		Actors:         list(first(item, "actors", "actor")),
		RuntimeMinutes: integer(first(item, "runtime_minutes", "runtimeMinutes")),
	}
}

func first(item map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := item[k]; ok && string(v) != "null" {
			return v
		}
	}
	return nil
}

func text(raw json.RawMessage) *string {
	if raw == nil {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		s = n.String()
		return &s
	}
	return nil
}

func number(raw json.RawMessage) *float64 {
	if raw == nil {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &v
		}
	}
	return nil
}

func integer(raw json.RawMessage) *int {
	f := number(raw)
	if f == nil || *f != float64(int(*f)) {
		return nil
	}
	n := int(*f)
	return &n
}

func list(raw json.RawMessage) []string {
	if raw == nil {
		return nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err == nil {
		return items
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.Split(s, ",")
	}
	return nil
}
