package movie

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Dataset is an immutable, indexed collection of movies.
// Indices hold positions into the primary slice and are built once in NewDataset.
type Dataset struct {
	version  string
	source   string
	loadedAt time.Time

	movies []Movie

	years     []int // distinct years, ascending
	byYear    map[int][]int
	genres    TokenIndex
	actors    TokenIndex
	directors TokenIndex
}

// NewDataset validates snapshot records and builds all secondary indices.
func NewDataset(source string, records []SnapshotRecord) (*Dataset, error) {
	movies := make([]Movie, 0, len(records))
	ids := make(map[string]int, len(records))
	for i, rec := range records {
		m, reason := toMovie(rec)
		if reason != "" {
			return nil, &LoadError{Source: source, Index: i, Reason: reason}
		}
		if first, ok := ids[m.ID]; ok {
			return nil, &LoadError{Source: source, Index: i, Reason: fmt.Sprintf("duplicate id %q (first at record %d)", m.ID, first)}
		}
		ids[m.ID] = i
		movies = append(movies, m)
	}

	ds := &Dataset{
		version:  uuid.NewString(),
		source:   source,
		loadedAt: time.Now(),
		movies:   movies,
		byYear:   make(map[int][]int),
	}

	genres := make(map[string][]int)
	actors := make(map[string][]int)
	directors := make(map[string][]int)
	for pos, m := range movies {
		ds.byYear[m.Year] = append(ds.byYear[m.Year], pos)
		for _, g := range m.Genres {
			addPosting(genres, g, pos)
		}
		for _, a := range m.Actors {
			addPosting(actors, a, pos)
		}
		if m.Director != "" {
			addPosting(directors, m.Director, pos)
		}
	}
	for year := range ds.byYear {
		ds.years = append(ds.years, year)
	}
	sort.Ints(ds.years)

	ds.genres = newTokenIndex(genres)
	ds.actors = newTokenIndex(actors)
	ds.directors = newTokenIndex(directors)
	return ds, nil
}

// Version is a unique identifier of this build of the dataset.
func (d *Dataset) Version() string { return d.version }

// Source names the snapshot the dataset was built from.
func (d *Dataset) Source() string { return d.source }

// LoadedAt reports when the dataset was built.
func (d *Dataset) LoadedAt() time.Time { return d.loadedAt }

// Len returns the number of movies.
func (d *Dataset) Len() int { return len(d.movies) }

// At returns the movie at position i. The returned value shares slices with
// the dataset and must not be modified; use Clone before handing it out.
func (d *Dataset) At(i int) Movie { return d.movies[i] }

// All returns copies of every movie in snapshot order.
func (d *Dataset) All() []Movie {
	out := make([]Movie, len(d.movies))
	for i, m := range d.movies {
		out[i] = m.Clone()
	}
	return out
}

// YearRange returns ascending positions of movies with from <= year <= to.
// A nil bound is open.
func (d *Dataset) YearRange(from, to *int) []int {
	start := 0
	if from != nil {
		start = sort.SearchInts(d.years, *from)
	}
	var out []int
	for _, year := range d.years[start:] {
		if to != nil && year > *to {
			break
		}
		out = append(out, d.byYear[year]...)
	}
	slices.Sort(out)
	return out
}

// Genres returns the genre token index.
func (d *Dataset) Genres() TokenIndex { return d.genres }

// Actors returns the actor token index.
func (d *Dataset) Actors() TokenIndex { return d.actors }

// Directors returns the director index.
func (d *Dataset) Directors() TokenIndex { return d.directors }

// TokenIndex maps lower-cased tokens to ascending movie positions.
type TokenIndex struct {
	keys     []string
	postings map[string][]int
}

func newTokenIndex(postings map[string][]int) TokenIndex {
	keys := make([]string, 0, len(postings))
	for k := range postings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return TokenIndex{keys: keys, postings: postings}
}

// Lookup returns positions for an exact, case-insensitive token.
func (ix TokenIndex) Lookup(token string) []int {
	return slices.Clone(ix.postings[normalizeToken(token)])
}

// Match returns the union of positions for every key accepted by pred.
// Keys are passed lower-cased.
func (ix TokenIndex) Match(pred func(key string) bool) []int {
	var out []int
	hits := 0
	for _, k := range ix.keys {
		if pred(k) {
			out = append(out, ix.postings[k]...)
			hits++
		}
	}
	if hits > 1 {
		slices.Sort(out)
		out = slices.Compact(out)
	}
	return out
}

// Keys returns the indexed tokens in ascending order.
func (ix TokenIndex) Keys() []string {
	return slices.Clone(ix.keys)
}

func addPosting(index map[string][]int, token string, pos int) {
	key := normalizeToken(token)
	if key == "" {
		return
	}
	list := index[key]
	if n := len(list); n > 0 && list[n-1] == pos {
		return
	}
	index[key] = append(list, pos)
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
