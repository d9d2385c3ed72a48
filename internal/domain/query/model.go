package query

import (
	"encoding/json"
	"slices"

	"github.com/rpggio/cinequery/internal/domain/movie"
)

// SortField selects the primary sort key.
type SortField string

const (
	SortByRating SortField = "rating"
	SortByYear   SortField = "year"
	SortByTitle  SortField = "title"
)

// SortOrder selects the primary sort direction.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

const (
	DefaultSortBy    = SortByRating
	DefaultSortOrder = Desc
	DefaultLimit     = 5
	MinLimit         = 1
	MaxLimit         = 50
	MinRating        = 0.0
	MaxRating        = movie.MaxRating
)

// StructuredQuery is a validated query. The zero value is not valid; values
// are only produced by Validate and ValidateJSON, which apply all defaults.
type StructuredQuery struct {
	titleKeywords *string
	yearMin       *int
	yearMax       *int
	ratingMin     *float64
	genres        []string
	actors        []string
	director      *string
	sortBy        SortField
	sortOrder     SortOrder
	limit         int
}

func (q StructuredQuery) TitleKeywords() (string, bool) { return deref(q.titleKeywords) }
func (q StructuredQuery) YearMin() (int, bool)          { return deref(q.yearMin) }
func (q StructuredQuery) YearMax() (int, bool)          { return deref(q.yearMax) }
func (q StructuredQuery) RatingMin() (float64, bool)    { return deref(q.ratingMin) }
func (q StructuredQuery) Director() (string, bool)      { return deref(q.director) }
func (q StructuredQuery) Genres() []string              { return slices.Clone(q.genres) }
func (q StructuredQuery) Actors() []string              { return slices.Clone(q.actors) }
func (q StructuredQuery) SortBy() SortField             { return q.sortBy }
func (q StructuredQuery) SortOrder() SortOrder          { return q.sortOrder }
func (q StructuredQuery) Limit() int                    { return q.limit }

// Constrained reports whether any filter field is present.
func (q StructuredQuery) Constrained() bool {
	return q.titleKeywords != nil || q.yearMin != nil || q.yearMax != nil ||
		q.ratingMin != nil || len(q.genres) > 0 || len(q.actors) > 0 || q.director != nil
}

// withDefaults fills fields a zero-value query lacks. Validated queries are
// returned unchanged.
func (q StructuredQuery) withDefaults() StructuredQuery {
	if q.sortBy == "" {
		q.sortBy = DefaultSortBy
	}
	if q.sortOrder == "" {
		q.sortOrder = DefaultSortOrder
	}
	if q.limit == 0 {
		q.limit = DefaultLimit
	}
	q.limit = max(MinLimit, min(q.limit, MaxLimit))
	return q
}

// Wire is the JSON form of a StructuredQuery. Absent fields are omitted.
type Wire struct {
	TitleKeywords *string   `json:"title_keywords,omitempty"`
	YearMin       *int      `json:"year_min,omitempty"`
	YearMax       *int      `json:"year_max,omitempty"`
	RatingMin     *float64  `json:"rating_min,omitempty"`
	Genres        []string  `json:"genres,omitempty"`
	Actors        []string  `json:"actors,omitempty"`
	Director      *string   `json:"director,omitempty"`
	SortBy        SortField `json:"sort_by"`
	SortOrder     SortOrder `json:"sort_order"`
	Limit         int       `json:"limit"`
}

// Wire returns a copy of the query in its JSON form.
func (q StructuredQuery) Wire() Wire {
	return Wire{
		TitleKeywords: clonePtr(q.titleKeywords),
		YearMin:       clonePtr(q.yearMin),
		YearMax:       clonePtr(q.yearMax),
		RatingMin:     clonePtr(q.ratingMin),
		Genres:        slices.Clone(q.genres),
		Actors:        slices.Clone(q.actors),
		Director:      clonePtr(q.director),
		SortBy:        q.sortBy,
		SortOrder:     q.sortOrder,
		Limit:         q.limit,
	}
}

func (q StructuredQuery) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.Wire())
}

// Result is the outcome of executing a StructuredQuery.
type Result struct {
	Movies         []movie.Movie
	Query          StructuredQuery
	Matched        int // records satisfying the query before truncation
	Scanned        int // candidate records the predicates were evaluated on
	DatasetVersion string
}

func deref[T any](p *T) (T, bool) {
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
