package query

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/rpggio/cinequery/internal/domain/movie"
)

// Executor runs validated queries against the current dataset.
// It never mutates the dataset and is safe for concurrent use.
type Executor struct {
	provider DatasetProvider
	cfg      config
}

// NewExecutor creates an executor reading datasets from provider.
func NewExecutor(provider DatasetProvider, opts ...Option) *Executor {
	return &Executor{provider: provider, cfg: applyOptions(opts)}
}

// Execute filters, sorts and truncates the dataset according to q.
// It fails only with ErrExecution when no dataset is loaded.
func (e *Executor) Execute(q StructuredQuery) (*Result, error) {
	ds, err := e.provider.Dataset()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}
	q = q.withDefaults()

	candidates, narrowed := e.candidates(ds, q)
	preds := e.predicates(q)

	scanned := ds.Len()
	if narrowed {
		scanned = len(candidates)
	}

	matched := make([]entry, 0)
	visit := func(pos int) {
		m := ds.At(pos)
		for _, pred := range preds {
			if !pred(m) {
				return
			}
		}
		matched = append(matched, entry{movie: m, title: strings.ToLower(m.Title)})
	}
	if narrowed {
		for _, pos := range candidates {
			visit(pos)
		}
	} else {
		for pos := 0; pos < ds.Len(); pos++ {
			visit(pos)
		}
	}

	slices.SortFunc(matched, func(a, b entry) int {
		return compareEntries(a, b, q.sortBy, q.sortOrder)
	})

	n := min(len(matched), q.limit)
	movies := make([]movie.Movie, n)
	for i := range n {
		movies[i] = matched[i].movie.Clone()
	}

	return &Result{
		Movies:         movies,
		Query:          q,
		Matched:        len(matched),
		Scanned:        scanned,
		DatasetVersion: ds.Version(),
	}, nil
}

// candidates narrows the search space with secondary indices. The predicates
// are still applied to every candidate, so narrowing only changes cost.
func (e *Executor) candidates(ds *movie.Dataset, q StructuredQuery) ([]int, bool) {
	var lists [][]int
	if q.yearMin != nil || q.yearMax != nil {
		lists = append(lists, ds.YearRange(q.yearMin, q.yearMax))
	}
	if len(q.genres) > 0 {
		lists = append(lists, indexLookup(ds.Genres(), q.genres, e.cfg.genreMatch))
	}
	if len(q.actors) > 0 {
		lists = append(lists, indexLookup(ds.Actors(), q.actors, e.cfg.actorMatch))
	}
	if q.director != nil {
		lists = append(lists, indexLookup(ds.Directors(), []string{*q.director}, e.cfg.directorMatch))
	}
	if len(lists) == 0 {
		return nil, false
	}

	// Intersect smallest first.
	slices.SortFunc(lists, func(a, b []int) int { return cmp.Compare(len(a), len(b)) })
	out := lists[0]
	for _, next := range lists[1:] {
		out = intersect(out, next)
		if len(out) == 0 {
			break
		}
	}
	return out, true
}

func (e *Executor) predicates(q StructuredQuery) []func(movie.Movie) bool {
	var preds []func(movie.Movie) bool

	if q.titleKeywords != nil {
		needle := strings.ToLower(*q.titleKeywords)
		preds = append(preds, func(m movie.Movie) bool {
			return strings.Contains(strings.ToLower(m.Title), needle)
		})
	}
	if q.yearMin != nil {
		lo := *q.yearMin
		preds = append(preds, func(m movie.Movie) bool { return m.Year >= lo })
	}
	if q.yearMax != nil {
		hi := *q.yearMax
		preds = append(preds, func(m movie.Movie) bool { return m.Year <= hi })
	}
	if q.ratingMin != nil {
		lo := *q.ratingMin
		preds = append(preds, func(m movie.Movie) bool { return m.Rating >= lo })
	}
	if len(q.genres) > 0 {
		match := matcher(q.genres, e.cfg.genreMatch)
		preds = append(preds, func(m movie.Movie) bool { return slices.ContainsFunc(m.Genres, match) })
	}
	if len(q.actors) > 0 {
		match := matcher(q.actors, e.cfg.actorMatch)
		preds = append(preds, func(m movie.Movie) bool { return slices.ContainsFunc(m.Actors, match) })
	}
	if q.director != nil {
		match := matcher([]string{*q.director}, e.cfg.directorMatch)
		preds = append(preds, func(m movie.Movie) bool { return m.Director != "" && match(m.Director) })
	}
	return preds
}

// matcher returns a case-insensitive test of one record value against any of
// the needles.
func matcher(needles []string, policy MatchPolicy) func(string) bool {
	lowered := make([]string, len(needles))
	for i, n := range needles {
		lowered[i] = strings.ToLower(strings.TrimSpace(n))
	}
	return func(value string) bool {
		v := strings.ToLower(strings.TrimSpace(value))
		for _, n := range lowered {
			if policy == MatchExact {
				if v == n {
					return true
				}
			} else if strings.Contains(v, n) {
				return true
			}
		}
		return false
	}
}

func indexLookup(ix movie.TokenIndex, needles []string, policy MatchPolicy) []int {
	return ix.Match(matcher(needles, policy))
}

type entry struct {
	movie movie.Movie
	title string
}

// compareEntries orders by the requested key, then rating desc, title asc and
// id asc, which is a total order because ids are unique.
func compareEntries(a, b entry, by SortField, order SortOrder) int {
	var c int
	switch by {
	case SortByYear:
		c = cmp.Compare(a.movie.Year, b.movie.Year)
	case SortByTitle:
		c = compareTitles(a, b)
	default:
		c = cmp.Compare(a.movie.Rating, b.movie.Rating)
	}
	if order == Desc {
		c = -c
	}
	if c != 0 {
		return c
	}
	if c := cmp.Compare(b.movie.Rating, a.movie.Rating); c != 0 {
		return c
	}
	if c := compareTitles(a, b); c != 0 {
		return c
	}
	return cmp.Compare(a.movie.ID, b.movie.ID)
}

func compareTitles(a, b entry) int {
	if c := cmp.Compare(a.title, b.title); c != 0 {
		return c
	}
	return cmp.Compare(a.movie.Title, b.movie.Title)
}

func intersect(a, b []int) []int {
	out := make([]int, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
