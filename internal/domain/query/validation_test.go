package query_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/rpggio/cinequery/internal/domain/query"
	"github.com/stretchr/testify/require"
)

func TestValidate_WellFormedPassesUnchanged(t *testing.T) {
	candidate := map[string]any{
		"title_keywords": "knight",
		"year_min":       2000,
		"year_max":       2010,
		"rating_min":     8.5,
		"genres":         []any{"Action", "Crime"},
		"actors":         []any{"Christian Bale"},
		"director":       "Nolan",
		"sort_by":        "year",
		"sort_order":     "asc",
		"limit":          10,
	}

	q, report, err := query.Validate(candidate)
	require.NoError(t, err)
	require.True(t, report.Clean(), "unexpected report: %+v", report)

	title, ok := q.TitleKeywords()
	require.True(t, ok)
	require.Equal(t, "knight", title)
	yearMin, _ := q.YearMin()
	yearMax, _ := q.YearMax()
	require.Equal(t, 2000, yearMin)
	require.Equal(t, 2010, yearMax)
	rating, _ := q.RatingMin()
	require.Equal(t, 8.5, rating)
	require.Equal(t, []string{"Action", "Crime"}, q.Genres())
	require.Equal(t, []string{"Christian Bale"}, q.Actors())
	director, _ := q.Director()
	require.Equal(t, "Nolan", director)
	require.Equal(t, query.SortByYear, q.SortBy())
	require.Equal(t, query.Asc, q.SortOrder())
	require.Equal(t, 10, q.Limit())
}

func TestValidate_Defaults(t *testing.T) {
	q, report, err := query.Validate(map[string]any{})
	require.NoError(t, err)
	require.True(t, report.Clean())
	require.False(t, q.Constrained())
	require.Equal(t, query.SortByRating, q.SortBy())
	require.Equal(t, query.Desc, q.SortOrder())
	require.Equal(t, 5, q.Limit())
}

func TestValidate_ClampsLimit(t *testing.T) {
	q, report, err := query.Validate(map[string]any{"limit": 1000})
	require.NoError(t, err)
	require.Equal(t, 50, q.Limit())
	require.Len(t, report.Repairs, 1)
	require.Equal(t, "limit", report.Repairs[0].Field)

	q, _, err = query.Validate(map[string]any{"limit": -3})
	require.NoError(t, err)
	require.Equal(t, 1, q.Limit())

	for _, raw := range []string{`{"limit": 1e10}`, `{"limit": 99999999999}`, `{"limit": "5000000000"}`} {
		q, report, err := query.ValidateJSON(raw)
		require.NoError(t, err, raw)
		require.Equal(t, query.MaxLimit, q.Limit(), raw)
		require.Empty(t, report.Dropped, raw)
		require.NotEmpty(t, report.Repairs, raw)
	}

	q, report, err = query.ValidateJSON(`{"limit": -1e12}`)
	require.NoError(t, err)
	require.Equal(t, query.MinLimit, q.Limit())
	require.Empty(t, report.Dropped)
}

func TestValidate_HugeYearsSaturate(t *testing.T) {
	q, report, err := query.ValidateJSON(`{"year_min": 1e12}`)
	require.NoError(t, err)
	yearMin, ok := q.YearMin()
	require.True(t, ok)
	require.Equal(t, math.MaxInt32, yearMin)
	require.Empty(t, report.Dropped)
}

func TestValidate_ClampsRating(t *testing.T) {
	q, _, err := query.Validate(map[string]any{"rating_min": -2.0})
	require.NoError(t, err)
	rating, ok := q.RatingMin()
	require.True(t, ok)
	require.Equal(t, 0.0, rating)

	q, _, err = query.Validate(map[string]any{"rating_min": 42})
	require.NoError(t, err)
	rating, _ = q.RatingMin()
	require.Equal(t, 10.0, rating)
}

func TestValidate_DropsWrongTypes(t *testing.T) {
	q, report, err := query.Validate(map[string]any{
		"year_min": "abc",
		"year_max": 1999,
		"genres":   42,
		"limit":    true,
	})
	require.NoError(t, err)

	_, ok := q.YearMin()
	require.False(t, ok)
	yearMax, ok := q.YearMax()
	require.True(t, ok)
	require.Equal(t, 1999, yearMax)
	require.Empty(t, q.Genres())
	require.Equal(t, 5, q.Limit())

	dropped := map[string]bool{}
	for _, issue := range report.Dropped {
		dropped[issue.Field] = true
	}
	require.Equal(t, map[string]bool{"year_min": true, "genres": true, "limit": true}, dropped)
}

func TestValidate_UnknownKeysIgnored(t *testing.T) {
	q, report, err := query.Validate(map[string]any{"mood": "happy", "director": "Nolan"})
	require.NoError(t, err)
	require.Equal(t, []string{"mood"}, report.Ignored)
	require.True(t, q.Constrained())
}

func TestValidate_InvalidEnumFallsBackToDefault(t *testing.T) {
	q, report, err := query.Validate(map[string]any{"sort_by": "popularity", "sort_order": "DESC"})
	require.NoError(t, err)
	require.Equal(t, query.SortByRating, q.SortBy())
	require.Equal(t, query.Desc, q.SortOrder())
	require.Len(t, report.Dropped, 1)
	require.Len(t, report.Repairs, 1)
}

func TestValidate_CoercesNumbersAndYears(t *testing.T) {
	q, report, err := query.Validate(map[string]any{
		"year_min": "1990",
		"year_max": 1985.7,
	})
	require.NoError(t, err)
	yearMin, _ := q.YearMin()
	yearMax, _ := q.YearMax()
	// 1990 > 1985 so the bounds are swapped.
	require.Equal(t, 1985, yearMin)
	require.Equal(t, 1990, yearMax)
	require.NotEmpty(t, report.Repairs)
}

func TestValidate_SingularAliases(t *testing.T) {
	q, _, err := query.Validate(map[string]any{
		"genre":  "Action",
		"genres": []any{"action", "Drama"},
		"actor":  "Tom Hanks",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Action", "Drama"}, q.Genres())
	require.Equal(t, []string{"Tom Hanks"}, q.Actors())
}

func TestValidate_NullMarkerTreatedAsAbsent(t *testing.T) {
	q, _, err := query.Validate(map[string]any{"director": `\N`, "genres": []any{`\N`, 3}})
	require.NoError(t, err)
	_, ok := q.Director()
	require.False(t, ok)
	require.Empty(t, q.Genres())
}

func TestValidate_NonMappingFails(t *testing.T) {
	_, _, err := query.Validate([]any{"director", "Nolan"})
	require.ErrorIs(t, err, query.ErrSchema)

	var schemaErr *query.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, `["director","Nolan"]`, schemaErr.Raw)
}

func TestValidateJSON(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		limit int
	}{
		{name: "plain", raw: `{"limit": 7}`, limit: 7},
		{name: "fenced", raw: "```json\n{\"limit\": 8}\n```", limit: 8},
		{name: "bare fence", raw: "```\n{\"limit\": 9}\n```", limit: 9},
		{name: "prose", raw: `Here you go: {"limit": 3} hope it helps`, limit: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _, err := query.ValidateJSON(tt.raw)
			require.NoError(t, err)
			require.Equal(t, tt.limit, q.Limit())
		})
	}
}

func TestValidateJSON_Unparseable(t *testing.T) {
	for _, raw := range []string{"I cannot help with that", "", "[1,2,3]", `"text"`, `{"limit": }`} {
		_, _, err := query.ValidateJSON(raw)
		require.ErrorIs(t, err, query.ErrSchema, "raw=%q", raw)

		var schemaErr *query.SchemaError
		require.ErrorAs(t, err, &schemaErr)
		require.Equal(t, raw, schemaErr.Raw)
	}
}

func TestValidateJSON_ValidButEmptyIsNotAnError(t *testing.T) {
	q, _, err := query.ValidateJSON(`{}`)
	require.NoError(t, err)
	require.False(t, q.Constrained())
}

func TestStructuredQuery_MarshalJSON(t *testing.T) {
	q, _, err := query.Validate(map[string]any{"director": "Nolan", "limit": 2})
	require.NoError(t, err)

	data, err := json.Marshal(q)
	require.NoError(t, err)
	require.JSONEq(t, `{"director":"Nolan","sort_by":"rating","sort_order":"desc","limit":2}`, string(data))
}

func TestStructuredQuery_AccessorsReturnCopies(t *testing.T) {
	q, _, err := query.Validate(map[string]any{"genres": []any{"Action"}})
	require.NoError(t, err)

	genres := q.Genres()
	genres[0] = "Horror"
	require.Equal(t, []string{"Action"}, q.Genres())
}
