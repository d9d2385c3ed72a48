package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Field names of the structured query.
const (
	FieldTitleKeywords = "title_keywords"
	FieldYearMin       = "year_min"
	FieldYearMax       = "year_max"
	FieldRatingMin     = "rating_min"
	FieldGenres        = "genres"
	FieldActors        = "actors"
	FieldDirector      = "director"
	FieldSortBy        = "sort_by"
	FieldSortOrder     = "sort_order"
	FieldLimit         = "limit"

	// Singular forms emitted by older translation prompts.
	fieldGenre = "genre"
	fieldActor = "actor"
)

const nullMarker = `\N`

// Issue describes one field-level correction made during validation.
type Issue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Report lists what validation changed. An empty report means the candidate
// was used as given, modulo defaults.
type Report struct {
	Repairs []Issue  `json:"repairs,omitempty"`
	Dropped []Issue  `json:"dropped,omitempty"`
	Ignored []string `json:"ignored,omitempty"`
}

// Clean reports whether the candidate needed no repair.
func (r Report) Clean() bool {
	return len(r.Repairs) == 0 && len(r.Dropped) == 0 && len(r.Ignored) == 0
}

func (r *Report) repair(field, format string, args ...any) {
	r.Repairs = append(r.Repairs, Issue{Field: field, Reason: fmt.Sprintf(format, args...)})
}

func (r *Report) drop(field, format string, args ...any) {
	r.Dropped = append(r.Dropped, Issue{Field: field, Reason: fmt.Sprintf(format, args...)})
}

// ValidateJSON decodes raw translation output and validates it. Markdown code
// fences and prose around a single JSON object are tolerated. Text that does
// not decode to a JSON object yields a *SchemaError carrying raw.
func ValidateJSON(raw string) (StructuredQuery, Report, error) {
	candidate, err := decodeCandidate(raw)
	if err != nil {
		return StructuredQuery{}, Report{}, &SchemaError{Raw: raw, Reason: "output is not valid JSON", Err: err}
	}
	q, report, err := Validate(candidate)
	if err != nil {
		var schemaErr *SchemaError
		if errors.As(err, &schemaErr) {
			schemaErr.Raw = raw
		}
		return StructuredQuery{}, Report{}, err
	}
	return q, report, nil
}

// Validate turns an untyped candidate into a StructuredQuery.
//
// Out-of-range values are clamped, values of the wrong type are dropped and
// unknown keys are ignored. Only a candidate that is not a mapping fails, with
// a *SchemaError.
func Validate(candidate any) (StructuredQuery, Report, error) {
	fields, ok := candidate.(map[string]any)
	if !ok {
		return StructuredQuery{}, Report{}, &SchemaError{
			Raw:    describeRaw(candidate),
			Reason: fmt.Sprintf("expected an object, got %s", typeName(candidate)),
		}
	}

	var report Report
	q := StructuredQuery{
		sortBy:    DefaultSortBy,
		sortOrder: DefaultSortOrder,
		limit:     DefaultLimit,
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := fields[key]
		switch key {
		case FieldTitleKeywords:
			q.titleKeywords = stringField(&report, key, value)
		case FieldDirector:
			q.director = stringField(&report, key, value)
		case FieldYearMin:
			if v := intField(&report, key, value); v != nil {
				n := clampInt(&report, key, *v, math.MinInt32, math.MaxInt32)
				q.yearMin = &n
			}
		case FieldYearMax:
			if v := intField(&report, key, value); v != nil {
				n := clampInt(&report, key, *v, math.MinInt32, math.MaxInt32)
				q.yearMax = &n
			}
		case FieldRatingMin:
			if v := floatField(&report, key, value); v != nil {
				clamped := clampFloat(&report, key, *v, MinRating, MaxRating)
				q.ratingMin = &clamped
			}
		case FieldGenres, fieldGenre:
			q.genres = mergeLists(q.genres, listField(&report, key, value))
		case FieldActors, fieldActor:
			q.actors = mergeLists(q.actors, listField(&report, key, value))
		case FieldSortBy:
			if v, ok := enumField(&report, key, value, string(SortByRating), string(SortByYear), string(SortByTitle)); ok {
				q.sortBy = SortField(v)
			}
		case FieldSortOrder:
			if v, ok := enumField(&report, key, value, string(Asc), string(Desc)); ok {
				q.sortOrder = SortOrder(v)
			}
		case FieldLimit:
			if v := intField(&report, key, value); v != nil {
				q.limit = clampInt(&report, key, *v, MinLimit, MaxLimit)
			}
		default:
			report.Ignored = append(report.Ignored, key)
		}
	}

	if q.yearMin != nil && q.yearMax != nil && *q.yearMin > *q.yearMax {
		report.repair(FieldYearMin, "swapped with year_max (%d > %d)", *q.yearMin, *q.yearMax)
		q.yearMin, q.yearMax = q.yearMax, q.yearMin
	}

	return q, report, nil
}

func decodeCandidate(raw string) (any, error) {
	text := stripFences(raw)
	v, err := decodeSingle(text)
	if err == nil {
		return v, nil
	}
	// Fall back to the outermost braces when the model wrapped the object in prose.
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if inner, innerErr := decodeSingle(text[start : end+1]); innerErr == nil {
			return inner, nil
		}
	}
	return nil, err
}

func decodeSingle(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```JSON", "```"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func stringField(report *Report, field string, value any) *string {
	s, ok := asString(value)
	if !ok {
		report.drop(field, "expected text, got %s", typeName(value))
		return nil
	}
	if s == "" {
		report.drop(field, "empty value")
		return nil
	}
	if _, isString := value.(string); !isString {
		report.repair(field, "converted %s to text", typeName(value))
	}
	return &s
}

// intField returns the whole part of a finite number. Range checks are left to
// clampInt so that huge values saturate instead of being dropped.
func intField(report *Report, field string, value any) *float64 {
	f, coerced, ok := asNumber(value)
	if !ok {
		report.drop(field, "expected integer, got %s", typeName(value))
		return nil
	}
	if coerced {
		report.repair(field, "parsed number from text")
	}
	whole := math.Trunc(f)
	if whole != f {
		report.repair(field, "truncated %v to %v", f, whole)
	}
	return &whole
}

func floatField(report *Report, field string, value any) *float64 {
	f, coerced, ok := asNumber(value)
	if !ok {
		report.drop(field, "expected number, got %s", typeName(value))
		return nil
	}
	if coerced {
		report.repair(field, "parsed number from text")
	}
	return &f
}

func listField(report *Report, field string, value any) []string {
	var raw []any
	switch v := value.(type) {
	case []any:
		raw = v
	case []string:
		for _, s := range v {
			raw = append(raw, s)
		}
	case string:
		raw = []any{v}
		if field == FieldGenres || field == FieldActors {
			report.repair(field, "wrapped single value in a list")
		}
	default:
		report.drop(field, "expected list of text, got %s", typeName(value))
		return nil
	}

	out := make([]string, 0, len(raw))
	skipped := 0
	for _, item := range raw {
		s, ok := item.(string)
		s = strings.TrimSpace(s)
		if !ok || s == "" || s == nullMarker {
			skipped++
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		report.drop(field, "no usable entries")
		return nil
	}
	if skipped > 0 {
		report.repair(field, "skipped %d unusable entries", skipped)
	}
	return out
}

func enumField(report *Report, field string, value any, allowed ...string) (string, bool) {
	s, ok := value.(string)
	if !ok {
		report.drop(field, "expected one of %s, got %s", strings.Join(allowed, "|"), typeName(value))
		return "", false
	}
	norm := strings.ToLower(strings.TrimSpace(s))
	if !slices.Contains(allowed, norm) {
		report.drop(field, "unknown value %q", s)
		return "", false
	}
	if norm != s {
		report.repair(field, "normalized %q", s)
	}
	return norm, true
}

func clampInt(report *Report, field string, v float64, lo, hi int) int {
	switch {
	case v < float64(lo):
		report.repair(field, "clamped %v to %d", v, lo)
		return lo
	case v > float64(hi):
		report.repair(field, "clamped %v to %d", v, hi)
		return hi
	}
	return int(v)
}

func clampFloat(report *Report, field string, v, lo, hi float64) float64 {
	switch {
	case v < lo:
		report.repair(field, "clamped %v to %v", v, lo)
		return lo
	case v > hi:
		report.repair(field, "clamped %v to %v", v, hi)
		return hi
	}
	return v
}

// mergeLists appends b to a, skipping case-insensitive duplicates.
func mergeLists(a, b []string) []string {
	for _, s := range b {
		dup := slices.ContainsFunc(a, func(existing string) bool {
			return strings.EqualFold(existing, s)
		})
		if !dup {
			a = append(a, s)
		}
	}
	return a
}

func asString(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == nullMarker {
		s = ""
	}
	return s, true
}

// asNumber reads a finite number. coerced is true when it came from text.
func asNumber(v any) (f float64, coerced bool, ok bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Float64()
		return n, false, err == nil && isFinite(n)
	case float64:
		return t, false, isFinite(t)
	case float32:
		return float64(t), false, isFinite(float64(t))
	case int:
		return float64(t), false, true
	case int64:
		return float64(t), false, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return n, true, err == nil && isFinite(n)
	default:
		return 0, false, false
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "text"
	case bool:
		return "boolean"
	case json.Number, float64, float32, int, int64:
		return "number"
	case []any, []string:
		return "list"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func describeRaw(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
