package query

// SchemaDescription returns the structured query schema in the OpenAPI subset
// accepted by Gemini's responseSchema. It is also published to MCP clients.
func SchemaDescription() map[string]any {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "STRING", "description": desc}
	}
	list := func(desc string) map[string]any {
		return map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}, "description": desc}
	}
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			FieldTitleKeywords: str("Keywords to match in the movie title."),
			FieldGenres:        list("Genres to filter by; a movie matches if it has any of them (e.g. Action, Comedy, Drama)."),
			FieldActors:        list("Actors or actresses; a movie matches if any of them appears in the cast."),
			FieldDirector:      str("Name, or part of the name, of the director."),
			FieldYearMin:       map[string]any{"type": "INTEGER", "description": "Minimum release year (inclusive)."},
			FieldYearMax:       map[string]any{"type": "INTEGER", "description": "Maximum release year (inclusive)."},
			FieldRatingMin:     map[string]any{"type": "NUMBER", "description": "Minimum average rating on a 0-10 scale (inclusive)."},
			FieldSortBy: map[string]any{
				"type":        "STRING",
				"enum":        []string{string(SortByRating), string(SortByYear), string(SortByTitle)},
				"description": "Field to sort results by. Defaults to rating.",
			},
			FieldSortOrder: map[string]any{
				"type":        "STRING",
				"enum":        []string{string(Asc), string(Desc)},
				"description": "Sorting direction. Defaults to desc.",
			},
			FieldLimit: map[string]any{"type": "INTEGER", "description": "Maximum number of results, 1 to 50 (default 5)."},
		},
		"propertyOrdering": []string{
			FieldTitleKeywords, FieldGenres, FieldActors, FieldDirector,
			FieldYearMin, FieldYearMax, FieldRatingMin,
			FieldSortBy, FieldSortOrder, FieldLimit,
		},
	}
}
