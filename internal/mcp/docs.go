package mcp

import (
	"context"
	"encoding/json"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/cinequery/internal/domain/query"
)

const serverInstructions = `cinequery answers questions about a fixed movie dataset.

Tools:
- ask_movies(question): natural-language question in, grounded answer plus the matching records out.
  The answer only mentions movies in the returned records.
- search_movies(filters): explicit structured query, no language model involved. Use it to refine
  or page through results when you already know the filters.

Both tools return the structured query that was executed. Invalid or out-of-range fields are
repaired (clamped or dropped) rather than rejected; repairs are listed in the result.

Docs:
- cinequery://docs/index
- cinequery://docs/query-schema (JSON description of every structured query field)
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	MIMEType    string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "cinequery://docs/index",
		Name:        "docs_index",
		Title:       "cinequery docs index",
		Description: "How questions are answered and how filters behave.",
		MIMEType:    "text/markdown",
		Content: `# cinequery

## Tools

- ask_movies(question): translates the question, runs the query and answers from the matching records.
- search_movies(filters): runs an explicit structured query. No language model is called and no answer is written.

## How a question is answered

1. The question is translated into a structured query (one retry if the first translation is not valid JSON).
2. The query is validated. Out-of-range values are clamped, values of the wrong type are dropped, unknown keys are ignored.
3. The query runs against the in-memory dataset: filters, then sort, then limit.
4. An answer is written from the matching records only. If that fails, the records are listed instead.

An empty result is answered directly: "I found no movies matching your criteria in the database."

## Filter semantics

- All present filters must hold (AND).
- year_min and year_max are inclusive; if given in the wrong order they are swapped.
- genres: at least one listed genre must be present (case-insensitive, exact by default).
- actors: at least one listed actor must appear (case-insensitive substring by default).
- director: case-insensitive substring of the director name by default. Movies without a director never match.
- title_keywords: case-insensitive substring of the title.

The server operator can switch director, actor and genre matching between substring and exact.

## Ordering

Results sort by sort_by in sort_order, then by rating descending, then title ascending, then id.
The same query over the same dataset always returns the same records in the same order.

## Failure codes

- TRANSLATION_FAILURE: the question could not be turned into a query.
- NETWORK_FAILURE: the language service could not be reached or timed out.
- EXECUTION_FAULT: the dataset is unavailable.
- INVALID_REQUEST: empty question or malformed filters.
`,
	},
	{
		URI:         "cinequery://docs/query-schema",
		Name:        "query_schema",
		Title:       "Structured query schema",
		Description: "JSON Schema of the structured query accepted by search_movies and produced by translation.",
		MIMEType:    "application/json",
		Content:     schemaDoc(),
	},
}

func schemaDoc() string {
	data, err := json.MarshalIndent(query.SchemaDescription(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    doc.MIMEType,
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: doc.MIMEType,
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
