package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/cinequery/internal/domain/audit"
	"github.com/rpggio/cinequery/internal/domain/movie"
	"github.com/rpggio/cinequery/internal/domain/pipeline"
	"github.com/rpggio/cinequery/internal/domain/query"
)

const (
	toolAsk    = "ask_movies"
	toolSearch = "search_movies"
)

// AskInput is the argument of ask_movies.
type AskInput struct {
	Question string `json:"question" jsonschema:"Natural-language question about movies, e.g. 'best Christopher Nolan films after 2005'"`
}

// SearchInput is the argument of search_movies. Omitted fields do not
// constrain the result.
type SearchInput struct {
	TitleKeywords *string  `json:"title_keywords,omitempty" jsonschema:"Case-insensitive substring of the title"`
	YearMin       *int     `json:"year_min,omitempty" jsonschema:"Earliest release year, inclusive"`
	YearMax       *int     `json:"year_max,omitempty" jsonschema:"Latest release year, inclusive"`
	RatingMin     *float64 `json:"rating_min,omitempty" jsonschema:"Minimum rating on a 0-10 scale"`
	Genres        []string `json:"genres,omitempty" jsonschema:"Genres of which at least one must be present"`
	Actors        []string `json:"actors,omitempty" jsonschema:"Actors of whom at least one must appear"`
	Director      *string  `json:"director,omitempty" jsonschema:"Director name"`
	SortBy        *string  `json:"sort_by,omitempty" jsonschema:"Sort key: rating, year or title (default rating)"`
	SortOrder     *string  `json:"sort_order,omitempty" jsonschema:"Sort direction: asc or desc (default desc)"`
	Limit         *int     `json:"limit,omitempty" jsonschema:"Number of movies to return, 1-50 (default 5)"`
}

// MoviesResult is the payload of a successful tool call.
type MoviesResult struct {
	RequestID       string        `json:"request_id"`
	Answer          string        `json:"answer,omitempty"`
	Movies          []movie.Movie `json:"movies"`
	Matched         int           `json:"matched"`
	StructuredQuery query.Wire    `json:"structured_query"`
	Repairs         []query.Issue `json:"repairs,omitempty"`
	Dropped         []query.Issue `json:"dropped,omitempty"`
	Degraded        bool          `json:"degraded,omitempty"`
	DatasetVersion  string        `json:"dataset_version,omitempty"`
}

func newMoviesResult(resp *pipeline.Response) MoviesResult {
	movies := resp.Movies
	if movies == nil {
		movies = []movie.Movie{}
	}
	return MoviesResult{
		RequestID:       resp.RequestID,
		Answer:          resp.Answer,
		Movies:          movies,
		Matched:         resp.Matched,
		StructuredQuery: resp.Query.Wire(),
		Repairs:         resp.Report.Repairs,
		Dropped:         resp.Report.Dropped,
		Degraded:        resp.Degraded,
		DatasetVersion:  resp.DatasetVersion,
	}
}

func registerTools(server *sdkmcp.Server, svc Pipeline, logger *slog.Logger) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name: toolAsk,
		Description: "Answer a natural-language question about movies. The question is translated into a " +
			"structured query, run against the movie dataset, and answered using only the matching records.",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in AskInput) (*sdkmcp.CallToolResult, any, error) {
		resp, err := svc.Ask(ctx, pipeline.Request{
			Question: in.Question,
			ClientID: getClientID(ctx),
			Channel:  audit.ChannelMCP,
		})
		return toolResult(logger, toolAsk, resp, err)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name: toolSearch,
		Description: "Search the movie dataset with explicit filters, without natural-language translation or " +
			"summarization. See cinequery://docs/query-schema for field semantics.",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in SearchInput) (*sdkmcp.CallToolResult, any, error) {
		candidate, err := candidateOf(in)
		if err != nil {
			return nil, nil, err
		}
		resp, err := svc.Search(ctx, pipeline.Request{
			Question: describeSearch(candidate),
			ClientID: getClientID(ctx),
			Channel:  audit.ChannelMCP,
		}, candidate)
		return toolResult(logger, toolSearch, resp, err)
	})
}

// candidateOf converts typed tool input into the untyped form the validator
// accepts, so both tools go through the same repair rules.
func candidateOf(in SearchInput) (map[string]any, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode search input: %w", err)
	}
	candidate := map[string]any{}
	if err := json.Unmarshal(data, &candidate); err != nil {
		return nil, fmt.Errorf("decode search input: %w", err)
	}
	return candidate, nil
}

func describeSearch(candidate map[string]any) string {
	data, err := json.Marshal(candidate)
	if err != nil {
		return toolSearch
	}
	return toolSearch + " " + string(data)
}

func toolResult(logger *slog.Logger, tool string, resp *pipeline.Response, err error) (*sdkmcp.CallToolResult, any, error) {
	var payload any
	isError := false
	if err != nil {
		apiErr := MapError(err)
		if apiErr.Code == "INTERNAL" {
			logger.Error("tool call failed", "tool", tool, "error", err)
		}
		payload, isError = apiErr, true
	} else {
		payload = newMoviesResult(resp)
	}

	data, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return nil, nil, fmt.Errorf("encode %s result: %w", tool, marshalErr)
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
		IsError: isError,
	}, nil, nil
}
