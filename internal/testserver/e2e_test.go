package testserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/cinequery/internal/llm/geminitest"
	"github.com/rpggio/cinequery/internal/testserver"
)

const (
	token    = "test-token"
	clientID = "e2e"
)

type queryResponse struct {
	Status          string         `json:"status"`
	Query           string         `json:"query"`
	Message         string         `json:"message"`
	Code            string         `json:"code"`
	LLMOutput       string         `json:"llm_output"`
	Answer          string         `json:"answer"`
	RequestID       string         `json:"request_id"`
	Matched         int            `json:"matched"`
	Degraded        bool           `json:"degraded"`
	StructuredQuery map[string]any `json:"structured_query"`
	Data            []struct {
		ID       string  `json:"id"`
		Title    string  `json:"title"`
		Year     int     `json:"year"`
		Rating   float64 `json:"rating"`
		Director string  `json:"director"`
	} `json:"data"`
}

func (r queryResponse) titles() []string {
	out := make([]string, len(r.Data))
	for i, m := range r.Data {
		out[i] = m.Title
	}
	return out
}

// llmRoute answers translation calls with translate(n) and synthesis calls
// with synthesize. n counts translation calls from 1.
func llmRoute(translate func(n int) geminitest.Reply, synthesize geminitest.Reply) geminitest.Responder {
	translations := 0
	return func(_ int, call geminitest.Call) geminitest.Reply {
		if call.JSONMode() {
			translations++
			return translate(translations)
		}
		return synthesize
	}
}

func always(reply geminitest.Reply) func(int) geminitest.Reply {
	return func(int) geminitest.Reply { return reply }
}

func postQuery(t *testing.T, ts *testserver.TestServer, question string) (int, queryResponse) {
	t.Helper()
	body, err := json.Marshal(map[string]string{"query": question})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/query", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ts.Token)

	return do(t, req)
}

func do(t *testing.T, req *http.Request) (int, queryResponse) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out queryResponse
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return resp.StatusCode, out
}

func TestQuery_AnswersFromRetrievedRecords(t *testing.T) {
	ts := testserver.New(t, token, clientID, testserver.Options{
		Gemini: llmRoute(
			always(geminitest.Text("```json\n{\"director\": \"Nolan\", \"sort_by\": \"rating\", \"sort_order\": \"desc\"}\n```")),
			geminitest.Text("Nolan's best is The Dark Knight."),
		),
	})

	status, resp := postQuery(t, ts, "What are the best Christopher Nolan movies?")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "success", resp.Status)
	require.Equal(t, "What are the best Christopher Nolan movies?", resp.Query)
	require.Equal(t, []string{"The Dark Knight", "Inception", "Interstellar"}, resp.titles())
	require.Equal(t, "Nolan's best is The Dark Knight.", resp.Answer)
	require.Equal(t, "Nolan", resp.StructuredQuery["director"])
	require.NotEmpty(t, resp.RequestID)

	calls := ts.Gemini.Calls()
	require.Len(t, calls, 2)
	require.True(t, calls[0].JSONMode())
	require.Equal(t, "What are the best Christopher Nolan movies?", calls[0].Prompt())
	require.False(t, calls[1].JSONMode())
	require.Contains(t, calls[1].Prompt(), "Interstellar")
	require.NotContains(t, calls[1].Prompt(), "Forrest Gump")
}

func TestQuery_GetForm(t *testing.T) {
	ts := testserver.New(t, token, clientID, testserver.Options{
		Gemini: llmRoute(always(geminitest.Text(`{"actors": ["tom hanks"], "sort_by": "year", "sort_order": "asc"}`)), geminitest.Text("Two films.")),
	})

	req, err := http.NewRequest(http.MethodGet, ts.Server.URL+"/query?query="+url.QueryEscape("Tom Hanks films in order"), nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.Token)

	status, resp := do(t, req)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []string{"Forrest Gump", "Toy Story"}, resp.titles())
}

func TestQuery_RetriesOnceAfterMalformedOutput(t *testing.T) {
	ts := testserver.New(t, token, clientID, testserver.Options{
		Gemini: llmRoute(func(n int) geminitest.Reply {
			if n == 1 {
				return geminitest.Text("Sure! Here are some movies about space.")
			}
			return geminitest.Text(`{"genres": ["Sci-Fi"], "year_min": 2010}`)
		}, geminitest.Text("Space films.")),
	})

	status, resp := postQuery(t, ts, "space movies since 2010")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []string{"Inception", "Interstellar"}, resp.titles())

	calls := ts.Gemini.Calls()
	require.Len(t, calls, 3)
	require.Contains(t, calls[1].Prompt(), "Sure! Here are some movies about space.")
}

func TestQuery_MalformedTwiceIsTranslationFailure(t *testing.T) {
	ts := testserver.New(t, token, clientID, testserver.Options{
		Gemini: llmRoute(always(geminitest.Text("not json")), geminitest.Text("unused")),
	})

	status, resp := postQuery(t, ts, "anything")
	require.Equal(t, http.StatusBadGateway, status)
	require.Equal(t, "error", resp.Status)
	require.Equal(t, "TRANSLATION_FAILURE", resp.Code)
	require.Equal(t, "not json", resp.LLMOutput)
	require.NotEmpty(t, resp.Message)
	require.Len(t, ts.Gemini.Calls(), 2)
}

func TestQuery_EmptyResultSkipsSynthesis(t *testing.T) {
	ts := testserver.New(t, token, clientID, testserver.Options{
		Gemini: llmRoute(always(geminitest.Text(`{"director": "Kubrick"}`)), geminitest.Text("unused")),
	})

	status, resp := postQuery(t, ts, "Kubrick films")
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, resp.Data)
	require.NotNil(t, resp.Data)
	require.Equal(t, "I found no movies matching your criteria in the database.", resp.Answer)
	require.Len(t, ts.Gemini.Calls(), 1)
}

func TestQuery_SynthesisFailureDegrades(t *testing.T) {
	ts := testserver.New(t, token, clientID, testserver.Options{
		Gemini: llmRoute(always(geminitest.Text(`{"title_keywords": "matrix"}`)), geminitest.Status(http.StatusBadRequest, "bad")),
	})

	status, resp := postQuery(t, ts, "the matrix")
	require.Equal(t, http.StatusOK, status)
	require.True(t, resp.Degraded)
	require.Equal(t, []string{"The Matrix"}, resp.titles())
	require.Contains(t, resp.Answer, "The Matrix (1999)")
}

func TestQuery_UnavailableServiceIsNetworkFailure(t *testing.T) {
	ts := testserver.New(t, token, clientID, testserver.Options{
		Gemini: llmRoute(always(geminitest.Status(http.StatusServiceUnavailable, "overloaded")), geminitest.Text("unused")),
	})

	status, resp := postQuery(t, ts, "anything")
	require.Equal(t, http.StatusGatewayTimeout, status)
	require.Equal(t, "NETWORK_FAILURE", resp.Code)
	// One attempt plus one retry inside the client; the pipeline does not retry network failures.
	require.Len(t, ts.Gemini.Calls(), 2)
}

func TestQuery_RequiresToken(t *testing.T) {
	ts := testserver.New(t, token, clientID, testserver.Options{})

	resp, err := http.Post(ts.Server.URL+"/query", "application/json", strings.NewReader(`{"query":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Empty(t, ts.Gemini.Calls())
}

func TestQuery_MissingQuestion(t *testing.T) {
	ts := testserver.New(t, token, clientID, testserver.Options{})

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/api/v1/query", strings.NewReader(`{"question":"wrong key"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.Token)

	status, resp := do(t, req)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Missing 'query' parameter in request body.", resp.Message)
}

func TestAuditTrail(t *testing.T) {
	ts := testserver.New(t, token, clientID, testserver.Options{
		Gemini: llmRoute(func(n int) geminitest.Reply {
			if n <= 2 {
				return geminitest.Text("nope")
			}
			return geminitest.Text(`{"rating_min": 8.8}`)
		}, geminitest.Text("Top films.")),
	})

	status, _ := postQuery(t, ts, "first")
	require.Equal(t, http.StatusBadGateway, status)
	status, _ = postQuery(t, ts, "second")
	require.Equal(t, http.StatusOK, status)

	req, err := http.NewRequest(http.MethodGet, ts.Server.URL+"/api/v1/audit?limit=10", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.Token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data []struct {
			ClientID string `json:"client_id"`
			Question string `json:"question"`
			Outcome  string `json:"outcome"`
			Code     string `json:"code"`
			Attempts int    `json:"attempts"`
			Matched  int    `json:"matched"`
			Channel  string `json:"channel"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Data, 2)

	byQuestion := map[string]int{}
	for i, e := range body.Data {
		require.Equal(t, clientID, e.ClientID)
		require.Equal(t, "http", e.Channel)
		byQuestion[e.Question] = i
	}
	failed := body.Data[byQuestion["first"]]
	require.Equal(t, "FAILED", failed.Outcome)
	require.Equal(t, "TRANSLATION_FAILURE", failed.Code)
	require.Equal(t, 2, failed.Attempts)

	done := body.Data[byQuestion["second"]]
	require.Equal(t, "DONE", done.Outcome)
	require.Equal(t, 3, done.Matched)
}

func TestHealthReportsDataset(t *testing.T) {
	ts := testserver.New(t, token, clientID, testserver.Options{})

	resp, err := http.Get(ts.Server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status  string `json:"status"`
		Dataset struct {
			Records int    `json:"records"`
			Source  string `json:"source"`
		} `json:"dataset"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, len(testserver.SampleMovies()), body.Dataset.Records)
	require.Equal(t, "sample", body.Dataset.Source)
}

type bearer struct {
	token string
}

func (b bearer) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return http.DefaultTransport.RoundTrip(req)
}

func TestMCP_SearchOverHTTP(t *testing.T) {
	ts := testserver.New(t, token, clientID, testserver.Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "e2e", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + "/mcp",
		HTTPClient: &http.Client{Transport: bearer{token: ts.Token}},
	}, nil)
	require.NoError(t, err)
	defer session.Close()

	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "search_movies",
		Arguments: map[string]any{"year_min": 2000, "year_max": 1990, "sort_by": "year"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	text, ok := result.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	var out struct {
		Movies []struct {
			Title string `json:"title"`
		} `json:"movies"`
		Repairs []struct {
			Field string `json:"field"`
		} `json:"repairs"`
	}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))

	var titles []string
	for _, m := range out.Movies {
		titles = append(titles, m.Title)
	}
	require.Equal(t, []string{"The Matrix", "Toy Story", "Forrest Gump"}, titles)
	require.NotEmpty(t, out.Repairs)
	require.Empty(t, ts.Gemini.Calls())
}
