// Package testserver runs the full HTTP stack against a fake Gemini endpoint,
// an in-memory audit database and a small fixed dataset.
package testserver

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/cinequery/internal/domain/audit"
	"github.com/rpggio/cinequery/internal/domain/movie"
	"github.com/rpggio/cinequery/internal/domain/pipeline"
	"github.com/rpggio/cinequery/internal/domain/query"
	"github.com/rpggio/cinequery/internal/llm"
	"github.com/rpggio/cinequery/internal/llm/geminitest"
	"github.com/rpggio/cinequery/internal/mcp"
	"github.com/rpggio/cinequery/internal/sqlite"
	"github.com/rpggio/cinequery/internal/transport"
)

type TestServer struct {
	Server   *httptest.Server
	DB       *sqlite.DB
	Store    *movie.Store
	Gemini   *geminitest.Server
	Token    string
	ClientID string
}

// Options tunes a TestServer. Zero values give a server with auth enabled
// and the sample dataset loaded.
type Options struct {
	// Gemini answers language-model calls; nil answers every call with
	// an error status.
	Gemini      geminitest.Responder
	Movies      []movie.Movie
	CallTimeout time.Duration
}

func New(t *testing.T, token, clientID string, opts Options) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	keyRepo := sqlite.NewAPIKeyRepository(db)
	auditSvc := audit.NewService(sqlite.NewAuditRepository(db), nil)

	movies := opts.Movies
	if movies == nil {
		movies = SampleMovies()
	}
	store := movie.NewStore(nil)
	_, err = store.Load(context.Background(), movie.StaticSource{Label: "sample", Records: movie.SnapshotOf(movies...)})
	require.NoError(t, err)

	respond := opts.Gemini
	if respond == nil {
		respond = func(int, geminitest.Call) geminitest.Reply {
			return geminitest.Status(400, "no responder configured")
		}
	}
	gemini := geminitest.New(t, respond)
	client := llm.NewClient(llm.Config{
		APIKey:     "test-key",
		Model:      "gemini-test",
		Endpoint:   gemini.Endpoint(),
		MaxRetries: 1,
		BaseDelay:  time.Millisecond,
	})

	pipelineOpts := []pipeline.Option{pipeline.WithAudit(auditSvc)}
	if opts.CallTimeout > 0 {
		pipelineOpts = append(pipelineOpts, pipeline.WithCallTimeout(opts.CallTimeout))
	}
	pipelineSvc := pipeline.NewService(
		llm.NewTranslator(client),
		llm.NewSynthesizer(client),
		query.NewExecutor(store),
		nil,
		pipelineOpts...,
	)

	mcpServer := mcp.NewServer(mcp.Config{
		Pipeline:      pipelineSvc,
		Resolver:      keyRepo,
		AuthEnabled:   true,
		TransportMode: "http",
	})

	server := httptest.NewServer(transport.NewServer(pipelineSvc, transport.Options{
		Audit:      auditSvc,
		Datasets:   store,
		Auth:       transport.AuthMiddleware(keyRepo),
		MCP:        mcp.NewHTTPHandler(mcpServer),
		CORSOrigin: "*",
	}))

	ts := &TestServer{
		Server:   server,
		DB:       db,
		Store:    store,
		Gemini:   gemini,
		Token:    token,
		ClientID: clientID,
	}

	require.NoError(t, ts.AddAPIKey(token, clientID))

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return ts
}

func (ts *TestServer) AddAPIKey(token, clientID string) error {
	return sqlite.NewAPIKeyRepository(ts.DB).Add(context.Background(), clientID, token, "test")
}

// SampleMovies returns a small dataset with enough overlap to exercise
// filters, ties and ordering.
func SampleMovies() []movie.Movie {
	runtime := func(n int) *int { return &n }
	return []movie.Movie{
		{ID: "tt0468569", Title: "The Dark Knight", Year: 2008, Rating: 9.0, Director: "Christopher Nolan",
			Genres: []string{"Action", "Crime", "Drama"}, Actors: []string{"Christian Bale", "Heath Ledger"}, RuntimeMinutes: runtime(152)},
		{ID: "tt1375666", Title: "Inception", Year: 2010, Rating: 8.8, Director: "Christopher Nolan",
			Genres: []string{"Action", "Adventure", "Sci-Fi"}, Actors: []string{"Leonardo DiCaprio", "Joseph Gordon-Levitt"}, RuntimeMinutes: runtime(148)},
		{ID: "tt0816692", Title: "Interstellar", Year: 2014, Rating: 8.7, Director: "Christopher Nolan",
			Genres: []string{"Adventure", "Drama", "Sci-Fi"}, Actors: []string{"Matthew McConaughey", "Anne Hathaway"}, RuntimeMinutes: runtime(169)},
		{ID: "tt0109830", Title: "Forrest Gump", Year: 1994, Rating: 8.8, Director: "Robert Zemeckis",
			Genres: []string{"Drama", "Romance"}, Actors: []string{"Tom Hanks", "Robin Wright"}},
		{ID: "tt0114709", Title: "Toy Story", Year: 1995, Rating: 8.3, Director: "John Lasseter",
			Genres: []string{"Animation", "Adventure", "Comedy"}, Actors: []string{"Tom Hanks", "Tim Allen"}},
		{ID: "tt0133093", Title: "The Matrix", Year: 1999, Rating: 8.7, Director: "Lana Wachowski",
			Genres: []string{"Action", "Sci-Fi"}, Actors: []string{"Keanu Reeves", "Laurence Fishburne"}},
		{ID: "tt9999999", Title: "Untitled Documentary", Year: 2020, Rating: 6.1,
			Genres: []string{"Documentary"}, Actors: []string{}},
	}
}
