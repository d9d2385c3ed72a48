package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rpggio/cinequery/internal/domain/audit"
	"github.com/rpggio/cinequery/internal/domain/movie"
	"github.com/rpggio/cinequery/internal/domain/pipeline"
)

const (
	welcomeMessage  = "Welcome to CineQuery API. Use the /query endpoint to submit natural language movie queries."
	msgMissingQuery = "Missing 'query' parameter in request body."
	msgUnavailable  = "API service is unavailable. Please try again later."

	maxBodyBytes = 64 << 10
)

// Asker answers natural-language questions.
type Asker interface {
	Ask(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

// AuditLister lists recent audit entries.
type AuditLister interface {
	Recent(ctx context.Context, opts audit.ListOptions) ([]audit.Entry, error)
}

// DatasetProvider exposes the currently loaded dataset.
type DatasetProvider interface {
	Dataset() (*movie.Dataset, error)
}

// Options configures the HTTP server. Nil fields disable the matching routes
// or middleware.
type Options struct {
	Audit    AuditLister
	Datasets DatasetProvider
	Auth     func(http.Handler) http.Handler
	MCP      http.Handler
	// CORSOrigin is sent as Access-Control-Allow-Origin; empty disables CORS.
	CORSOrigin string
	Logger     *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	asker    Asker
	audit    AuditLister
	datasets DatasetProvider
	logger   *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(asker Asker, opts Options) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	srv := &Server{
		asker:    asker,
		audit:    opts.Audit,
		datasets: opts.Datasets,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(CORSMiddleware(opts.CORSOrigin))

	r.Get("/", srv.handleWelcome)
	r.Get("/health", srv.handleHealth)

	r.Group(func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth)
		}

		r.Get("/query", srv.handleQuery)
		r.Post("/query", srv.handleQuery)
		r.Post("/api/v1/query", srv.handleQuery)

		if srv.audit != nil {
			r.Get("/api/v1/audit", srv.handleAudit)
		}
	})

	// The MCP server authenticates per method, so initialize stays reachable.
	if opts.MCP != nil {
		r.Handle("/mcp", opts.MCP)
		r.Handle("/mcp/*", opts.MCP)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, errorBody{Message: "Not found.", Code: "NOT_FOUND"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, errorBody{Message: "Method not allowed.", Code: "METHOD_NOT_ALLOWED"})
	})

	return r
}

func (s *Server) handleWelcome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": welcomeMessage})
}

type healthResponse struct {
	Status  string         `json:"status"`
	Dataset *datasetStatus `json:"dataset,omitempty"`
	Message string         `json:"message,omitempty"`
}

type datasetStatus struct {
	Version  string    `json:"version"`
	Source   string    `json:"source"`
	Records  int       `json:"records"`
	LoadedAt time.Time `json:"loaded_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.datasets == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}
	ds, err := s.datasets.Dataset()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Message: msgUnavailable})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Dataset: &datasetStatus{
			Version:  ds.Version(),
			Source:   ds.Source(),
			Records:  ds.Len(),
			LoadedAt: ds.LoadedAt(),
		},
	})
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	question, ok := readQuestion(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, errorBody{Message: msgMissingQuery, Code: string(pipeline.CodeInvalidRequest)})
		return
	}

	requestID, _ := RequestIDFromContext(r.Context())
	clientID, _ := ClientFromContext(r.Context())

	resp, err := s.asker.Ask(r.Context(), pipeline.Request{
		Question:  question,
		RequestID: requestID,
		ClientID:  clientID,
		Channel:   audit.ChannelHTTP,
	})
	if err != nil {
		if pipeline.CodeOf(err) == pipeline.CodeCanceled && r.Context().Err() != nil {
			return
		}
		status, body := errorFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("unexpected query error", "request_id", requestID, "error", err)
		}
		body.RequestID = requestID
		writeError(w, r, status, body)
		return
	}

	writeJSON(w, http.StatusOK, newQueryResponse(resp))
}

// readQuestion takes the question from the "query" URL parameter on GET and
// from the JSON body on POST, falling back to a form value.
func readQuestion(r *http.Request) (string, bool) {
	var question string
	if r.Method == http.MethodGet {
		question = r.URL.Query().Get("query")
	} else {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return "", false
		}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
			values, err := url.ParseQuery(string(body))
			if err != nil {
				return "", false
			}
			question = values.Get("query")
		} else {
			var req queryRequest
			if err := json.Unmarshal(body, &req); err != nil {
				return "", false
			}
			question = req.Query
		}
	}
	question = strings.TrimSpace(question)
	return question, question != ""
}

type auditResponse struct {
	Status string        `json:"status"`
	Data   []audit.Entry `json:"data"`
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	opts, err := auditOptions(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, errorBody{Message: err.Error(), Code: string(pipeline.CodeInvalidRequest)})
		return
	}
	if clientID, ok := ClientFromContext(r.Context()); ok {
		opts.ClientID = clientID
	}

	entries, err := s.audit.Recent(r.Context(), opts)
	if err != nil {
		if errors.Is(err, audit.ErrInvalidInput) {
			writeError(w, r, http.StatusBadRequest, errorBody{Message: err.Error(), Code: string(pipeline.CodeInvalidRequest)})
			return
		}
		s.logger.Error("failed to list audit entries", "error", err)
		writeError(w, r, http.StatusInternalServerError, errorBody{Message: msgInternal, Code: codeInternal})
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, auditResponse{Status: statusSuccess, Data: entries})
}

func auditOptions(r *http.Request) (audit.ListOptions, error) {
	q := r.URL.Query()
	var opts audit.ListOptions
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return audit.ListOptions{}, errors.New("invalid " + name + " parameter")
		}
		*dst = n
	}
	if v := q.Get("outcome"); v != "" {
		outcome := audit.Outcome(strings.ToUpper(v))
		if outcome != audit.OutcomeDone && outcome != audit.OutcomeFailed {
			return audit.ListOptions{}, errors.New("invalid outcome parameter")
		}
		opts.Outcome = &outcome
	}
	if v := q.Get("code"); v != "" {
		code := strings.ToUpper(v)
		opts.Code = &code
	}
	return opts, nil
}
