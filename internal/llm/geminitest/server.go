// Package geminitest provides a fake Gemini generateContent endpoint.
package geminitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Call is one request received by the fake.
type Call struct {
	Model  string
	APIKey string
	Body   RequestBody
}

// System returns the system instruction text.
func (c Call) System() string {
	if c.Body.SystemInstruction == nil {
		return ""
	}
	return joinParts(c.Body.SystemInstruction.Parts)
}

// Prompt returns the user prompt text.
func (c Call) Prompt() string {
	var texts []string
	for _, content := range c.Body.Contents {
		texts = append(texts, joinParts(content.Parts))
	}
	return strings.Join(texts, "\n")
}

// JSONMode reports whether the call asked for schema-constrained JSON.
func (c Call) JSONMode() bool {
	return c.Body.GenerationConfig.ResponseMimeType == "application/json" && c.Body.GenerationConfig.ResponseSchema != nil
}

type RequestBody struct {
	Contents          []Content `json:"contents"`
	SystemInstruction *Content  `json:"systemInstruction"`
	GenerationConfig  struct {
		Temperature      float64        `json:"temperature"`
		ResponseMimeType string         `json:"responseMimeType"`
		ResponseSchema   map[string]any `json:"responseSchema"`
	} `json:"generationConfig"`
}

type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

// Reply is what the fake answers with.
type Reply struct {
	Status int
	Body   string
	Header map[string]string
}

// Text answers 200 with one candidate containing text.
func Text(text string) Reply {
	body, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}},
			"finishReason": "STOP",
		}},
	})
	return Reply{Status: http.StatusOK, Body: string(body)}
}

// Status answers with a Gemini-style error body.
func Status(code int, message string) Reply {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]any{"code": code, "message": message, "status": http.StatusText(code)},
	})
	return Reply{Status: code, Body: string(body)}
}

// Responder decides the reply to a call. n counts calls from 1.
type Responder func(n int, call Call) Reply

// Sequence replies in order and repeats the last reply.
func Sequence(replies ...Reply) Responder {
	return func(n int, _ Call) Reply {
		return replies[min(n, len(replies))-1]
	}
}

// Server is a running fake.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	calls   []Call
	respond Responder
}

// New starts a fake that is closed when the test ends.
func New(t testing.TB, respond Responder) *Server {
	t.Helper()
	s := &Server{respond: respond}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Endpoint is the models base URL to configure clients with.
func (s *Server) Endpoint() string {
	return s.URL + "/v1beta/models"
}

// Calls returns the calls received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1beta/models/")
	model, ok := strings.CutSuffix(path, ":generateContent")
	if r.Method != http.MethodPost || !ok {
		http.NotFound(w, r)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	call := Call{Model: model, APIKey: r.Header.Get("x-goog-api-key")}
	if err := json.Unmarshal(data, &call.Body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	n := len(s.calls)
	s.mu.Unlock()

	reply := s.respond(n, call)
	for k, v := range reply.Header {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.Status)
	_, _ = io.WriteString(w, reply.Body)
}

func joinParts(parts []Part) string {
	texts := make([]string, len(parts))
	for i, p := range parts {
		texts[i] = p.Text
	}
	return strings.Join(texts, "")
}
