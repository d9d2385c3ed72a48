package pipeline

import (
	"github.com/rpggio/cinequery/internal/domain/audit"
	"github.com/rpggio/cinequery/internal/domain/movie"
	"github.com/rpggio/cinequery/internal/domain/query"
)

// Stage is a state of the per-request pipeline.
type Stage string

const (
	StageTranslating  Stage = "TRANSLATING"
	StageValidating   Stage = "VALIDATING"
	StageExecuting    Stage = "EXECUTING"
	StageSynthesizing Stage = "SYNTHESIZING"
	StageDone         Stage = "DONE"
	StageFailed       Stage = "FAILED"
)

// MaxTranslationAttempts bounds the VALIDATING -> TRANSLATING retry edge.
const MaxTranslationAttempts = 2

// Request is one question submitted to the pipeline.
type Request struct {
	Question  string
	RequestID string
	ClientID  string
	Channel   audit.Channel
}

// Response is the outcome of a successful pipeline run.
type Response struct {
	RequestID      string
	Question       string
	Query          query.StructuredQuery
	Report         query.Report
	Movies         []movie.Movie
	Answer         string
	Matched        int
	Attempts       int
	Degraded       bool // synthesis failed and Answer is the fallback listing
	DatasetVersion string
}

// TranslateRequest is the input to one translation call.
type TranslateRequest struct {
	Question string
	Schema   map[string]any
	// PreviousOutput holds the malformed output of the prior attempt on retry.
	PreviousOutput string
	// PreviousError describes why PreviousOutput was rejected.
	PreviousError string
}

// Retry reports whether this request follows a rejected attempt.
func (r TranslateRequest) Retry() bool {
	return r.PreviousOutput != "" || r.PreviousError != ""
}
