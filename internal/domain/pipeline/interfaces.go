package pipeline

import (
	"context"

	"github.com/rpggio/cinequery/internal/domain/audit"
	"github.com/rpggio/cinequery/internal/domain/movie"
	"github.com/rpggio/cinequery/internal/domain/query"
)

// Translator turns a question into candidate structured-query text.
type Translator interface {
	Translate(ctx context.Context, req TranslateRequest) (string, error)
}

// Synthesizer writes an answer grounded only in the given records.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, movies []movie.Movie) (string, error)
}

// Executor runs validated queries.
type Executor interface {
	Execute(q query.StructuredQuery) (*query.Result, error)
}

// AuditRecorder stores one entry per finished request.
type AuditRecorder interface {
	Record(ctx context.Context, entry *audit.Entry) error
}
