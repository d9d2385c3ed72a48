package mocks

import (
	"context"

	"github.com/rpggio/cinequery/internal/domain/audit"
	"github.com/rpggio/cinequery/internal/domain/movie"
	"github.com/rpggio/cinequery/internal/domain/pipeline"
	"github.com/stretchr/testify/mock"
)

// AuditRepository is a mock for repository.AuditRepository.
type AuditRepository struct {
	mock.Mock
}

func (m *AuditRepository) Log(ctx context.Context, entry *audit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *AuditRepository) List(ctx context.Context, opts audit.ListOptions) ([]audit.Entry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]audit.Entry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// APIKeyRepository is a mock for repository.APIKeyRepository.
type APIKeyRepository struct {
	mock.Mock
}

func (m *APIKeyRepository) Add(ctx context.Context, clientID, token, description string) error {
	args := m.Called(ctx, clientID, token, description)
	return args.Error(0)
}

func (m *APIKeyRepository) ResolveClient(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

// Translator is a mock for pipeline.Translator.
type Translator struct {
	mock.Mock
}

func (m *Translator) Translate(ctx context.Context, req pipeline.TranslateRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// Synthesizer is a mock for pipeline.Synthesizer.
type Synthesizer struct {
	mock.Mock
}

func (m *Synthesizer) Synthesize(ctx context.Context, question string, movies []movie.Movie) (string, error) {
	args := m.Called(ctx, question, movies)
	return args.String(0), args.Error(1)
}
