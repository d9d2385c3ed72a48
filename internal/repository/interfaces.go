package repository

import (
	"context"

	"github.com/rpggio/cinequery/internal/domain/audit"
)

// AuditRepository manages audit log persistence
type AuditRepository interface {
	Log(ctx context.Context, entry *audit.Entry) error
	List(ctx context.Context, opts audit.ListOptions) ([]audit.Entry, error)
}

// APIKeyRepository manages bearer tokens and the clients they belong to
type APIKeyRepository interface {
	Add(ctx context.Context, clientID, token, description string) error
	ResolveClient(ctx context.Context, token string) (string, error)
}
