package sqlite

import (
	"context"
	"testing"

	"github.com/rpggio/cinequery/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyRepository_AddResolve(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewAPIKeyRepository(db)

	require.NoError(t, repo.Add(ctx, "alice", "secret-token", "laptop"))

	clientID, err := repo.ResolveClient(ctx, "secret-token")
	require.NoError(t, err)
	require.Equal(t, "alice", clientID)

	var stored string
	var used bool
	require.NoError(t, db.QueryRow(`SELECT key_hash, last_used IS NOT NULL FROM api_keys`).Scan(&stored, &used))
	require.Equal(t, HashToken("secret-token"), stored)
	require.NotContains(t, stored, "secret")
	require.True(t, used)
}

func TestAPIKeyRepository_Errors(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewAPIKeyRepository(db)

	_, err := repo.ResolveClient(ctx, "unknown")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.ErrorIs(t, repo.Add(ctx, "", "token", ""), repository.ErrInvalidInput)
	require.ErrorIs(t, repo.Add(ctx, "alice", "  ", ""), repository.ErrInvalidInput)

	require.NoError(t, repo.Add(ctx, "alice", "token", ""))
	require.ErrorIs(t, repo.Add(ctx, "bob", "token", ""), repository.ErrConflict)
}
