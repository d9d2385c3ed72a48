package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rpggio/cinequery/internal/domain/movie"
	"github.com/stretchr/testify/require"
)

func sampleMovies() []movie.Movie {
	runtime := 152
	return []movie.Movie{
		{ID: "tt0468569", Title: "The Dark Knight", Year: 2008, Rating: 9.0, Director: "Christopher Nolan", Genres: []string{"Action", "Crime", "Drama"}, Actors: []string{"Christian Bale", "Heath Ledger"}, RuntimeMinutes: &runtime},
		{ID: "tt0114709", Title: "Toy Story", Year: 1995, Rating: 8.3, Genres: []string{"Animation"}, Actors: []string{"Tom Hanks", "Tim Allen"}},
	}
}

func writeSnapshotFile(t *testing.T, records []movie.SnapshotRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movies.db")
	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, WriteSnapshot(context.Background(), db, records))
	require.NoError(t, db.Close())
	return path
}

func TestSnapshotSource_RoundTrip(t *testing.T) {
	path := writeSnapshotFile(t, movie.SnapshotOf(sampleMovies()...))

	store := movie.NewStore(nil)
	ds, err := store.Load(context.Background(), SnapshotSource{Path: path})
	require.NoError(t, err)
	require.Equal(t, path, ds.Source())
	require.Equal(t, sampleMovies(), ds.All())
}

func TestSnapshotSource_NullMandatoryFieldFailsLoad(t *testing.T) {
	records := movie.SnapshotOf(sampleMovies()...)
	records[1].Rating = nil
	path := writeSnapshotFile(t, records)

	_, err := movie.NewStore(nil).Load(context.Background(), SnapshotSource{Path: path, Label: "snap"})
	require.ErrorIs(t, err, movie.ErrDatasetLoad)
	require.ErrorContains(t, err, "missing rating")
}

func TestSnapshotSource_MissingFile(t *testing.T) {
	src := SnapshotSource{Path: filepath.Join(t.TempDir(), "absent.db")}
	_, err := src.Read(context.Background())
	require.Error(t, err)

	_, err = movie.NewStore(nil).Load(context.Background(), src)
	require.ErrorIs(t, err, movie.ErrDatasetLoad)
}

func TestSnapshotSource_NotASnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.db")
	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	require.NoError(t, db.Close())

	_, err = SnapshotSource{Path: path}.Read(context.Background())
	require.ErrorContains(t, err, "movies")
}
