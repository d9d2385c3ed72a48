package movie_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rpggio/cinequery/internal/domain/movie"
	"github.com/stretchr/testify/require"
)

type failingSource struct{}

func (failingSource) Name() string { return "broken" }
func (failingSource) Read(context.Context) ([]movie.SnapshotRecord, error) {
	return nil, errors.New("disk on fire")
}

func TestStore_UnavailableBeforeLoad(t *testing.T) {
	store := movie.NewStore(nil)
	_, err := store.Dataset()
	require.ErrorIs(t, err, movie.ErrDatasetUnavailable)
}

func TestStore_Load(t *testing.T) {
	ctx := context.Background()
	store := movie.NewStore(nil)

	ds, err := store.Load(ctx, movie.StaticSource{Records: movie.SnapshotOf(sampleMovies()...)})
	require.NoError(t, err)

	current, err := store.Dataset()
	require.NoError(t, err)
	require.Same(t, ds, current)
}

func TestStore_FailedReloadKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	store := movie.NewStore(nil)

	first, err := store.Load(ctx, movie.StaticSource{Records: movie.SnapshotOf(sampleMovies()...)})
	require.NoError(t, err)

	_, err = store.Load(ctx, failingSource{})
	require.ErrorIs(t, err, movie.ErrDatasetLoad)

	_, err = store.Load(ctx, movie.StaticSource{})
	require.ErrorIs(t, err, movie.ErrDatasetLoad)

	current, err := store.Dataset()
	require.NoError(t, err)
	require.Same(t, first, current)
}

func TestStore_ConcurrentReadersDuringReload(t *testing.T) {
	ctx := context.Background()
	store := movie.NewStore(nil)
	_, err := store.Load(ctx, movie.StaticSource{Records: movie.SnapshotOf(sampleMovies()...)})
	require.NoError(t, err)

	smaller := sampleMovies()[:2]
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				ds, err := store.Dataset()
				if err != nil {
					t.Error(err)
					return
				}
				// A dataset is either the full old one or the full new one.
				n := ds.Len()
				if n != 5 && n != 2 {
					t.Errorf("unexpected dataset size %d", n)
					return
				}
				if len(ds.YearRange(nil, nil)) != n {
					t.Errorf("index out of sync with records")
					return
				}
			}
		}()
	}
	for i := 0; i < 20; i++ {
		src := movie.StaticSource{Records: movie.SnapshotOf(sampleMovies()...)}
		if i%2 == 0 {
			src = movie.StaticSource{Records: movie.SnapshotOf(smaller...)}
		}
		_, err := store.Load(ctx, src)
		require.NoError(t, err)
	}
	wg.Wait()
}
