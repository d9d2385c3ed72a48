package snapshot_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rpggio/cinequery/internal/domain/movie"
	"github.com/rpggio/cinequery/internal/snapshot"
	"github.com/rpggio/cinequery/internal/sqlite"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `[
  {"id": "tt0468569", "title": "The Dark Knight", "year": 2008, "rating": 9.0,
   "director": "Christopher Nolan", "genres": ["Action", "Crime", "Drama"],
   "actors": ["Christian Bale", "Heath Ledger"], "runtime_minutes": 152},
  {"tconst": "tt0114709", "title": "Toy Story", "year": "1995", "rating": "8.3",
   "director": "\\N", "genres": "Animation,Adventure,Comedy", "actors": ["Tom Hanks"]},
  {"id": 42, "title": "Numbered", "year": 2001, "rating": 5, "genres": [], "actors": []}
]`

func TestDecodeJSON(t *testing.T) {
	records, err := snapshot.DecodeJSON(strings.NewReader(sampleJSON))
	require.NoError(t, err)
	require.Len(t, records, 3)

	ds, err := movie.NewDataset("test", records)
	require.NoError(t, err)

	dark := ds.At(0)
	require.Equal(t, "The Dark Knight", dark.Title)
	require.NotNil(t, dark.RuntimeMinutes)
	require.Equal(t, 152, *dark.RuntimeMinutes)

	toy := ds.At(1)
	require.Equal(t, "tt0114709", toy.ID)
	require.Equal(t, 1995, toy.Year)
	require.Equal(t, 8.3, toy.Rating)
	require.Empty(t, toy.Director)
	require.Equal(t, []string{"Animation", "Adventure", "Comedy"}, toy.Genres)

	require.Equal(t, "42", ds.At(2).ID)
}

func TestDecodeJSON_WrappedObject(t *testing.T) {
	records, err := snapshot.DecodeJSON(strings.NewReader(`{"movies": [{"id": "a", "title": "A", "year": 2000, "rating": 7}]}`))
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestDecodeJSON_Malformed(t *testing.T) {
	for _, input := range []string{"", "not json", `{"films": []}`, `[1, 2]`, `[null]`, `[{"id": "a"`} {
		_, err := snapshot.DecodeJSON(strings.NewReader(input))
		require.Error(t, err, "input %q", input)
	}
}

func TestDecodeJSON_MissingMandatoryFieldRejectedByDataset(t *testing.T) {
	records, err := snapshot.DecodeJSON(strings.NewReader(`[{"id": "a", "title": "A", "year": "unknown", "rating": 7}]`))
	require.NoError(t, err)

	_, err = movie.NewDataset("test", records)
	require.ErrorIs(t, err, movie.ErrDatasetLoad)
	require.ErrorContains(t, err, "missing year")
}

func TestOpen_DispatchesOnLocation(t *testing.T) {
	ctx := context.Background()

	src, err := snapshot.Open(ctx, "data/movies_db.json", snapshot.Options{})
	require.NoError(t, err)
	require.IsType(t, snapshot.JSONSource{}, src)

	src, err = snapshot.Open(ctx, "data/movies.sqlite", snapshot.Options{})
	require.NoError(t, err)
	require.IsType(t, sqlite.SnapshotSource{}, src)

	src, err = snapshot.Open(ctx, "s3://bucket/snapshots/movies.json", snapshot.Options{S3Client: &fakeS3{}})
	require.NoError(t, err)
	require.Equal(t, "s3://bucket/snapshots/movies.json", src.Name())

	for _, bad := range []string{"", "movies.csv", "s3://bucket", "s3:///key.json", "s3://bucket/movies.txt"} {
		_, err := snapshot.Open(ctx, bad, snapshot.Options{S3Client: &fakeS3{}})
		require.ErrorIs(t, err, snapshot.ErrUnsupported, "location %q", bad)
	}
}

func TestJSONSource_LoadsIntoStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o644))

	ctx := context.Background()
	src, err := snapshot.Open(ctx, path, snapshot.Options{})
	require.NoError(t, err)

	ds, err := movie.NewStore(nil).Load(ctx, src)
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())

	_, err = movie.NewStore(nil).Load(ctx, snapshot.JSONSource{Path: filepath.Join(t.TempDir(), "missing.json")})
	require.ErrorIs(t, err, movie.ErrDatasetLoad)
}

type fakeS3 struct {
	objects map[string][]byte
	gets    []string
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := *params.Bucket + "/" + *params.Key
	f.gets = append(f.gets, key)
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Source_JSON(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"snaps/2025/movies.json": []byte(sampleJSON)}}
	src := snapshot.S3Source{Client: fake, Bucket: "snaps", Key: "2025/movies.json"}

	records, err := src.Read(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, []string{"snaps/2025/movies.json"}, fake.gets)
}

func TestS3Source_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.db")
	db, err := sqlite.New(path)
	require.NoError(t, err)
	records, err := snapshot.DecodeJSON(strings.NewReader(sampleJSON))
	require.NoError(t, err)
	require.NoError(t, sqlite.WriteSnapshot(context.Background(), db, records))
	require.NoError(t, db.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	fake := &fakeS3{objects: map[string][]byte{"snaps/movies.db": data}}
	ds, err := movie.NewStore(nil).Load(context.Background(), snapshot.S3Source{Client: fake, Bucket: "snaps", Key: "movies.db"})
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())
	require.Equal(t, "s3://snaps/movies.db", ds.Source())
}

func TestS3Source_MissingObject(t *testing.T) {
	src := snapshot.S3Source{Client: &fakeS3{}, Bucket: "snaps", Key: "movies.json"}
	_, err := movie.NewStore(nil).Load(context.Background(), src)
	require.ErrorIs(t, err, movie.ErrDatasetLoad)
	require.ErrorContains(t, err, "NoSuchKey")
}
