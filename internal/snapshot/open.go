// Package snapshot resolves a configured dataset location into a movie.Source.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rpggio/cinequery/internal/domain/movie"
	"github.com/rpggio/cinequery/internal/sqlite"
)

// ErrUnsupported indicates a location whose format cannot be determined.
var ErrUnsupported = errors.New("unsupported snapshot location")

// Options configures Open.
type Options struct {
	S3 S3Config
	// S3Client overrides the client built from S3.
	S3Client ObjectGetter
}

// Open returns the source for location, which is a path ending in .json,
// .db, .sqlite or .sqlite3, or an s3://bucket/key URL of such an object.
func Open(ctx context.Context, location string, opts Options) (movie.Source, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("%w: empty location", ErrUnsupported)
	}

	if rest, ok := strings.CutPrefix(location, "s3://"); ok {
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" || key == "" {
			return nil, fmt.Errorf("%w: %q must be s3://bucket/key", ErrUnsupported, location)
		}
		if formatOf(key) == formatUnknown {
			return nil, fmt.Errorf("%w: %q has no .json or .db extension", ErrUnsupported, location)
		}
		client := opts.S3Client
		if client == nil {
			c, err := NewS3Client(ctx, opts.S3)
			if err != nil {
				return nil, err
			}
			client = c
		}
		return S3Source{Client: client, Bucket: bucket, Key: key}, nil
	}

	switch formatOf(location) {
	case formatJSON:
		return JSONSource{Path: location}, nil
	case formatSQLite:
		return sqlite.SnapshotSource{Path: location}, nil
	default:
		return nil, fmt.Errorf("%w: %q has no .json or .db extension", ErrUnsupported, location)
	}
}
