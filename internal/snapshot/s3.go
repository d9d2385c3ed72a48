package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rpggio/cinequery/internal/domain/movie"
	"github.com/rpggio/cinequery/internal/sqlite"
)

// ObjectGetter is the part of the S3 API a snapshot source needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures access to an S3-compatible object store.
type S3Config struct {
	Region          string
	Endpoint        string // empty = AWS
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Client creates an S3 client. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Source reads a JSON or SQLite snapshot stored as an S3 object.
type S3Source struct {
	Client ObjectGetter
	Bucket string
	Key    string
}

func (s S3Source) Name() string {
	return "s3://" + s.Bucket + "/" + s.Key
}

func (s S3Source) Read(ctx context.Context) ([]movie.SnapshotRecord, error) {
	resp, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", s.Key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", s.Key, err)
	}

	if formatOf(s.Key) == formatSQLite {
		return readSQLiteBytes(ctx, data)
	}
	return DecodeJSON(bytes.NewReader(data))
}

// readSQLiteBytes spools a downloaded database to a temporary file, since
// SQLite cannot open a database from memory.
func readSQLiteBytes(ctx context.Context, data []byte) ([]movie.SnapshotRecord, error) {
	f, err := os.CreateTemp("", "cinequery-snapshot-*.db")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	return sqlite.SnapshotSource{Path: f.Name()}.Read(ctx)
}

type format int

const (
	formatUnknown format = iota
	formatJSON
	formatSQLite
)

func formatOf(name string) format {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return formatJSON
	case ".db", ".sqlite", ".sqlite3":
		return formatSQLite
	default:
		return formatUnknown
	}
}
