package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/YoshitsuguKoike/procrunner/internal/application/port/output"
)

// S3SourceStorage implements SourceStorage on an S3 bucket.
// Keys are <prefix>/<path>.
type S3SourceStorage struct {
	client     S3API // Use interface for testability
	bucketName string
	prefix     string // Optional prefix for all keys (e.g., "imports/prod")
	pageSize   int32  // ListObjectsV2 page size, 0 uses the S3 default
}

// S3Config holds S3 source storage configuration
type S3Config struct {
	BucketName string // S3 bucket name
	Prefix     string // Optional key prefix
	Region     string // AWS region (optional, uses default if empty)
}

// NewS3SourceStorage creates a storage backed by the default AWS credential chain
func NewS3SourceStorage(ctx context.Context, cfg S3Config) (*S3SourceStorage, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	// Override region if specified
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}

	return NewS3SourceStorageWithClient(s3.NewFromConfig(awsCfg), cfg.BucketName, cfg.Prefix), nil
}

// NewS3SourceStorageWithClient creates a storage with a custom S3 client
// This is primarily used for testing with mock S3 clients
func NewS3SourceStorageWithClient(client S3API, bucketName, prefix string) *S3SourceStorage {
	return &S3SourceStorage{
		client:     client,
		bucketName: bucketName,
		prefix:     strings.Trim(prefix, "/"),
	}
}

// WithPageSize sets the number of keys requested per list page
func (g *S3SourceStorage) WithPageSize(n int32) *S3SourceStorage {
	g.pageSize = n
	return g
}

// Read downloads the object for name
func (g *S3SourceStorage) Read(ctx context.Context, name string) ([]byte, error) {
	key := g.buildKey(name)

	obj, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", output.ErrSourceNotFound, g.Location(name))
		}
		return nil, fmt.Errorf("download %s: %w", g.Location(name), err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", g.Location(name), err)
	}
	return data, nil
}

// List returns the paths of all objects under prefix, relative to the storage prefix
func (g *S3SourceStorage) List(ctx context.Context, prefix string) ([]string, error) {
	keyPrefix := g.buildKey(prefix)
	if keyPrefix != "" && !strings.HasSuffix(keyPrefix, "/") && prefix != "" {
		keyPrefix += "/"
	}

	paginator := s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucketName),
		Prefix: aws.String(keyPrefix),
	}, func(o *s3.ListObjectsV2PaginatorOptions) {
		if g.pageSize > 0 {
			o.Limit = g.pageSize
		}
	})

	var files []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list S3 objects under %s: %w", keyPrefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			files = append(files, g.relative(key))
		}
	}

	sort.Strings(files)
	return files, nil
}

// Location returns the s3:// URL of name
func (g *S3SourceStorage) Location(name string) string {
	return fmt.Sprintf("s3://%s/%s", g.bucketName, g.buildKey(name))
}

// buildKey constructs an S3 key with optional prefix
func (g *S3SourceStorage) buildKey(name string) string {
	name = strings.TrimPrefix(name, "/")
	if g.prefix == "" {
		return name
	}
	if name == "" {
		return g.prefix + "/"
	}
	return g.prefix + "/" + name
}

func (g *S3SourceStorage) relative(key string) string {
	if g.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, g.prefix+"/")
}
