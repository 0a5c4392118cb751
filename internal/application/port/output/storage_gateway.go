package output

import (
	"context"
	"errors"
)

// ErrSourceNotFound is returned when a source file does not exist
var ErrSourceNotFound = errors.New("source file not found")

// SourceStorage reads the raw input files of an import process.
// Supports both local filesystem and cloud storage (S3).
// Paths are slash-separated and relative to the storage root.
type SourceStorage interface {
	// Read returns the whole content of path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns the files under prefix in lexical order
	List(ctx context.Context, prefix string) ([]string, error)

	// Location describes path for logs and diagnostics (file path or s3:// URL)
	Location(path string) string
}
