package storage

import (
	"context"
	"os"
)

// Library is the local directory finished downloads are written to and served from.
type Library interface {
	Dir() string
	Ensure() error
	Path(name string) string
	Exists(ctx context.Context, name string) (bool, error)
	Resolve(name string) (string, os.FileInfo, error)
}

// Archiver copies finished downloads to a remote bucket.
type Archiver interface {
	BucketName() string
	UploadFile(ctx context.Context, key string, path string, contentType string, metadata map[string]string) error
	Exists(ctx context.Context, key string) (bool, error)
}
