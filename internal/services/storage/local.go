package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned for names that would escape the library directory.
var ErrInvalidName = errors.New("invalid file name")

type LocalLibrary struct {
	dir string
}

func NewLocalLibrary(dir string) *LocalLibrary {
	return &LocalLibrary{dir: filepath.Clean(dir)}
}

func (l *LocalLibrary) Dir() string {
	return l.dir
}

// Ensure creates the library directory if needed
func (l *LocalLibrary) Ensure() error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}
	return nil
}

func (l *LocalLibrary) Path(name string) string {
	return filepath.Join(l.dir, name)
}

func (l *LocalLibrary) Exists(ctx context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}

	_, err := os.Stat(l.Path(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
}

// Resolve returns the path and info of an existing regular file in the library.
func (l *LocalLibrary) Resolve(name string) (string, os.FileInfo, error) {
	if err := validateName(name); err != nil {
		return "", nil, err
	}

	path := l.Path(name)
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, err
	}
	if !info.Mode().IsRegular() {
		return "", nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}

	return path, info, nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
