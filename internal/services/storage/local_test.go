package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/denisAlshanov/ytgrab/internal/config"
)

func TestLocalLibraryExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "videos")
	lib := NewLocalLibrary(dir)

	if err := lib.Ensure(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	exists, err := lib.Exists(context.Background(), "My Video.mp4")
	if err != nil || exists {
		t.Fatalf("Expected missing file, got exists=%v err=%v", exists, err)
	}

	if err := os.WriteFile(lib.Path("My Video.mp4"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	exists, err = lib.Exists(context.Background(), "My Video.mp4")
	if err != nil || !exists {
		t.Fatalf("Expected existing file, got exists=%v err=%v", exists, err)
	}
}

func TestLocalLibraryResolve(t *testing.T) {
	lib := NewLocalLibrary(t.TempDir())
	if err := os.WriteFile(lib.Path("clip.mp4"), []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(lib.Path("folder.mp4"), 0o755); err != nil {
		t.Fatal(err)
	}

	path, info, err := lib.Resolve("clip.mp4")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if path != filepath.Join(lib.Dir(), "clip.mp4") || info.Size() != 10 {
		t.Errorf("Unexpected resolve result: %s (%d bytes)", path, info.Size())
	}

	if _, _, err := lib.Resolve("missing.mp4"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}

	if _, _, err := lib.Resolve("folder.mp4"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected directories to be rejected, got %v", err)
	}
}

func TestLocalLibraryRejectsEscapes(t *testing.T) {
	lib := NewLocalLibrary(t.TempDir())

	for _, name := range []string{"", ".", "..", "../secret", "a/b.mp4", `a\b.mp4`, ".ytgrab-123"} {
		if _, _, err := lib.Resolve(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Resolve(%q): expected ErrInvalidName, got %v", name, err)
		}
		if _, err := lib.Exists(context.Background(), name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Exists(%q): expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestNewArchiverDisabled(t *testing.T) {
	archiver, err := NewArchiver(&config.S3Config{Enabled: false})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if archiver != nil {
		t.Error("Expected nil archiver when S3 is disabled")
	}
}
