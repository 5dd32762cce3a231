package storage

import (
	"fmt"

	"github.com/denisAlshanov/ytgrab/internal/config"
)

// NewArchiver creates S3 storage, or returns nil when archiving is disabled
func NewArchiver(cfg *config.S3Config) (Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	storage, err := NewS3Storage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 storage: %w", err)
	}

	return storage, nil
}
