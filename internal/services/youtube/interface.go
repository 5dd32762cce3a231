package youtube

import (
	"context"
	"time"

	"github.com/kkdai/youtube/v2"
)

// Extractor is the extraction/download library boundary used by the orchestrator.
type Extractor interface {
	// ExtractInfo retrieves video metadata without transferring media bytes
	ExtractInfo(ctx context.Context, url string) (*VideoInfo, error)

	// Download fetches the video into outputPath, reporting progress per written chunk
	Download(ctx context.Context, info *VideoInfo, outputPath string, progress ProgressFunc) error
}

// ProgressStatus is a cumulative status record delivered while downloading.
// TotalBytes is zero when the exact size is unknown; TotalBytesEstimate may
// then carry an approximation.
type ProgressStatus struct {
	DownloadedBytes    int64
	TotalBytes         int64
	TotalBytesEstimate int64
}

// ProgressFunc receives progress records. It is called on the downloading goroutine.
type ProgressFunc func(ProgressStatus)

// VideoInfo contains YouTube video metadata
type VideoInfo struct {
	ID           string
	URL          string
	Title        string
	Author       string
	Duration     time.Duration
	ThumbnailURL string

	video *youtube.Video
}
