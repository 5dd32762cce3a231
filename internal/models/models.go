package models

import (
	"time"
)

// DownloadPhase is the lifecycle stage of a single download.
type DownloadPhase string

const (
	PhaseRequested     DownloadPhase = "requested"
	PhaseExtracting    DownloadPhase = "extracting"
	PhaseDownloading   DownloadPhase = "downloading"
	PhaseCompleted     DownloadPhase = "completed"
	PhaseFailed        DownloadPhase = "failed"
	PhaseSkippedExists DownloadPhase = "skipped_exists"
	PhaseCancelled     DownloadPhase = "cancelled"
)

// IsTerminal reports whether no further transition can happen.
func (p DownloadPhase) IsTerminal() bool {
	switch p {
	case PhaseCompleted, PhaseFailed, PhaseSkippedExists, PhaseCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the download still occupies the slot.
func (p DownloadPhase) IsActive() bool {
	return p == PhaseRequested || p == PhaseExtracting || p == PhaseDownloading
}

type EventType string

const (
	EventTypeStatus   EventType = "status"
	EventTypeProgress EventType = "progress"
	EventTypeResult   EventType = "result"
	EventTypeError    EventType = "error"
)

// DownloadEvent is one entry of a download's status stream.
type DownloadEvent struct {
	Seq         int64         `json:"seq"`
	Timestamp   time.Time     `json:"timestamp"`
	JobID       string        `json:"job_id"`
	Type        EventType     `json:"type"`
	Phase       DownloadPhase `json:"phase"`
	Fraction    float64       `json:"fraction"`
	Message     string        `json:"message,omitempty"`
	FileName    string        `json:"file_name,omitempty"`
	DownloadURL string        `json:"download_url,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Download is a point-in-time snapshot of a download job.
type Download struct {
	ID          string        `json:"id"`
	URL         string        `json:"url"`
	Phase       DownloadPhase `json:"phase"`
	Fraction    float64       `json:"fraction"`
	Title       string        `json:"title,omitempty"`
	FileName    string        `json:"file_name,omitempty"`
	DownloadURL string        `json:"download_url,omitempty"`
	Message     string        `json:"message,omitempty"`
	Error       string        `json:"error,omitempty"`
	ArchiveKey  string        `json:"archive_key,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  *time.Time    `json:"finished_at,omitempty"`
}

type CreateDownloadRequest struct {
	URL string `json:"url" form:"url"`
}

type DownloadListResponse struct {
	Busy      bool       `json:"busy"`
	Downloads []Download `json:"downloads"`
}
