package utils

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestGenerateIDs(t *testing.T) {
	correlationID := GenerateCorrelationID()
	if correlationID == "" {
		t.Error("Expected non-empty correlation ID")
	}

	requestID := GenerateRequestID()
	if !strings.HasPrefix(requestID, "req_") {
		t.Errorf("Expected request ID to start with 'req_', got %s", requestID)
	}

	jobID := GenerateJobID()
	if !strings.HasPrefix(jobID, "dl_") {
		t.Errorf("Expected job ID to start with 'dl_', got %s", jobID)
	}

	if jobID == GenerateJobID() {
		t.Error("Expected distinct job IDs")
	}
}

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	if GetJobID(ctx) != "" {
		t.Error("Expected empty job ID on bare context")
	}

	ctx = WithCorrelationID(ctx, "corr")
	ctx = WithRequestID(ctx, "req")
	ctx = WithJobID(ctx, "job")

	if GetCorrelationID(ctx) != "corr" || GetRequestID(ctx) != "req" || GetJobID(ctx) != "job" {
		t.Error("Expected IDs to round-trip through context")
	}

	entry := LoggerFromContext(ctx)
	if entry.Data["job_id"] != "job" {
		t.Errorf("Expected job_id field on log entry, got %v", entry.Data)
	}
}

func TestAppErrorHelpers(t *testing.T) {
	err := NewInvalidURLError("not a url")
	if err.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", err.StatusCode)
	}
	if err.Details["provided"] != "not a url" {
		t.Errorf("Expected provided detail, got %v", err.Details)
	}

	wrapped := fmt.Errorf("submit: %w", NewDownloadInProgressError("dl_1"))
	if !IsCode(wrapped, ErrorCodeDownloadInProgress) {
		t.Error("Expected wrapped error to carry DOWNLOAD_IN_PROGRESS")
	}
	if IsCode(fmt.Errorf("plain"), ErrorCodeDownloadInProgress) {
		t.Error("Expected plain error not to match")
	}

	appErr, ok := AsAppError(wrapped)
	if !ok || appErr.StatusCode != http.StatusConflict {
		t.Errorf("Expected conflict AppError, got %v", appErr)
	}
}

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		bytes int64
		want  string
	}{
		{bytes: 0, want: "0 B"},
		{bytes: 1023, want: "1023 B"},
		{bytes: 1024, want: "1.0 KB"},
		{bytes: 1536 * 1024, want: "1.5 MB"},
		{bytes: 3 * 1024 * 1024 * 1024, want: "3.0 GB"},
	}

	for _, tc := range testCases {
		if got := FormatBytes(tc.bytes); got != tc.want {
			t.Errorf("FormatBytes(%d) = %s, want %s", tc.bytes, got, tc.want)
		}
	}
}
