package downloader

import (
	"context"
	"testing"
	"time"

	"github.com/denisAlshanov/ytgrab/internal/models"
	"github.com/denisAlshanov/ytgrab/internal/services/youtube"
)

func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(10)

	for i := 0; i < 3; i++ {
		bus.Publish(models.DownloadEvent{Type: models.EventTypeStatus})
	}

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Errorf("Unexpected sequence numbers %d, %d", events[0].Seq, events[1].Seq)
	}
	if events[0].Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
}

func TestEventBusBounded(t *testing.T) {
	bus := NewEventBus(2)

	for i := 0; i < 5; i++ {
		bus.Publish(models.DownloadEvent{})
	}

	events := bus.Since(0)
	if len(events) != 2 || events[0].Seq != 4 || events[1].Seq != 5 {
		t.Errorf("Expected the two newest events, got %+v", events)
	}
}

func TestEventBusClose(t *testing.T) {
	bus := NewEventBus(0)
	bus.Publish(models.DownloadEvent{})
	bus.Close()

	dropped := bus.Publish(models.DownloadEvent{})
	if dropped.Seq != 0 {
		t.Errorf("Expected dropped event after close, got seq %d", dropped.Seq)
	}
	if !bus.Closed() || len(bus.Since(0)) != 1 {
		t.Error("Expected closed bus with one event")
	}

	last, ok := bus.Last()
	if !ok || last.Seq != 1 {
		t.Errorf("Expected last event seq 1, got %+v", last)
	}
}

func TestEventBusSubscribe(t *testing.T) {
	bus := NewEventBus(0)
	bus.Publish(models.DownloadEvent{Message: "first"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream := bus.Subscribe(ctx, 0)

	go func() {
		bus.Publish(models.DownloadEvent{Message: "second"})
		bus.Close()
	}()

	var messages []string
	for event := range stream {
		messages = append(messages, event.Message)
	}

	if len(messages) != 2 || messages[0] != "first" || messages[1] != "second" {
		t.Errorf("Expected [first second], got %v", messages)
	}
}

func TestEventBusSubscribeResume(t *testing.T) {
	bus := NewEventBus(0)
	for i := 0; i < 3; i++ {
		bus.Publish(models.DownloadEvent{})
	}
	bus.Close()

	var seqs []int64
	for event := range bus.Subscribe(context.Background(), 2) {
		seqs = append(seqs, event.Seq)
	}

	if len(seqs) != 1 || seqs[0] != 3 {
		t.Errorf("Expected only seq 3 after resume, got %v", seqs)
	}
}

func TestEventBusSubscribeContextDone(t *testing.T) {
	bus := NewEventBus(0)
	ctx, cancel := context.WithCancel(context.Background())

	stream := bus.Subscribe(ctx, 0)
	cancel()

	select {
	case _, ok := <-stream:
		if ok {
			t.Error("Expected no events")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Expected stream to close after cancel")
	}
}

func TestJobTransitions(t *testing.T) {
	job := newJob(testURL)

	if job.Phase() != models.PhaseRequested {
		t.Fatalf("Expected requested, got %s", job.Phase())
	}
	if err := job.transition(models.PhaseDownloading, ""); err == nil {
		t.Error("Expected requested -> downloading to be rejected")
	}
	if err := job.transition(models.PhaseExtracting, "Extracting"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := job.transition(models.PhaseDownloading, "Downloading"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	job.complete(outcome{phase: models.PhaseCompleted, message: "done"})
	if job.Phase() != models.PhaseCompleted || job.Fraction() != 1 {
		t.Errorf("Expected completed at 1, got %s at %v", job.Phase(), job.Fraction())
	}

	// Terminal phases are final.
	job.complete(outcome{phase: models.PhaseFailed, message: "late"})
	if job.Phase() != models.PhaseCompleted {
		t.Errorf("Expected completed to stick, got %s", job.Phase())
	}
	if err := job.transition(models.PhaseExtracting, ""); err == nil {
		t.Error("Expected transition out of a terminal phase to be rejected")
	}

	select {
	case <-job.Done():
	default:
		t.Error("Expected done channel to be closed")
	}
}

func TestJobCompleteInvalidOutcome(t *testing.T) {
	job := newJob(testURL)

	job.complete(outcome{phase: models.PhaseCompleted, message: "done"})

	snapshot := job.Snapshot()
	if snapshot.Phase != models.PhaseFailed || snapshot.Error == "" {
		t.Errorf("Expected invalid completion to fail, got %+v", snapshot)
	}
}

func TestJobSetProgressDeduplicates(t *testing.T) {
	job := newJob(testURL)

	if !job.setProgress(0.5) {
		t.Error("Expected first change to publish")
	}
	if job.setProgress(0.5001) {
		t.Error("Expected sub-permille change to be skipped")
	}
	if !job.setProgress(0.6) {
		t.Error("Expected change to publish")
	}
	if job.Fraction() != 0.6 {
		t.Errorf("Expected fraction 0.6, got %v", job.Fraction())
	}
}

func TestProgressFraction(t *testing.T) {
	tests := []struct {
		name   string
		status youtube.ProgressStatus
		want   float64
	}{
		{"exact total", youtube.ProgressStatus{DownloadedBytes: 50, TotalBytes: 200}, 0.25},
		{"complete", youtube.ProgressStatus{DownloadedBytes: 200, TotalBytes: 200}, 1},
		{"estimate", youtube.ProgressStatus{DownloadedBytes: 100, TotalBytesEstimate: 400}, 0.25},
		{"total preferred", youtube.ProgressStatus{DownloadedBytes: 100, TotalBytes: 200, TotalBytesEstimate: 1000}, 0.5},
		{"unknown total", youtube.ProgressStatus{DownloadedBytes: 100}, 0},
		{"over estimate", youtube.ProgressStatus{DownloadedBytes: 500, TotalBytesEstimate: 400}, 1},
		{"negative", youtube.ProgressStatus{DownloadedBytes: -5, TotalBytes: 200}, 0},
		{"empty", youtube.ProgressStatus{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProgressFraction(tt.status)
			if got != tt.want {
				t.Errorf("ProgressFraction(%+v) = %v, want %v", tt.status, got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("Fraction out of range: %v", got)
			}
		})
	}
}
