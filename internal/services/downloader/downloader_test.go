package downloader

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/denisAlshanov/ytgrab/internal/config"
	"github.com/denisAlshanov/ytgrab/internal/models"
	"github.com/denisAlshanov/ytgrab/internal/services/storage"
	"github.com/denisAlshanov/ytgrab/internal/services/youtube"
	"github.com/denisAlshanov/ytgrab/internal/utils"
)

const testURL = "https://www.youtube.com/watch?v=abc123"

type fakeExtractor struct {
	mu            sync.Mutex
	title         string
	extractErr    error
	downloadErr   error
	progress      []youtube.ProgressStatus
	block         chan struct{}
	started       chan struct{}
	waitForCancel bool
	extractCalls  int
	downloadCalls int
}

func (f *fakeExtractor) ExtractInfo(ctx context.Context, url string) (*youtube.VideoInfo, error) {
	f.mu.Lock()
	f.extractCalls++
	f.mu.Unlock()

	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return &youtube.VideoInfo{ID: "abc123", URL: url, Title: f.title, Author: "Tester", Duration: time.Minute}, nil
}

func (f *fakeExtractor) Download(ctx context.Context, info *youtube.VideoInfo, outputPath string, progress youtube.ProgressFunc) error {
	f.mu.Lock()
	f.downloadCalls++
	f.mu.Unlock()

	if f.started != nil {
		close(f.started)
	}
	if f.waitForCancel {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.block != nil {
		<-f.block
	}
	for _, status := range f.progress {
		progress(status)
	}
	if f.downloadErr != nil {
		return f.downloadErr
	}
	return os.WriteFile(outputPath, []byte("video"), 0o644)
}

func (f *fakeExtractor) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.extractCalls, f.downloadCalls
}

type fakeArchiver struct {
	err  error
	keys []string
}

func (a *fakeArchiver) BucketName() string { return "test-bucket" }

func (a *fakeArchiver) UploadFile(ctx context.Context, key, path, contentType string, metadata map[string]string) error {
	if a.err != nil {
		return a.err
	}
	a.keys = append(a.keys, key)
	return nil
}

func (a *fakeArchiver) Exists(ctx context.Context, key string) (bool, error) { return false, nil }

func newTestService(t *testing.T, extractor youtube.Extractor) (*Service, *storage.LocalLibrary) {
	t.Helper()
	utils.SetLevel("error")

	library := storage.NewLocalLibrary(t.TempDir())
	cfg := &config.DownloadConfig{
		Directory:    library.Dir(),
		Container:    config.Container,
		Quiet:        true,
		JobRetention: 10,
	}
	return NewService(extractor, library, cfg), library
}

func waitDone(t *testing.T, job *Job) {
	t.Helper()
	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("Timed out waiting for job %s", job.ID)
	}
}

func TestRunCompletes(t *testing.T) {
	extractor := &fakeExtractor{title: "My Video"}
	svc, library := newTestService(t, extractor)

	job, err := svc.Run(context.Background(), testURL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	snapshot := job.Snapshot()
	if snapshot.Phase != models.PhaseCompleted {
		t.Fatalf("Expected completed, got %s (%s)", snapshot.Phase, snapshot.Error)
	}
	if snapshot.FileName != "My Video.mp4" {
		t.Errorf("Expected file name 'My Video.mp4', got %q", snapshot.FileName)
	}
	if snapshot.DownloadURL != "/files/My%20Video.mp4" {
		t.Errorf("Unexpected download URL %q", snapshot.DownloadURL)
	}
	if snapshot.Fraction != 1 || snapshot.FinishedAt == nil {
		t.Errorf("Expected finished job at full progress, got %+v", snapshot)
	}
	if _, err := os.Stat(library.Path("My Video.mp4")); err != nil {
		t.Errorf("Expected file on disk: %v", err)
	}
	if svc.Busy() {
		t.Error("Expected service to be idle")
	}
}

func TestSubmitRejectsInvalidURL(t *testing.T) {
	extractor := &fakeExtractor{title: "My Video"}
	svc, _ := newTestService(t, extractor)

	_, err := svc.Submit(context.Background(), "not a url")
	if !utils.IsCode(err, utils.ErrorCodeInvalidURL) {
		t.Fatalf("Expected invalid URL error, got %v", err)
	}

	if extract, download := extractor.calls(); extract != 0 || download != 0 {
		t.Errorf("Expected no extractor calls, got %d/%d", extract, download)
	}
	if svc.Busy() || len(svc.Jobs()) != 0 {
		t.Error("Expected no state change on invalid input")
	}
}

func TestSubmitReportsDownloadError(t *testing.T) {
	extractor := &fakeExtractor{title: "My Video", downloadErr: errors.New("network timeout")}
	svc, library := newTestService(t, extractor)

	job, err := svc.Submit(context.Background(), testURL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	waitDone(t, job)

	snapshot := job.Snapshot()
	if snapshot.Phase != models.PhaseFailed {
		t.Fatalf("Expected failed, got %s", snapshot.Phase)
	}
	if snapshot.Error != "network timeout" || !strings.Contains(snapshot.Message, "network timeout") {
		t.Errorf("Expected error text to be surfaced, got %q / %q", snapshot.Error, snapshot.Message)
	}
	if snapshot.DownloadURL != "" {
		t.Errorf("Expected no download URL, got %q", snapshot.DownloadURL)
	}
	if svc.Busy() {
		t.Error("Expected slot to be released after failure")
	}

	last, ok := job.Events().Last()
	if !ok || last.Type != models.EventTypeError || !strings.Contains(last.Message, "network timeout") {
		t.Errorf("Expected terminal error event, got %+v", last)
	}
	if _, err := os.Stat(library.Path("My Video.mp4")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected no output file, got %v", err)
	}
}

func TestRunReportsExtractError(t *testing.T) {
	extractor := &fakeExtractor{extractErr: errors.New("video unavailable")}
	svc, _ := newTestService(t, extractor)

	job, err := svc.Run(context.Background(), testURL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if job.Phase() != models.PhaseFailed || job.Snapshot().Error != "video unavailable" {
		t.Errorf("Expected extraction failure, got %+v", job.Snapshot())
	}
	if _, download := extractor.calls(); download != 0 {
		t.Errorf("Expected no download call, got %d", download)
	}
}

func TestRunSkipsExistingFile(t *testing.T) {
	extractor := &fakeExtractor{title: "My Video"}
	svc, library := newTestService(t, extractor)

	if err := os.WriteFile(library.Path("My Video.mp4"), []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	job, err := svc.Run(context.Background(), testURL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	snapshot := job.Snapshot()
	if snapshot.Phase != models.PhaseSkippedExists {
		t.Fatalf("Expected skipped_exists, got %s", snapshot.Phase)
	}
	if !strings.Contains(snapshot.Message, "already downloaded") {
		t.Errorf("Unexpected message %q", snapshot.Message)
	}
	if snapshot.DownloadURL == "" {
		t.Error("Expected existing file to be offered")
	}
	if _, download := extractor.calls(); download != 0 {
		t.Errorf("Expected download not to be called, got %d calls", download)
	}

	data, err := os.ReadFile(library.Path("My Video.mp4"))
	if err != nil || string(data) != "existing" {
		t.Errorf("Expected existing file untouched, got %q (%v)", data, err)
	}
	if svc.Busy() {
		t.Error("Expected slot to be released after skip")
	}
}

func TestRunPublishesProgress(t *testing.T) {
	extractor := &fakeExtractor{
		title: "My Video",
		progress: []youtube.ProgressStatus{
			{DownloadedBytes: 50, TotalBytes: 200},
			{DownloadedBytes: 200, TotalBytes: 200},
		},
	}
	svc, _ := newTestService(t, extractor)

	job, err := svc.Run(context.Background(), testURL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var fractions []float64
	for _, event := range job.Events().Since(0) {
		if event.Type == models.EventTypeProgress {
			fractions = append(fractions, event.Fraction)
		}
	}

	if len(fractions) != 2 || fractions[0] != 0.25 || fractions[1] != 1.0 {
		t.Errorf("Expected progress [0.25 1], got %v", fractions)
	}
}

func TestRunEventOrder(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{title: "My Video"})

	job, err := svc.Run(context.Background(), testURL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var phases []models.DownloadPhase
	var lastSeq int64
	for _, event := range job.Events().Since(0) {
		if event.Seq <= lastSeq {
			t.Fatalf("Expected increasing sequence, got %d after %d", event.Seq, lastSeq)
		}
		lastSeq = event.Seq
		phases = append(phases, event.Phase)
	}

	want := []models.DownloadPhase{
		models.PhaseRequested,
		models.PhaseExtracting,
		models.PhaseDownloading,
		models.PhaseCompleted,
	}
	if len(phases) != len(want) {
		t.Fatalf("Expected phases %v, got %v", want, phases)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("Phase %d: expected %s, got %s", i, want[i], phases[i])
		}
	}
	if !job.Events().Closed() {
		t.Error("Expected event stream to be closed")
	}
}

func TestSubmitRejectsWhileBusy(t *testing.T) {
	extractor := &fakeExtractor{title: "My Video", block: make(chan struct{}), started: make(chan struct{})}
	svc, _ := newTestService(t, extractor)

	job, err := svc.Submit(context.Background(), testURL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	<-extractor.started

	if !svc.Busy() {
		t.Error("Expected service to be busy")
	}
	active, ok := svc.Active()
	if !ok || active.ID != job.ID {
		t.Errorf("Expected active job %s", job.ID)
	}

	_, err = svc.Submit(context.Background(), "https://youtu.be/other")
	appErr, ok := utils.AsAppError(err)
	if !ok || appErr.Code != utils.ErrorCodeDownloadInProgress || appErr.StatusCode != 409 {
		t.Fatalf("Expected download in progress error, got %v", err)
	}
	if appErr.Details["active_id"] != job.ID {
		t.Errorf("Expected active id %s in details, got %v", job.ID, appErr.Details["active_id"])
	}

	close(extractor.block)
	waitDone(t, job)

	if svc.Busy() {
		t.Error("Expected slot to be released")
	}

	// A new download is accepted once idle.
	extractor.block = nil
	extractor.started = nil
	next, err := svc.Run(context.Background(), "https://youtu.be/other")
	if err != nil {
		t.Fatalf("Expected second download to be accepted, got %v", err)
	}
	if next.Phase() != models.PhaseSkippedExists {
		t.Errorf("Expected skipped_exists for same title, got %s", next.Phase())
	}
}

func TestCancel(t *testing.T) {
	extractor := &fakeExtractor{title: "My Video", waitForCancel: true, started: make(chan struct{})}
	svc, _ := newTestService(t, extractor)

	if err := svc.Cancel("dl_missing"); !utils.IsCode(err, utils.ErrorCodeDownloadNotFound) {
		t.Errorf("Expected not found error, got %v", err)
	}

	job, err := svc.Submit(context.Background(), testURL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	<-extractor.started

	if err := svc.Cancel(job.ID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	waitDone(t, job)

	if job.Phase() != models.PhaseCancelled {
		t.Errorf("Expected cancelled, got %s", job.Phase())
	}
	if svc.Busy() {
		t.Error("Expected slot to be released after cancel")
	}
	if err := svc.Cancel(job.ID); !utils.IsCode(err, utils.ErrorCodeDownloadNotRunning) {
		t.Errorf("Expected not running error, got %v", err)
	}
}

func TestRunTimeout(t *testing.T) {
	extractor := &fakeExtractor{title: "My Video", waitForCancel: true}
	svc, _ := newTestService(t, extractor)
	svc.config.Timeout = 20 * time.Millisecond

	job, err := svc.Run(context.Background(), testURL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	snapshot := job.Snapshot()
	if snapshot.Phase != models.PhaseFailed || !strings.Contains(snapshot.Error, "timed out") {
		t.Errorf("Expected timeout failure, got %+v", snapshot)
	}
}

func TestRunArchives(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{title: "My Video"})
	archiver := &fakeArchiver{}
	svc.SetArchiver(archiver, "videos")

	job, err := svc.Run(context.Background(), testURL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(archiver.keys) != 1 || archiver.keys[0] != "videos/abc123/My Video.mp4" {
		t.Errorf("Unexpected archive keys %v", archiver.keys)
	}
	if job.Snapshot().ArchiveKey != "videos/abc123/My Video.mp4" {
		t.Errorf("Expected archive key on snapshot, got %q", job.Snapshot().ArchiveKey)
	}
}

func TestRunArchiveFailureKeepsCompletion(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{title: "My Video"})
	svc.SetArchiver(&fakeArchiver{err: errors.New("bucket unavailable")}, "")

	job, err := svc.Run(context.Background(), testURL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	snapshot := job.Snapshot()
	if snapshot.Phase != models.PhaseCompleted {
		t.Fatalf("Expected completed, got %s", snapshot.Phase)
	}
	if !strings.Contains(snapshot.Message, "bucket unavailable") || snapshot.ArchiveKey != "" {
		t.Errorf("Expected archive failure in message, got %+v", snapshot)
	}
}

func TestJobRetention(t *testing.T) {
	extractor := &fakeExtractor{extractErr: errors.New("boom")}
	svc, _ := newTestService(t, extractor)
	svc.config.JobRetention = 2

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := svc.Run(context.Background(), testURL)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		ids = append(ids, job.ID)
	}

	if _, ok := svc.Get(ids[0]); ok {
		t.Error("Expected oldest job to be evicted")
	}
	if _, ok := svc.Get(ids[2]); !ok {
		t.Error("Expected newest job to be retained")
	}

	jobs := svc.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 retained jobs, got %d", len(jobs))
	}
	if jobs[0].StartedAt.Before(jobs[1].StartedAt) {
		t.Error("Expected newest job first")
	}
}
