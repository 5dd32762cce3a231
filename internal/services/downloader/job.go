package downloader

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/denisAlshanov/ytgrab/internal/models"
	"github.com/denisAlshanov/ytgrab/internal/utils"
)

// FileURL is the path the finished file is served under.
func FileURL(fileName string) string {
	return "/files/" + url.PathEscape(fileName)
}

// Job is one download invocation. Its phase only moves forward; the event bus
// carries every transition and progress change to subscribers.
type Job struct {
	ID        string
	URL       string
	StartedAt time.Time

	mu         sync.RWMutex
	phase      models.DownloadPhase
	fraction   float64
	permille   int
	title      string
	fileName   string
	message    string
	errMsg     string
	archiveKey string
	finishedAt time.Time

	events *EventBus
	cancel context.CancelFunc
	done   chan struct{}
}

func newJob(rawURL string) *Job {
	job := &Job{
		ID:        utils.GenerateJobID(),
		URL:       rawURL,
		StartedAt: time.Now().UTC(),
		phase:     models.PhaseRequested,
		message:   "Download requested",
		events:    NewEventBus(defaultMaxEvents),
		cancel:    func() {},
		done:      make(chan struct{}),
	}

	job.events.Publish(models.DownloadEvent{
		JobID:   job.ID,
		Type:    models.EventTypeStatus,
		Phase:   models.PhaseRequested,
		Message: job.message,
	})

	return job
}

func (j *Job) Events() *EventBus {
	return j.events
}

// Done is closed once the job reached a terminal phase and released the slot.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) Phase() models.DownloadPhase {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.phase
}

func (j *Job) Fraction() float64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.fraction
}

// Snapshot returns the current state of the job.
func (j *Job) Snapshot() models.Download {
	j.mu.RLock()
	defer j.mu.RUnlock()

	snapshot := models.Download{
		ID:         j.ID,
		URL:        j.URL,
		Phase:      j.phase,
		Fraction:   j.fraction,
		Title:      j.title,
		FileName:   j.fileName,
		Message:    j.message,
		Error:      j.errMsg,
		ArchiveKey: j.archiveKey,
		StartedAt:  j.StartedAt,
	}
	if j.hasFileLocked() {
		snapshot.DownloadURL = FileURL(j.fileName)
	}
	if !j.finishedAt.IsZero() {
		finishedAt := j.finishedAt
		snapshot.FinishedAt = &finishedAt
	}
	return snapshot
}

// hasFileLocked reports whether the derived file is on disk for this job.
func (j *Job) hasFileLocked() bool {
	return j.fileName != "" && (j.phase == models.PhaseCompleted || j.phase == models.PhaseSkippedExists)
}

func (j *Job) setFile(title, fileName string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.title = title
	j.fileName = fileName
}

func (j *Job) setArchiveKey(key string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.archiveKey = key
}

// transition moves the job to a non-terminal phase and publishes a status event.
func (j *Job) transition(to models.DownloadPhase, message string) error {
	j.mu.Lock()
	if !isValidTransition(j.phase, to) {
		from := j.phase
		j.mu.Unlock()
		return fmt.Errorf("invalid transition: %s -> %s", from, to)
	}
	j.phase = to
	j.message = message
	event := j.eventLocked(models.EventTypeStatus)
	j.mu.Unlock()

	j.events.Publish(event)
	return nil
}

// setProgress records the fraction and reports whether a progress event was
// published. Events are emitted on every change of a tenth of a percent.
func (j *Job) setProgress(fraction float64) bool {
	j.mu.Lock()
	j.fraction = fraction
	permille := int(fraction * 1000)
	if permille == j.permille {
		j.mu.Unlock()
		return false
	}
	j.permille = permille
	event := j.eventLocked(models.EventTypeProgress)
	event.Message = ""
	j.mu.Unlock()

	j.events.Publish(event)
	return true
}

// complete applies the terminal outcome, publishes the final event and closes
// the stream.
func (j *Job) complete(out outcome) {
	j.mu.Lock()
	if j.phase.IsTerminal() {
		j.mu.Unlock()
		return
	}
	if !isValidTransition(j.phase, out.phase) {
		errText := fmt.Sprintf("invalid transition: %s -> %s", j.phase, out.phase)
		out = outcome{phase: models.PhaseFailed, message: "An error occurred: " + errText, err: errText}
	}
	j.phase = out.phase
	j.message = out.message
	j.errMsg = out.err
	if out.phase == models.PhaseCompleted {
		j.fraction = 1
	}
	j.finishedAt = time.Now().UTC()

	eventType := models.EventTypeResult
	if out.phase == models.PhaseFailed {
		eventType = models.EventTypeError
	}
	event := j.eventLocked(eventType)
	j.mu.Unlock()

	j.events.Publish(event)
	j.events.Close()
	close(j.done)
}

func (j *Job) eventLocked(eventType models.EventType) models.DownloadEvent {
	event := models.DownloadEvent{
		JobID:    j.ID,
		Type:     eventType,
		Phase:    j.phase,
		Fraction: j.fraction,
		Message:  j.message,
		FileName: j.fileName,
		Error:    j.errMsg,
	}
	if j.hasFileLocked() {
		event.DownloadURL = FileURL(j.fileName)
	}
	return event
}

// outcome is the terminal result of one execution.
type outcome struct {
	phase   models.DownloadPhase
	message string
	err     string
}

// isValidTransition enforces the allowed download state machine edges.
func isValidTransition(from, to models.DownloadPhase) bool {
	switch from {
	case models.PhaseRequested:
		return to == models.PhaseExtracting || to == models.PhaseFailed || to == models.PhaseCancelled
	case models.PhaseExtracting:
		return to == models.PhaseDownloading || to == models.PhaseSkippedExists ||
			to == models.PhaseFailed || to == models.PhaseCancelled
	case models.PhaseDownloading:
		return to == models.PhaseCompleted || to == models.PhaseFailed || to == models.PhaseCancelled
	default:
		return false
	}
}
