package downloader

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/denisAlshanov/ytgrab/internal/config"
	"github.com/denisAlshanov/ytgrab/internal/models"
	"github.com/denisAlshanov/ytgrab/internal/services/storage"
	"github.com/denisAlshanov/ytgrab/internal/services/youtube"
	"github.com/denisAlshanov/ytgrab/internal/utils"
)

// Service runs at most one download at a time. The active job occupies a
// single slot guarded by mu; every execution path releases it.
type Service struct {
	extractor     youtube.Extractor
	library       storage.Library
	archiver      storage.Archiver
	archivePrefix string
	config        *config.DownloadConfig

	mu     sync.Mutex
	active *Job
	jobs   map[string]*Job
	order  []string
}

func NewService(extractor youtube.Extractor, library storage.Library, cfg *config.DownloadConfig) *Service {
	return &Service{
		extractor: extractor,
		library:   library,
		config:    cfg,
		jobs:      make(map[string]*Job),
	}
}

// SetArchiver enables uploading completed files under prefix. A nil archiver disables it.
func (s *Service) SetArchiver(archiver storage.Archiver, prefix string) {
	s.archiver = archiver
	s.archivePrefix = prefix
}

// Submit validates the URL, claims the slot and starts the download in the
// background. The job outlives ctx; use Cancel to stop it.
func (s *Service) Submit(ctx context.Context, rawURL string) (*Job, error) {
	job, runCtx, err := s.acquire(context.WithoutCancel(ctx), rawURL)
	if err != nil {
		return nil, err
	}

	go s.run(runCtx, job)

	return job, nil
}

// Run is Submit on the caller's goroutine: it returns once the job finished.
// Cancelling ctx cancels the download.
func (s *Service) Run(ctx context.Context, rawURL string) (*Job, error) {
	job, runCtx, err := s.acquire(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	s.run(runCtx, job)

	return job, nil
}

func (s *Service) Get(id string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Active returns the job currently occupying the slot.
func (s *Service) Active() (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.active != nil
}

func (s *Service) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Jobs returns snapshots of the retained jobs, newest first.
func (s *Service) Jobs() []models.Download {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		jobs = append(jobs, s.jobs[s.order[i]])
	}
	s.mu.Unlock()

	snapshots := make([]models.Download, len(jobs))
	for i, job := range jobs {
		snapshots[i] = job.Snapshot()
	}
	return snapshots
}

// Cancel stops a running job. The job finishes asynchronously in the cancelled phase.
func (s *Service) Cancel(id string) error {
	job, ok := s.Get(id)
	if !ok {
		return utils.NewDownloadNotFoundError(id)
	}
	if !job.Phase().IsActive() {
		return utils.NewDownloadNotRunningError(id)
	}

	job.cancel()
	return nil
}

func (s *Service) acquire(parent context.Context, rawURL string) (*Job, context.Context, error) {
	if !youtube.IsYouTubeURL(rawURL) {
		utils.LogWarn(parent, "Rejected invalid URL", utils.Fields{"url": rawURL})
		return nil, nil, utils.NewInvalidURLError(rawURL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		utils.LogWarn(parent, "Download already in progress", utils.Fields{"active_id": s.active.ID})
		return nil, nil, utils.NewDownloadInProgressError(s.active.ID)
	}

	job := newJob(rawURL)
	ctx := utils.WithJobID(parent, job.ID)
	var cancel context.CancelFunc
	if s.config.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	job.cancel = cancel

	s.active = job
	s.remember(job)

	return job, ctx, nil
}

// remember retains job for lookups, evicting the oldest finished jobs.
func (s *Service) remember(job *Job) {
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)

	for len(s.order) > s.config.JobRetention {
		oldest := s.order[0]
		if s.jobs[oldest] == s.active {
			break
		}
		delete(s.jobs, oldest)
		s.order = s.order[1:]
	}
}

func (s *Service) release(job *Job) {
	s.mu.Lock()
	if s.active == job {
		s.active = nil
	}
	s.mu.Unlock()

	job.cancel()
}

func (s *Service) run(ctx context.Context, job *Job) {
	out := s.execute(ctx, job)

	s.release(job)
	job.complete(out)

	fields := utils.Fields{"phase": out.phase, "file_name": job.Snapshot().FileName}
	if out.phase == models.PhaseFailed {
		utils.LogError(ctx, "Download failed", errors.New(out.err), fields)
	} else {
		utils.LogInfo(ctx, "Download finished", fields)
	}
}

func (s *Service) execute(ctx context.Context, job *Job) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failedOutcome(fmt.Sprintf("internal error: %v", r))
		}
	}()

	utils.LogInfo(ctx, "Download requested", utils.Fields{"url": job.URL})

	if err := job.transition(models.PhaseExtracting, "Extracting video information"); err != nil {
		return failedOutcome(err.Error())
	}

	info, err := s.extractor.ExtractInfo(ctx, job.URL)
	if err != nil {
		return s.errorOutcome(ctx, err)
	}

	title := info.Title
	if title == "" {
		title = "Unknown"
	}
	fileName := youtube.FileNameForTitle(title, s.config.Container)
	job.setFile(title, fileName)

	exists, err := s.library.Exists(ctx, fileName)
	if err != nil {
		return s.errorOutcome(ctx, err)
	}
	if exists {
		utils.LogInfo(ctx, "Video already downloaded", utils.Fields{"file_name": fileName})
		return outcome{
			phase:   models.PhaseSkippedExists,
			message: fmt.Sprintf("Video already downloaded: %s", fileName),
		}
	}

	if err := job.transition(models.PhaseDownloading, fmt.Sprintf("Starting download: %s", fileName)); err != nil {
		return failedOutcome(err.Error())
	}
	utils.LogInfo(ctx, "Starting download", utils.Fields{"file_name": fileName, "title": title})

	err = s.extractor.Download(ctx, info, s.library.Path(fileName), func(status youtube.ProgressStatus) {
		s.onProgress(ctx, job, status)
	})
	if err != nil {
		return s.errorOutcome(ctx, err)
	}

	out = outcome{phase: models.PhaseCompleted, message: "Download completed!"}

	if s.archiver != nil {
		key, err := s.archive(ctx, info, fileName)
		if err != nil {
			utils.LogError(ctx, "Failed to archive download", err, utils.Fields{"file_name": fileName})
			out.message = fmt.Sprintf("Download completed! Archive upload failed: %s", err.Error())
		} else {
			job.setArchiveKey(key)
		}
	}

	return out
}

func (s *Service) onProgress(ctx context.Context, job *Job, status youtube.ProgressStatus) {
	fraction := ProgressFraction(status)
	if !job.setProgress(fraction) || s.config.Quiet {
		return
	}

	utils.LogDebug(ctx, "Download progress", utils.Fields{
		"downloaded": utils.FormatBytes(status.DownloadedBytes),
		"total":      utils.FormatBytes(status.TotalBytes),
		"estimate":   utils.FormatBytes(status.TotalBytesEstimate),
		"fraction":   fraction,
	})
}

func (s *Service) archive(ctx context.Context, info *youtube.VideoInfo, fileName string) (string, error) {
	key := path.Join(s.archivePrefix, info.ID, fileName)
	metadata := map[string]string{
		"video_id": info.ID,
		"author":   info.Author,
		"duration": info.Duration.String(),
		"platform": "youtube",
	}

	if err := s.archiver.UploadFile(ctx, key, s.library.Path(fileName), "video/"+s.config.Container, metadata); err != nil {
		return "", err
	}

	utils.LogInfo(ctx, "Archived download", utils.Fields{"bucket": s.archiver.BucketName(), "key": key})
	return key, nil
}

// errorOutcome maps an extraction or download error to the terminal phase.
// The error text is kept verbatim.
func (s *Service) errorOutcome(ctx context.Context, err error) outcome {
	if errors.Is(ctx.Err(), context.Canceled) {
		return outcome{phase: models.PhaseCancelled, message: "Download cancelled"}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return failedOutcome(fmt.Sprintf("download timed out after %s: %s", s.config.Timeout, err.Error()))
	}
	return failedOutcome(err.Error())
}

func failedOutcome(errText string) outcome {
	return outcome{
		phase:   models.PhaseFailed,
		message: "An error occurred: " + errText,
		err:     errText,
	}
}
