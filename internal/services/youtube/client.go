package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
)

// Options configures the library-backed extractor.
type Options struct {
	Container   string
	FFmpegPath  string
	HTTPTimeout time.Duration
}

type Client struct {
	client     *youtube.Client
	httpClient *http.Client
	opts       Options
	lookPath   func(string) (string, error)
}

// NewClient creates a new YouTube client
func NewClient(opts Options) *Client {
	if opts.Container == "" {
		opts.Container = "mp4"
	}
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Timeout: opts.HTTPTimeout,
	}

	ytClient := &youtube.Client{
		HTTPClient: httpClient,
	}

	return &Client{
		client:     ytClient,
		httpClient: httpClient,
		opts:       opts,
		lookPath:   exec.LookPath,
	}
}

// ExtractInfo retrieves video metadata
func (c *Client) ExtractInfo(ctx context.Context, url string) (*VideoInfo, error) {
	video, err := c.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to get video info: %w", err)
	}

	return newVideoInfo(url, video), nil
}

// Download selects formats for the configured container, downloads them next
// to outputPath and moves the finished file into place.
func (c *Client) Download(ctx context.Context, info *VideoInfo, outputPath string, progress ProgressFunc) error {
	video := info.video
	if video == nil {
		v, err := c.client.GetVideoContext(ctx, info.URL)
		if err != nil {
			return fmt.Errorf("failed to get video: %w", err)
		}
		video = v
	}

	ffmpeg, ffmpegErr := c.lookPath(c.opts.FFmpegPath)
	plan, err := selectFormats(video.Formats, c.opts.Container, ffmpegErr == nil)
	if err != nil {
		if ffmpegErr != nil {
			return fmt.Errorf("%w (ffmpeg unavailable: %v)", err, ffmpegErr)
		}
		return err
	}

	// Create temporary directory next to the destination so the final rename stays on one filesystem
	tempDir, err := os.MkdirTemp(filepath.Dir(outputPath), ".ytgrab-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	tracker := &progressWriter{
		total:    plan.totalBytes(),
		estimate: plan.estimatedBytes(video.Duration),
		report:   progress,
	}

	resultPath := filepath.Join(tempDir, "output."+c.opts.Container)
	if plan.merge {
		videoPath := filepath.Join(tempDir, "video."+c.opts.Container)
		audioPath := filepath.Join(tempDir, "audio.m4a")

		if err := c.downloadStream(ctx, video, plan.formats[0], videoPath, tracker); err != nil {
			return fmt.Errorf("failed to download video stream: %w", err)
		}
		if err := c.downloadStream(ctx, video, plan.formats[1], audioPath, tracker); err != nil {
			return fmt.Errorf("failed to download audio stream: %w", err)
		}
		if err := mergeVideoAudio(ctx, ffmpeg, videoPath, audioPath, resultPath); err != nil {
			return fmt.Errorf("failed to merge video and audio: %w", err)
		}
	} else {
		if err := c.downloadStream(ctx, video, plan.formats[0], resultPath, tracker); err != nil {
			return fmt.Errorf("failed to download stream: %w", err)
		}
	}

	if err := os.Rename(resultPath, outputPath); err != nil {
		return fmt.Errorf("failed to move download into place: %w", err)
	}

	return nil
}

// downloadStream downloads a stream to a file
func (c *Client) downloadStream(ctx context.Context, video *youtube.Video, format *youtube.Format, outputPath string, tracker *progressWriter) error {
	stream, _, err := c.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("failed to get stream: %w", err)
	}
	defer stream.Close()

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(io.MultiWriter(file, tracker), stream); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("failed to write stream to file: %w", err)
	}

	return file.Close()
}

// mergeVideoAudio merges video and audio files using FFmpeg
func mergeVideoAudio(ctx context.Context, ffmpeg, videoPath, audioPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, ffmpeg,
		"-loglevel", "error",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy", // Copy video stream without re-encoding
		"-c:a", "aac",
		"-y",
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("ffmpeg failed: %w, output: %s", err, strings.TrimSpace(string(output)))
	}

	return nil
}

var errNoFormat = errors.New("no suitable format found")

// downloadPlan lists the formats to fetch; merge plans hold video then audio.
type downloadPlan struct {
	formats []*youtube.Format
	merge   bool
}

func (p *downloadPlan) totalBytes() int64 {
	var total int64
	for _, f := range p.formats {
		if f.ContentLength <= 0 {
			return 0
		}
		total += f.ContentLength
	}
	return total
}

// estimatedBytes approximates the size from bitrate and duration.
func (p *downloadPlan) estimatedBytes(duration time.Duration) int64 {
	if duration <= 0 {
		return 0
	}
	var total int64
	for _, f := range p.formats {
		bitrate := f.AverageBitrate
		if bitrate <= 0 {
			bitrate = f.Bitrate
		}
		total += int64(float64(bitrate) / 8 * duration.Seconds())
	}
	return total
}

// selectFormats picks adaptive video+audio streams when they can be merged,
// otherwise the best progressive stream in the container.
func selectFormats(formats youtube.FormatList, container string, canMerge bool) (*downloadPlan, error) {
	if canMerge {
		videoFormat := bestVideoFormat(formats, container)
		audioFormat := bestAudioFormat(formats)
		if videoFormat != nil && audioFormat != nil {
			return &downloadPlan{formats: []*youtube.Format{videoFormat, audioFormat}, merge: true}, nil
		}
	}

	if progressive := bestProgressiveFormat(formats, container); progressive != nil {
		return &downloadPlan{formats: []*youtube.Format{progressive}}, nil
	}

	return nil, fmt.Errorf("%w for container %s", errNoFormat, container)
}

// bestVideoFormat selects the highest video-only format in the container
func bestVideoFormat(formats youtube.FormatList, container string) *youtube.Format {
	var best *youtube.Format
	var bestQuality int

	for i := range formats {
		format := &formats[i]
		if !strings.HasPrefix(format.MimeType, "video/"+container) || format.AudioChannels > 0 {
			continue
		}

		quality := formatHeight(format)
		if best == nil || quality > bestQuality || (quality == bestQuality && format.Bitrate > best.Bitrate) {
			best = format
			bestQuality = quality
		}
	}

	return best
}

// bestAudioFormat selects the best audio-only format, preferring mp4/m4a
func bestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format

	for i := range formats {
		format := &formats[i]
		if !strings.HasPrefix(format.MimeType, "audio/mp4") {
			continue
		}
		if best == nil || format.Bitrate > best.Bitrate {
			best = format
		}
	}

	return best
}

// bestProgressiveFormat selects the highest format carrying both video and audio
func bestProgressiveFormat(formats youtube.FormatList, container string) *youtube.Format {
	var best *youtube.Format
	var bestQuality int

	for i := range formats {
		format := &formats[i]
		if !strings.HasPrefix(format.MimeType, "video/"+container) || format.AudioChannels == 0 {
			continue
		}

		quality := formatHeight(format)
		if best == nil || quality > bestQuality {
			best = format
			bestQuality = quality
		}
	}

	return best
}

var qualityDigits = regexp.MustCompile(`(\d+)`)

// formatHeight returns the frame height, parsing the quality label ("720p60" -> 720) when unset
func formatHeight(format *youtube.Format) int {
	if format.Height > 0 {
		return format.Height
	}
	matches := qualityDigits.FindStringSubmatch(format.QualityLabel)
	if len(matches) > 1 {
		if q, err := strconv.Atoi(matches[1]); err == nil {
			return q
		}
	}
	return 0
}

func newVideoInfo(url string, video *youtube.Video) *VideoInfo {
	info := &VideoInfo{
		ID:       video.ID,
		URL:      url,
		Title:    video.Title,
		Author:   video.Author,
		Duration: video.Duration,
		video:    video,
	}

	if len(video.Thumbnails) > 0 {
		info.ThumbnailURL = video.Thumbnails[0].URL
	}

	return info
}

// progressWriter counts bytes written across all streams of one download.
type progressWriter struct {
	downloaded int64
	total      int64
	estimate   int64
	report     ProgressFunc
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.downloaded += int64(len(p))
	if w.report != nil {
		w.report(ProgressStatus{
			DownloadedBytes:    w.downloaded,
			TotalBytes:         w.total,
			TotalBytesEstimate: w.estimate,
		})
	}
	return len(p), nil
}
