// Command ytgrab-cli downloads a single YouTube video into the download
// directory, showing a progress bar on stderr.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"github.com/vbauerster/mpb/v4"
	"github.com/vbauerster/mpb/v4/decor"

	"github.com/denisAlshanov/ytgrab/internal/config"
	"github.com/denisAlshanov/ytgrab/internal/models"
	"github.com/denisAlshanov/ytgrab/internal/services/downloader"
	"github.com/denisAlshanov/ytgrab/internal/services/storage"
	"github.com/denisAlshanov/ytgrab/internal/services/youtube"
	"github.com/denisAlshanov/ytgrab/internal/utils"
)

const (
	exitOK        = 0
	exitFailed    = 1
	exitUsage     = 2
	exitCancelled = 130

	barTotal = 1000
)

type options struct {
	dir      string
	ffmpeg   string
	logLevel string
	quiet    bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitUsage
	}

	opts := options{}
	fs := flag.NewFlagSet("ytgrab-cli", flag.ContinueOnError)
	fs.StringVarP(&opts.dir, "dir", "d", cfg.Download.Directory, "Download directory.")
	fs.StringVar(&opts.ffmpeg, "ffmpeg", cfg.Download.FFmpegPath, "ffmpeg executable used to merge video and audio.")
	fs.StringVarP(&opts.logLevel, "log-level", "l", "warn", "Log level (debug, info, warn, error).")
	fs.BoolVarP(&opts.quiet, "quiet", "q", cfg.Download.Quiet, "Quiet mode. The progress bar is not displayed.")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Download a YouTube video as mp4")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, filepath.Base(os.Args[0]), "[ options... ] URL")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "  options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}

	utils.SetOutput(os.Stderr)
	utils.SetLevel(opts.logLevel)

	cfg.Download.Directory = opts.dir
	cfg.Download.FFmpegPath = opts.ffmpeg
	cfg.Download.Quiet = opts.quiet

	library := storage.NewLocalLibrary(cfg.Download.Directory)
	if err := library.Ensure(); err != nil {
		fmt.Fprintf(os.Stderr, "Can't create download directory: %v\n", err)
		return exitFailed
	}

	extractor := youtube.NewClient(youtube.Options{
		Container:   cfg.Download.Container,
		FFmpegPath:  cfg.Download.FFmpegPath,
		HTTPTimeout: cfg.Download.HTTPTimeout,
	})
	svc := downloader.NewService(extractor, library, &cfg.Download)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job, err := svc.Submit(ctx, fs.Arg(0))
	if err != nil {
		if appErr, ok := utils.AsAppError(err); ok {
			fmt.Fprintln(os.Stderr, appErr.Message)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return exitFailed
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = svc.Cancel(job.ID)
		case <-job.Done():
		}
	}()

	follow(job, opts.quiet)

	return report(job.Snapshot(), library)
}

// follow renders the job's progress events until the stream ends.
func follow(job *downloader.Job, quiet bool) {
	var (
		pc      *mpb.Progress
		bar     *mpb.Bar
		current int64
	)
	if !quiet {
		pc = mpb.New(mpb.WithOutput(os.Stderr), mpb.WithWidth(64))
		bar = pc.AddBar(barTotal,
			mpb.PrependDecorators(
				decor.Name("downloading", decor.WC{W: 12, C: decor.DidentRight}),
			),
			mpb.AppendDecorators(
				decor.Percentage(decor.WC{W: 6}),
				decor.Elapsed(decor.ET_STYLE_GO, decor.WCSyncSpace),
			),
		)
	}

	for event := range job.Events().Subscribe(context.Background(), 0) {
		if bar == nil || event.Type != models.EventTypeProgress {
			continue
		}
		target := int64(event.Fraction * barTotal)
		if target > current {
			bar.IncrInt64(target - current)
			current = target
		}
	}

	if bar != nil {
		if job.Phase() == models.PhaseCompleted {
			bar.SetTotal(barTotal, true)
		} else {
			bar.SetTotal(current, true)
		}
		pc.Wait()
	}
}

func report(snapshot models.Download, library storage.Library) int {
	switch snapshot.Phase {
	case models.PhaseCompleted, models.PhaseSkippedExists:
		fmt.Fprintln(os.Stderr, snapshot.Message)
		fmt.Println(library.Path(snapshot.FileName))
		return exitOK
	case models.PhaseCancelled:
		fmt.Fprintln(os.Stderr, snapshot.Message)
		return exitCancelled
	default:
		fmt.Fprintln(os.Stderr, snapshot.Message)
		return exitFailed
	}
}
