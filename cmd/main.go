// Package main provides the entry point for the YouTube downloader web service.
// @title YouTube Downloader API
// @version 1.0
// @description A Go-based web service that downloads YouTube videos as mp4 files, one at a time, with live progress over server-sent events.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.example.com/support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/denisAlshanov/ytgrab/docs" // Import for swagger docs
	"github.com/denisAlshanov/ytgrab/internal/api/handlers"
	"github.com/denisAlshanov/ytgrab/internal/api/router"
	"github.com/denisAlshanov/ytgrab/internal/config"
	"github.com/denisAlshanov/ytgrab/internal/services/downloader"
	"github.com/denisAlshanov/ytgrab/internal/services/storage"
	"github.com/denisAlshanov/ytgrab/internal/services/youtube"
	"github.com/denisAlshanov/ytgrab/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.GetLogger()
	logger.Info("Starting YouTube downloader service")

	// Prepare the download directory
	library := storage.NewLocalLibrary(cfg.Download.Directory)
	if err := library.Ensure(); err != nil {
		logger.Fatalf("Failed to prepare download directory: %v", err)
	}

	// Initialize optional S3 archive
	archiver, err := storage.NewArchiver(&cfg.S3)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	extractor := youtube.NewClient(youtube.Options{
		Container:   cfg.Download.Container,
		FFmpegPath:  cfg.Download.FFmpegPath,
		HTTPTimeout: cfg.Download.HTTPTimeout,
	})

	// Initialize downloader service
	downloaderService := downloader.NewService(extractor, library, &cfg.Download)
	if archiver != nil {
		downloaderService.SetArchiver(archiver, cfg.S3.Prefix)
		logger.Infof("Archiving downloads to s3://%s/%s", archiver.BucketName(), cfg.S3.Prefix)
	}

	// Initialize handlers
	pageHandler := handlers.NewPageHandler(downloaderService)
	downloadHandler := handlers.NewDownloadHandler(downloaderService)
	fileHandler := handlers.NewFileHandler(library)
	healthHandler := handlers.NewHealthHandler(library, archiver, downloaderService)

	// Initialize router
	r := router.NewRouter(cfg, pageHandler, downloadHandler, fileHandler, healthHandler)

	// Start server
	go func() {
		logger.Infof("Starting server on %s", cfg.Server.Addr())
		if err := r.Start(); err != nil {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop the running download so its temp files are cleaned up
	if job, ok := downloaderService.Active(); ok {
		logger.Infof("Cancelling download %s", job.ID)
		if err := downloaderService.Cancel(job.ID); err == nil {
			select {
			case <-job.Done():
			case <-ctx.Done():
			}
		}
	}

	if err := r.Shutdown(ctx); err != nil {
		logger.Errorf("Failed to shut down server: %v", err)
	}

	logger.Info("Server shutdown complete")
}
