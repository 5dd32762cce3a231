package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Container is the single output container every download is normalized into.
const Container = "mp4"

type Config struct {
	Server   ServerConfig
	Download DownloadConfig
	S3       S3Config
}

type ServerConfig struct {
	Port            string
	Host            string
	ShutdownTimeout time.Duration
}

type DownloadConfig struct {
	Directory    string
	Container    string
	Timeout      time.Duration
	HTTPTimeout  time.Duration
	FFmpegPath   string
	Quiet        bool
	JobRetention int
}

type S3Config struct {
	Enabled         bool
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	EndpointURL     string
	Prefix          string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{}

	// Server configuration
	cfg.Server.Port = getEnv("SERVER_PORT", "8080")
	cfg.Server.Host = getEnv("SERVER_HOST", "0.0.0.0")
	shutdownTimeout, err := time.ParseDuration(getEnv("SERVER_SHUTDOWN_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT: %w", err)
	}
	cfg.Server.ShutdownTimeout = shutdownTimeout

	// Download configuration
	cfg.Download.Directory = getEnv("DOWNLOAD_DIR", "downloads")
	cfg.Download.Container = Container
	downloadTimeout, err := time.ParseDuration(getEnv("DOWNLOAD_TIMEOUT", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid DOWNLOAD_TIMEOUT: %w", err)
	}
	if downloadTimeout < 0 {
		return nil, fmt.Errorf("invalid DOWNLOAD_TIMEOUT: must not be negative")
	}
	cfg.Download.Timeout = downloadTimeout
	httpTimeout, err := time.ParseDuration(getEnv("DOWNLOAD_HTTP_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid DOWNLOAD_HTTP_TIMEOUT: %w", err)
	}
	cfg.Download.HTTPTimeout = httpTimeout
	cfg.Download.FFmpegPath = getEnv("FFMPEG_PATH", "ffmpeg")
	cfg.Download.Quiet = getEnvBool("DOWNLOAD_QUIET", false)
	cfg.Download.JobRetention = getEnvInt("JOB_RETENTION", 20)
	if cfg.Download.JobRetention < 1 {
		cfg.Download.JobRetention = 1
	}

	// S3 archive configuration
	cfg.S3.Enabled = getEnvBool("S3_ENABLED", false)
	cfg.S3.Region = getEnv("AWS_REGION", "us-east-1")
	cfg.S3.EndpointURL = getEnv("AWS_ENDPOINT_URL", "") // Optional for LocalStack
	cfg.S3.Prefix = getEnv("S3_PREFIX", "ytgrab")
	if cfg.S3.Enabled {
		if cfg.S3.BucketName, err = getEnvRequired("S3_BUCKET_NAME"); err != nil {
			return nil, err
		}
		if cfg.S3.AccessKeyID, err = getEnvRequired("AWS_ACCESS_KEY_ID"); err != nil {
			return nil, err
		}
		if cfg.S3.SecretAccessKey, err = getEnvRequired("AWS_SECRET_ACCESS_KEY"); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return value, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
