package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const DefaultArchiveURL = "https://services.cancerimagingarchive.net/nbia-api/services/v1"

type Config struct {
	ArchiveURL      string `yaml:"archive_url"`
	Collection      string `yaml:"collection"`
	MaxSeries       int    `yaml:"max_series"`
	BatchSize       int    `yaml:"batch_size"`
	DownloadDir     string `yaml:"download_dir"`
	QueryTimeout    int    `yaml:"query_timeout"`
	DownloadTimeout int    `yaml:"download_timeout"`

	OrthancURL      string `yaml:"orthanc_url"`
	OrthancUsername string `yaml:"orthanc_username"`
	OrthancPassword string `yaml:"orthanc_password"`
	PollRetries     int    `yaml:"poll_retries"`
	PollDelay       int    `yaml:"poll_delay"`

	S3Endpoint  string `yaml:"s3_endpoint"`
	S3Region    string `yaml:"s3_region"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables, in increasing order of precedence.
// A .env file in the working directory is loaded into the environment first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found, using environment variables only")
	}

	config := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := config.applyFile(path); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	config.ArchiveURL = getEnv("TCIA_BASE_URL", config.ArchiveURL)
	config.Collection = getEnv("TCIA_COLLECTION", config.Collection)
	config.MaxSeries = getEnvInt("TCIA_MAX_SERIES", config.MaxSeries)
	config.BatchSize = getEnvInt("TCIA_BATCH_SIZE", config.BatchSize)
	config.DownloadDir = getEnv("TCIA_DOWNLOAD_DIR", config.DownloadDir)
	config.QueryTimeout = getEnvInt("TCIA_QUERY_TIMEOUT", config.QueryTimeout)
	config.DownloadTimeout = getEnvInt("TCIA_DOWNLOAD_TIMEOUT", config.DownloadTimeout)

	config.OrthancURL = getEnv("ORTHANC_URL", config.OrthancURL)
	config.OrthancUsername = getEnv("ORTHANC_USERNAME", config.OrthancUsername)
	config.OrthancPassword = getEnv("ORTHANC_PASSWORD", config.OrthancPassword)
	config.PollRetries = getEnvInt("ORTHANC_POLL_RETRIES", config.PollRetries)
	config.PollDelay = getEnvInt("ORTHANC_POLL_DELAY", config.PollDelay)

	config.S3Endpoint = getEnv("S3_ENDPOINT", config.S3Endpoint)
	config.S3Region = getEnv("S3_REGION", config.S3Region)
	config.S3Bucket = getEnv("S3_BUCKET", config.S3Bucket)
	config.S3AccessKey = getEnv("S3_ACCESS_KEY", config.S3AccessKey)
	config.S3SecretKey = getEnv("S3_SECRET_KEY", config.S3SecretKey)

	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.LogFormat = getEnv("LOG_FORMAT", config.LogFormat)

	return config, nil
}

func defaults() *Config {
	return &Config{
		ArchiveURL:      DefaultArchiveURL,
		MaxSeries:       5,
		BatchSize:       1,
		DownloadDir:     "data/tcia_downloads",
		QueryTimeout:    30,
		DownloadTimeout: 300,
		OrthancURL:      "http://localhost:8042",
		PollRetries:     12,
		PollDelay:       5,
		S3Region:        "us-east-1",
		LogLevel:        "INFO",
		LogFormat:       "console",
	}
}

func (c *Config) applyFile(path string) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(file, c)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Ignoring non-numeric environment value", "key", key, "value", value)
		return defaultValue
	}
	return parsed
}
