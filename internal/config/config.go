package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Output formats accepted by OUTPUT_FORMAT.
const (
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	InputPath       string
	OutputPath      string
	OutputFormat    string
	LatitudeColumn  string
	LongitudeColumn string

	// Rate-limit handling.
	Backoff           time.Duration
	MaxBackoffRetries int

	IncludeFullResponse bool
	ProgressInterval    int
	CheckpointInterval  int
	CheckpointSuffix    string

	// FCC client configuration.
	FCCBaseURL        string
	FCCTimeout        time.Duration
	RequestsPerSecond float64
	CacheSize         int

	MetricsAddr     string
	KafkaBrokers    []string
	KafkaTopic      string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
// Input and output paths are not required here; Validate checks them once
// command-line overrides have been applied.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	backoffMinutes, err := parsePositiveInt("BACKOFF_MINUTES", 30)
	if err != nil {
		return nil, err
	}

	maxRetries, err := parseNonNegativeInt("MAX_BACKOFF_RETRIES", 0)
	if err != nil {
		return nil, err
	}

	progressInterval, err := parsePositiveInt("PROGRESS_INTERVAL", 1000)
	if err != nil {
		return nil, err
	}

	checkpointInterval, err := parsePositiveInt("CHECKPOINT_INTERVAL", 50000)
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseNonNegativeInt("CACHE_SIZE", 0)
	if err != nil {
		return nil, err
	}

	fccTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("FCC_TIMEOUT", "30s"))
	if err != nil || fccTimeout < 0 {
		return nil, errors.New("invalid FCC_TIMEOUT")
	}

	rps, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("REQUESTS_PER_SECOND", "0"), 64)
	if err != nil || rps < 0 {
		return nil, errors.New("invalid REQUESTS_PER_SECOND")
	}

	fullResponse, err := parseBool("INCLUDE_FULL_RESPONSE", false)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		InputPath:       os.Getenv("GEOCODE_INPUT"),
		OutputPath:      os.Getenv("GEOCODE_OUTPUT"),
		OutputFormat:    strings.ToLower(os.Getenv("OUTPUT_FORMAT")),
		LatitudeColumn:  sharedcfg.EnvOrDefault("LAT_COLUMN", "Latitude"),
		LongitudeColumn: sharedcfg.EnvOrDefault("LON_COLUMN", "Longitude"),

		Backoff:           time.Duration(backoffMinutes) * time.Minute,
		MaxBackoffRetries: maxRetries,

		IncludeFullResponse: fullResponse,
		ProgressInterval:    progressInterval,
		CheckpointInterval:  checkpointInterval,
		CheckpointSuffix:    sharedcfg.EnvOrDefault("CHECKPOINT_SUFFIX", "_bak"),

		FCCBaseURL:        sharedcfg.EnvOrDefault("FCC_BASE_URL", "https://geo.fcc.gov/api/census/block/find"),
		FCCTimeout:        fccTimeout,
		RequestsPerSecond: rps,
		CacheSize:         cacheSize,

		MetricsAddr:     os.Getenv("METRICS_ADDR"),
		KafkaBrokers:    brokers,
		KafkaTopic:      sharedcfg.EnvOrDefault("KAFKA_TOPIC", "block-geocode-outcomes"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.CheckpointSuffix == "" {
		return nil, errors.New("CHECKPOINT_SUFFIX must not be empty")
	}
	if cfg.OutputFormat != "" && cfg.OutputFormat != FormatCSV && cfg.OutputFormat != FormatSQLite {
		return nil, fmt.Errorf("invalid OUTPUT_FORMAT %q: want csv or sqlite", cfg.OutputFormat)
	}

	return cfg, nil
}

// Validate checks the settings a batch run cannot start without.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return errors.New("GEOCODE_INPUT is required")
	}
	if c.OutputPath == "" {
		return errors.New("GEOCODE_OUTPUT is required")
	}
	if c.LatitudeColumn == "" || c.LongitudeColumn == "" {
		return errors.New("LAT_COLUMN and LON_COLUMN must not be empty")
	}
	if c.Backoff <= 0 {
		return errors.New("BACKOFF_MINUTES must be positive")
	}
	return nil
}

// Format returns the configured output format, inferring it from the output
// path extension when OUTPUT_FORMAT is unset.
func (c *Config) Format() string {
	if c.OutputFormat != "" {
		return c.OutputFormat
	}
	switch strings.ToLower(filepath.Ext(c.OutputPath)) {
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatCSV
	}
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: must be a non-negative integer", key)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
