// Package config provides configuration for the desktop runner.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
	"github.com/xiaot623/gogo/deskrunner/internal/recorder"
)

// Config holds the runner configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Storage
	DatabaseURL string
	DataDir     string
	// TrustDBPath selects the bbolt trust store. Empty keeps trust in memory.
	TrustDBPath string

	// Runner
	MaxActions     int
	ResumeReassess bool
	PolicyFile     string

	// External programs
	ActionCommand string
	ActionArgs    string
	OCRCommand    string
	OCRArgs       string
	RecordCommand string
	RecordArgs    string

	// Recorder defaults
	RecordSampleMs      int
	RecordMaxSeconds    int
	RecordStopKey       string
	RecordIncludeMoves  bool
	RecordMergeWindowMs int
	RecordMaxWaitMs     int
	RecordMaxActions    int

	// Approvals
	ApprovalStaleAfter    time.Duration
	ApprovalSweepInterval time.Duration

	// Telemetry
	OTELEndpoint string
	ServiceName  string
	OTELInsecure bool

	// Logging
	LogLevel string
}

// fileConfig is the shape of the optional TOML config file.
type fileConfig struct {
	Server struct {
		Port int `toml:"port"`
	} `toml:"server"`
	Storage struct {
		DatabaseURL string `toml:"database_url"`
		DataDir     string `toml:"data_dir"`
		TrustDB     string `toml:"trust_db"`
	} `toml:"storage"`
	Runner struct {
		MaxActions     int    `toml:"max_actions"`
		ResumeReassess *bool  `toml:"resume_reassess"`
		PolicyFile     string `toml:"policy_file"`
	} `toml:"runner"`
	Executor struct {
		Command    string `toml:"command"`
		Args       string `toml:"args"`
		OCRCommand string `toml:"ocr_command"`
		OCRArgs    string `toml:"ocr_args"`
	} `toml:"executor"`
	Recorder struct {
		Command           string `toml:"command"`
		Args              string `toml:"args"`
		SampleMs          int    `toml:"sample_ms"`
		MaxSeconds        int    `toml:"max_seconds"`
		StopKey           string `toml:"stop_key"`
		IncludeMouseMoves *bool  `toml:"include_mouse_moves"`
		MergeWindowMs     int    `toml:"merge_window_ms"`
		MaxWaitMs         int    `toml:"max_wait_ms"`
		MaxActions        int    `toml:"max_actions"`
	} `toml:"recorder"`
	Approvals struct {
		StaleAfter    string `toml:"stale_after"`
		SweepInterval string `toml:"sweep_interval"`
	} `toml:"approvals"`
	Telemetry struct {
		Endpoint    string `toml:"endpoint"`
		ServiceName string `toml:"service_name"`
		Insecure    *bool  `toml:"insecure"`
	} `toml:"telemetry"`
	Logging struct {
		Level string `toml:"level"`
	} `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPPort:              8080,
		DatabaseURL:           "file:deskrunner.db?cache=shared&mode=rwc",
		DataDir:               "data",
		MaxActions:            domain.DefaultMaxActions,
		RecordSampleMs:        recorder.DefaultSampleMs,
		RecordMaxSeconds:      recorder.DefaultMaxSeconds,
		RecordStopKey:         recorder.DefaultStopKey,
		RecordMergeWindowMs:   recorder.DefaultMergeWindowMs,
		RecordMaxWaitMs:       recorder.DefaultMaxWaitMs,
		RecordMaxActions:      recorder.DefaultMaxActions,
		ApprovalStaleAfter:    7 * 24 * time.Hour,
		ApprovalSweepInterval: time.Hour,
		ServiceName:           "deskrunner",
		LogLevel:              "info",
	}
}

// Load builds the configuration from defaults, the TOML file named by
// DESKRUNNER_CONFIG and environment variables, in that order.
func Load() (*Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("DESKRUNNER_CONFIG")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	var fc fileConfig
	if err := readTOML(path, &fc); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	setInt(&c.HTTPPort, fc.Server.Port)
	setString(&c.DatabaseURL, fc.Storage.DatabaseURL)
	setString(&c.DataDir, fc.Storage.DataDir)
	setString(&c.TrustDBPath, fc.Storage.TrustDB)
	setInt(&c.MaxActions, fc.Runner.MaxActions)
	setBool(&c.ResumeReassess, fc.Runner.ResumeReassess)
	setString(&c.PolicyFile, fc.Runner.PolicyFile)
	setString(&c.ActionCommand, fc.Executor.Command)
	setString(&c.ActionArgs, fc.Executor.Args)
	setString(&c.OCRCommand, fc.Executor.OCRCommand)
	setString(&c.OCRArgs, fc.Executor.OCRArgs)
	setString(&c.RecordCommand, fc.Recorder.Command)
	setString(&c.RecordArgs, fc.Recorder.Args)
	setInt(&c.RecordSampleMs, fc.Recorder.SampleMs)
	setInt(&c.RecordMaxSeconds, fc.Recorder.MaxSeconds)
	setString(&c.RecordStopKey, fc.Recorder.StopKey)
	setBool(&c.RecordIncludeMoves, fc.Recorder.IncludeMouseMoves)
	setInt(&c.RecordMergeWindowMs, fc.Recorder.MergeWindowMs)
	setInt(&c.RecordMaxWaitMs, fc.Recorder.MaxWaitMs)
	setInt(&c.RecordMaxActions, fc.Recorder.MaxActions)
	if err := setDuration(&c.ApprovalStaleAfter, fc.Approvals.StaleAfter); err != nil {
		return fmt.Errorf("config: approvals.stale_after: %w", err)
	}
	if err := setDuration(&c.ApprovalSweepInterval, fc.Approvals.SweepInterval); err != nil {
		return fmt.Errorf("config: approvals.sweep_interval: %w", err)
	}
	setString(&c.OTELEndpoint, fc.Telemetry.Endpoint)
	setString(&c.ServiceName, fc.Telemetry.ServiceName)
	setBool(&c.OTELInsecure, fc.Telemetry.Insecure)
	setString(&c.LogLevel, fc.Logging.Level)
	return nil
}

func (c *Config) applyEnv() {
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.DataDir = getEnv("DESKRUNNER_DATA_DIR", c.DataDir)
	c.TrustDBPath = getEnv("DESKRUNNER_TRUST_DB", c.TrustDBPath)
	c.MaxActions = getEnvInt("DESKRUNNER_MAX_ACTIONS", c.MaxActions)
	c.ResumeReassess = getEnvBool("DESKRUNNER_RESUME_REASSESS", c.ResumeReassess)
	c.PolicyFile = getEnv("DESKRUNNER_POLICY_FILE", c.PolicyFile)
	c.ActionCommand = getEnv("DESKTOP_ACTION_COMMAND", c.ActionCommand)
	c.ActionArgs = getEnv("DESKTOP_ACTION_ARGS", c.ActionArgs)
	c.OCRCommand = getEnv("DESKTOP_OCR_COMMAND", c.OCRCommand)
	c.OCRArgs = getEnv("DESKTOP_OCR_ARGS", c.OCRArgs)
	c.RecordCommand = getEnv("DESKTOP_RECORD_COMMAND", c.RecordCommand)
	c.RecordArgs = getEnv("DESKTOP_RECORD_ARGS", c.RecordArgs)
	c.RecordSampleMs = getEnvInt("DESKTOP_RECORD_SAMPLE_MS", c.RecordSampleMs)
	c.RecordMaxSeconds = getEnvInt("DESKTOP_RECORD_MAX_SECONDS", c.RecordMaxSeconds)
	c.RecordStopKey = getEnv("DESKTOP_RECORD_STOP_KEY", c.RecordStopKey)
	c.RecordIncludeMoves = getEnvBool("DESKTOP_RECORD_INCLUDE_MOUSE_MOVES", c.RecordIncludeMoves)
	c.RecordMergeWindowMs = getEnvInt("DESKTOP_RECORD_MERGE_WINDOW_MS", c.RecordMergeWindowMs)
	c.RecordMaxWaitMs = getEnvInt("DESKTOP_RECORD_MAX_WAIT_MS", c.RecordMaxWaitMs)
	c.RecordMaxActions = getEnvInt("DESKTOP_RECORD_MAX_ACTIONS", c.RecordMaxActions)
	c.ApprovalStaleAfter = getEnvDuration("APPROVAL_STALE_AFTER", c.ApprovalStaleAfter)
	c.ApprovalSweepInterval = getEnvDuration("APPROVAL_SWEEP_INTERVAL", c.ApprovalSweepInterval)
	c.OTELEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTELEndpoint)
	c.ServiceName = getEnv("OTEL_SERVICE_NAME", c.ServiceName)
	c.OTELInsecure = getEnvBool("OTEL_INSECURE", c.OTELInsecure)
	c.LogLevel = getEnv("DESKRUNNER_LOG_LEVEL", c.LogLevel)
}

// Validate checks the configuration for values the runner cannot work with.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("config: HTTP_PORT must be between 1 and 65535")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.MaxActions <= 0 {
		return fmt.Errorf("config: DESKRUNNER_MAX_ACTIONS must be positive")
	}
	if c.RecordMaxActions <= 0 {
		return fmt.Errorf("config: DESKTOP_RECORD_MAX_ACTIONS must be positive")
	}
	if c.ApprovalSweepInterval <= 0 {
		return fmt.Errorf("config: APPROVAL_SWEEP_INTERVAL must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}

func readTOML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
