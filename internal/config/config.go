// Package config provides configuration management for the Clipmark Agent.
// Configuration is loaded from an optional YAML file with environment
// variable overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultPort         = 8791
	DefaultLogLevel     = "info"
	DefaultDataDir      = ".clipmark"
	DefaultProfile      = "balanced"
	DefaultTier         = "pro"
	DefaultOutputSubdir = "clips"

	// Environment variable names
	EnvPort       = "CLIPMARK_PORT"
	EnvLogLevel   = "CLIPMARK_LOG_LEVEL"
	EnvDataDir    = "CLIPMARK_DATA_DIR"
	EnvConfigFile = "CLIPMARK_CONFIG"
	EnvProfile    = "CLIPMARK_PROFILE"
	EnvTier       = "CLIPMARK_TIER"
	EnvPauseMs    = "CLIPMARK_JOB_PAUSE_MS"
	EnvSyncURL    = "CLIPMARK_SYNC_URL"
	EnvSyncToken  = "CLIPMARK_SYNC_TOKEN"

	// Database filename
	DBFilename = "clipmark.db"

	// DefaultJobPause is the breather between queued captures so the
	// previous session's recorder and stream can be reclaimed before the
	// next one is acquired.
	DefaultJobPause = 2 * time.Second
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	OutputDir() string
	Profile() string
	OwnerTier() string
	JobPause() time.Duration
	SyncURL() string
	SyncToken() string
}

// fileConfig mirrors the optional YAML config file layout.
type fileConfig struct {
	Port       int    `yaml:"port"`
	LogLevel   string `yaml:"log_level"`
	DataDir    string `yaml:"data_dir"`
	Profile    string `yaml:"profile"`
	OwnerTier  string `yaml:"owner_tier"`
	JobPauseMs int    `yaml:"job_pause_ms"`
	SyncURL    string `yaml:"sync_url"`
	SyncToken  string `yaml:"sync_token"`
}

// EnvConfig reads configuration from the YAML file (if present) and
// environment variables, env taking precedence.
type EnvConfig struct {
	port      int
	logLevel  string
	dataDir   string
	profile   string
	ownerTier string
	jobPause  time.Duration
	syncURL   string
	syncToken string
}

// New creates a new EnvConfig with defaults, optional file values and
// environment variable overrides, in that order.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:      DefaultPort,
		logLevel:  DefaultLogLevel,
		dataDir:   defaultDataDir(),
		profile:   DefaultProfile,
		ownerTier: DefaultTier,
		jobPause:  DefaultJobPause,
	}

	if err := cfg.loadFile(); err != nil {
		return nil, err
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if pr := os.Getenv(EnvProfile); pr != "" {
		cfg.profile = pr
	}

	if tier := os.Getenv(EnvTier); tier != "" {
		cfg.ownerTier = tier
	}

	if su := os.Getenv(EnvSyncURL); su != "" {
		cfg.syncURL = su
	}

	if st := os.Getenv(EnvSyncToken); st != "" {
		cfg.syncToken = st
	}

	if pm := os.Getenv(EnvPauseMs); pm != "" {
		ms, err := strconv.Atoi(pm)
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("invalid %s: must be a non-negative integer", EnvPauseMs)
		}
		cfg.jobPause = time.Duration(ms) * time.Millisecond
	}

	return cfg, nil
}

// loadFile merges values from the YAML config file named by CLIPMARK_CONFIG.
// A missing file is only an error when the path was set explicitly.
func (c *EnvConfig) loadFile() error {
	path := os.Getenv(EnvConfigFile)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.Port != 0 {
		if fc.Port < 1 || fc.Port > 65535 {
			return fmt.Errorf("invalid port in %s: must be between 1 and 65535", path)
		}
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.DataDir != "" {
		c.dataDir = fc.DataDir
	}
	if fc.Profile != "" {
		c.profile = fc.Profile
	}
	if fc.OwnerTier != "" {
		c.ownerTier = fc.OwnerTier
	}
	if fc.JobPauseMs > 0 {
		c.jobPause = time.Duration(fc.JobPauseMs) * time.Millisecond
	}
	if fc.SyncURL != "" {
		c.syncURL = fc.SyncURL
	}
	if fc.SyncToken != "" {
		c.syncToken = fc.SyncToken
	}

	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// OutputDir returns the directory extracted clips and exports are saved to
func (c *EnvConfig) OutputDir() string {
	return filepath.Join(c.dataDir, DefaultOutputSubdir)
}

// Profile returns the default capture performance profile name
func (c *EnvConfig) Profile() string {
	return c.profile
}

// OwnerTier returns the subscription tier assigned to the seeded owner user
func (c *EnvConfig) OwnerTier() string {
	return c.ownerTier
}

// JobPause returns the pause inserted between queued capture jobs
func (c *EnvConfig) JobPause() time.Duration {
	return c.jobPause
}

// SyncURL returns the dashboard base URL usage counters are mirrored to,
// or "" when mirroring is disabled
func (c *EnvConfig) SyncURL() string {
	return c.syncURL
}

// SyncToken returns the bearer token for the dashboard stats endpoint
func (c *EnvConfig) SyncToken() string {
	return c.syncToken
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
