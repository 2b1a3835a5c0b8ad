package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Storage selects the persistence backend.
type Storage struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver      string `toml:"driver"`
	DatabaseURL string `toml:"database_url"`
}

// LLM contains the generative AI connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Regeneration contains batch content regeneration settings.
type Regeneration struct {
	MaxAttempts             int    `toml:"max_attempts"`
	BackoffBaseSeconds      int    `toml:"backoff_base_seconds"`
	InterItemDelaySeconds   int    `toml:"inter_item_delay_seconds"`
	DefaultQualityThreshold int    `toml:"default_quality_threshold"`
	DefaultApplyMode        string `toml:"default_apply_mode"`
	StaleJobMinutes         int    `toml:"stale_job_minutes"`
	SweepSpec               string `toml:"sweep_spec"`
	ChangedBy               string `toml:"changed_by"`
}

// Search contains autocomplete ranking settings.
type Search struct {
	MinScore           int      `toml:"min_score"`
	Limit              int      `toml:"limit"`
	InsuranceProviders []string `toml:"insurance_providers"`
}

// Redis contains the optional Redis connection used for progress events and
// shared rate limiting.
type Redis struct {
	URL     string `toml:"url"`
	Channel string `toml:"channel"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// RateLimit contains per-caller admission control for the HTTP surface.
type RateLimit struct {
	Requests      int `toml:"requests"`
	WindowSeconds int `toml:"window_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the full dentaldir configuration. Load returns it normalized
// and validated; Default returns the unvalidated baseline.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Storage       Storage       `toml:"storage"`
	LLM           LLM           `toml:"llm"`
	Regeneration  Regeneration  `toml:"regeneration"`
	Search        Search        `toml:"search"`
	Redis         Redis         `toml:"redis"`
	Notifications Notifications `toml:"notifications"`
	RateLimit     RateLimit     `toml:"rate_limit"`
	Logging       Logging       `toml:"logging"`
}

// EnsureDirectories creates the data, log and lock directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range [...]string{c.Paths.DataDir, c.Paths.LogDir, c.LockDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "dentaldir.db")
}

// LockDir returns the directory holding per-job lock files.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.DataDir, "locks")
}

// UsesPostgres reports whether the postgres backend is selected.
func (c *Config) UsesPostgres() bool {
	return c.Storage.Driver == StorageDriverPostgres
}

// BackoffBase returns the first rate-limit backoff delay.
func (c *Config) BackoffBase() time.Duration {
	return seconds(c.Regeneration.BackoffBaseSeconds)
}

// InterItemDelay returns the fixed throttle between batch items.
func (c *Config) InterItemDelay() time.Duration {
	return seconds(c.Regeneration.InterItemDelaySeconds)
}

// StaleJobTimeout returns how long a running job may go without progress.
func (c *Config) StaleJobTimeout() time.Duration {
	return time.Duration(c.Regeneration.StaleJobMinutes) * time.Minute
}

// RateLimitWindow returns the admission control window.
func (c *Config) RateLimitWindow() time.Duration {
	return seconds(c.RateLimit.WindowSeconds)
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
