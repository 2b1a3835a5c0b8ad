package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStorage()
	c.normalizeLLM()
	c.normalizeRegeneration()
	c.normalizeSearch()
	c.normalizeRedis()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("DENTALDIR_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeStorage() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case "", "sqlite3":
		c.Storage.Driver = StorageDriverSQLite
	case "postgresql", "pg":
		c.Storage.Driver = StorageDriverPostgres
	}
	c.Storage.DatabaseURL = strings.TrimSpace(c.Storage.DatabaseURL)
	if c.Storage.DatabaseURL == "" {
		if value, ok := os.LookupEnv("DATABASE_URL"); ok {
			c.Storage.DatabaseURL = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("DENTALDIR_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("AIML_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeRegeneration() {
	if c.Regeneration.MaxAttempts <= 0 {
		c.Regeneration.MaxAttempts = defaultMaxAttempts
	}
	if c.Regeneration.BackoffBaseSeconds < 0 {
		c.Regeneration.BackoffBaseSeconds = defaultBackoffBaseSeconds
	}
	if c.Regeneration.InterItemDelaySeconds < 0 {
		c.Regeneration.InterItemDelaySeconds = defaultInterItemDelaySeconds
	}
	c.Regeneration.DefaultApplyMode = strings.ToLower(strings.TrimSpace(c.Regeneration.DefaultApplyMode))
	if c.Regeneration.DefaultApplyMode == "" {
		c.Regeneration.DefaultApplyMode = ApplyModeQualityGated
	}
	if c.Regeneration.StaleJobMinutes <= 0 {
		c.Regeneration.StaleJobMinutes = defaultStaleJobMinutes
	}
	c.Regeneration.SweepSpec = strings.TrimSpace(c.Regeneration.SweepSpec)
	if c.Regeneration.SweepSpec == "" {
		c.Regeneration.SweepSpec = defaultSweepSpec
	}
	c.Regeneration.ChangedBy = strings.TrimSpace(c.Regeneration.ChangedBy)
	if c.Regeneration.ChangedBy == "" {
		c.Regeneration.ChangedBy = defaultChangedBy
	}
}

func (c *Config) normalizeSearch() {
	if c.Search.MinScore < 0 {
		c.Search.MinScore = defaultSearchMinScore
	}
	if c.Search.Limit <= 0 {
		c.Search.Limit = defaultSearchLimit
	}
	providers := make([]string, 0, len(c.Search.InsuranceProviders))
	seen := make(map[string]struct{}, len(c.Search.InsuranceProviders))
	for _, name := range c.Search.InsuranceProviders {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		providers = append(providers, trimmed)
	}
	c.Search.InsuranceProviders = providers
}

func (c *Config) normalizeRedis() {
	c.Redis.URL = strings.TrimSpace(c.Redis.URL)
	if c.Redis.URL == "" {
		if value, ok := os.LookupEnv("REDIS_URL"); ok {
			c.Redis.URL = strings.TrimSpace(value)
		}
	}
	c.Redis.Channel = strings.TrimSpace(c.Redis.Channel)
	if c.Redis.Channel == "" {
		c.Redis.Channel = defaultRedisChannel
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
