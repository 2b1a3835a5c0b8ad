package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateRegeneration(); err != nil {
		return err
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case StorageDriverSQLite:
		return nil
	case StorageDriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("storage.database_url is required when storage.driver is postgres (or set DATABASE_URL)")
		}
		return nil
	default:
		return fmt.Errorf("storage.driver: unsupported value %q (use sqlite or postgres)", c.Storage.Driver)
	}
}

func (c *Config) validateRegeneration() error {
	if err := ensurePositiveMap(map[string]int{
		"regeneration.max_attempts":      c.Regeneration.MaxAttempts,
		"regeneration.stale_job_minutes": c.Regeneration.StaleJobMinutes,
		"llm.timeout_seconds":            c.LLM.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Regeneration.DefaultQualityThreshold < 0 || c.Regeneration.DefaultQualityThreshold > 100 {
		return errors.New("regeneration.default_quality_threshold must be between 0 and 100")
	}
	if _, err := cron.ParseStandard(c.Regeneration.SweepSpec); err != nil {
		return fmt.Errorf("regeneration.sweep_spec: %w", err)
	}
	return nil
}

func (c *Config) validateSearch() error {
	if c.Search.MinScore > 100 {
		return errors.New("search.min_score must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	if c.RateLimit.Requests < 0 {
		return errors.New("rate_limit.requests must not be negative (0 disables limiting)")
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.WindowSeconds <= 0 {
		return errors.New("rate_limit.window_seconds must be positive when rate_limit.requests is set")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var problems []string
	for _, key := range keys {
		if values[key] <= 0 {
			problems = append(problems, key)
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s must be positive", strings.Join(problems, ", "))
	}
	return nil
}
