package config

// Storage drivers.
const (
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"
)

// Apply modes understood by the regenerator. Any other value is a dry run.
const (
	ApplyModeAuto         = "auto_apply"
	ApplyModeQualityGated = "quality_gated"
	ApplyModePreview      = "preview"
)

const (
	defaultDataDir                = "~/.local/share/dentaldir"
	defaultLogDir                 = "~/.local/share/dentaldir/logs"
	defaultAPIBind                = "127.0.0.1:8087"
	defaultLLMBaseURL             = "https://api.aimlapi.com/v1/chat/completions"
	defaultLLMModel               = "google/gemini-2.0-flash"
	defaultLLMReferer             = "https://github.com/dentaldir/dentaldir"
	defaultLLMTitle               = "dentaldir content regeneration"
	defaultLLMTimeoutSeconds      = 60
	defaultMaxAttempts            = 3
	defaultBackoffBaseSeconds     = 3
	defaultInterItemDelaySeconds  = 2
	defaultQualityThreshold       = 70
	defaultStaleJobMinutes        = 30
	defaultSweepSpec              = "@every 5m"
	defaultChangedBy              = "ai_batch_regeneration"
	defaultSearchMinScore         = 15
	defaultSearchLimit            = 15
	defaultRedisChannel           = "dentaldir:jobs"
	defaultNotifyRequestTimeout   = 10
	defaultRateLimitRequests      = 60
	defaultRateLimitWindowSeconds = 60
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

var defaultInsuranceProviders = []string{
	"Daman",
	"AXA",
	"Bupa Global",
	"Cigna",
	"MetLife",
	"Oman Insurance",
	"Thiqa",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	providers := make([]string, len(defaultInsuranceProviders))
	copy(providers, defaultInsuranceProviders)
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Storage: Storage{
			Driver: StorageDriverSQLite,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Regeneration: Regeneration{
			MaxAttempts:             defaultMaxAttempts,
			BackoffBaseSeconds:      defaultBackoffBaseSeconds,
			InterItemDelaySeconds:   defaultInterItemDelaySeconds,
			DefaultQualityThreshold: defaultQualityThreshold,
			DefaultApplyMode:        ApplyModeQualityGated,
			StaleJobMinutes:         defaultStaleJobMinutes,
			SweepSpec:               defaultSweepSpec,
			ChangedBy:               defaultChangedBy,
		},
		Search: Search{
			MinScore:           defaultSearchMinScore,
			Limit:              defaultSearchLimit,
			InsuranceProviders: providers,
		},
		Redis: Redis{
			Channel: defaultRedisChannel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		RateLimit: RateLimit{
			Requests:      defaultRateLimitRequests,
			WindowSeconds: defaultRateLimitWindowSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
