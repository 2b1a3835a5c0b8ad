package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"dentaldir/internal/api"
	"dentaldir/internal/catalog"
	"dentaldir/internal/config"
	"dentaldir/internal/joblock"
	"dentaldir/internal/logging"
	"dentaldir/internal/notifications"
	"dentaldir/internal/redisconn"
	"dentaldir/internal/regen"
	"dentaldir/internal/search"
	"dentaldir/internal/services/llm"
	"dentaldir/internal/store"
	"dentaldir/internal/store/pgstore"
)

// Runtime holds the wired components shared by the server and one-shot CLI
// commands.
type Runtime struct {
	Config    *config.Config
	Logger    *slog.Logger
	Repo      store.Repository
	Redis     *redis.Client
	Notifier  notifications.Service
	Processor *regen.Processor
	Catalog   *catalog.Catalog
	Service   *api.Service
}

// Option customizes runtime construction.
type Option func(*openOptions)

type openOptions struct {
	completer regen.Completer
}

// WithCompleter replaces the configured AI client.
func WithCompleter(c regen.Completer) Option {
	return func(o *openOptions) { o.completer = c }
}

// Open connects storage and optional Redis and wires the processor, catalog
// and service. Callers must Close the runtime.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	repo, err := OpenRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rdb, err := redisconn.Open(ctx, cfg.Redis.URL)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	completer := o.completer
	if completer == nil {
		completer = NewLLMClient(cfg)
	}

	notifier := notifications.NewService(cfg, rdb)
	processor := regen.NewProcessor(repo, completer, regen.SettingsFromConfig(cfg),
		regen.WithNotifier(notifier),
		regen.WithLogger(logger),
	)
	policy := search.Policy{MinScore: cfg.Search.MinScore, Limit: cfg.Search.Limit}
	cat := catalog.New(repo, cfg.Search.InsuranceProviders, policy, logger)
	svc := api.NewService(cfg, repo, processor, cat, joblock.New(cfg.LockDir()), logger)

	return &Runtime{
		Config:    cfg,
		Logger:    logger,
		Repo:      repo,
		Redis:     rdb,
		Notifier:  notifier,
		Processor: processor,
		Catalog:   cat,
		Service:   svc,
	}, nil
}

// OpenRepository opens the storage backend selected by [storage].driver.
func OpenRepository(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	if cfg.UsesPostgres() {
		repo, err := pgstore.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return repo, nil
	}
	repo, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return repo, nil
}

// NewLLMClient builds the AI client with its own retries disabled; the
// processor owns the rate-limit retry policy.
func NewLLMClient(cfg *config.Config) *llm.Client {
	return llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		Temperature:    0.7,
	}, llm.WithRetryMaxAttempts(1))
}

// Close releases storage and Redis connections.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	if r.Repo != nil {
		errs = append(errs, r.Repo.Close())
	}
	return errors.Join(errs...)
}

// Describe summarizes the runtime for startup logs.
func (r *Runtime) Describe() []logging.Attr {
	driver := r.Config.Storage.Driver
	if driver == "" {
		driver = config.StorageDriverSQLite
	}
	attrs := []logging.Attr{
		logging.String("storage", driver),
		logging.Bool("redis", r.Redis != nil),
		logging.Bool("ntfy", strings.TrimSpace(r.Config.Notifications.NtfyTopic) != ""),
		logging.String("llm_model", r.Config.LLM.Model),
		logging.Bool("llm_key_present", strings.TrimSpace(r.Config.LLM.APIKey) != ""),
	}
	if r.Config.UsesPostgres() {
		attrs = append(attrs, logging.String("database_url", r.Config.Storage.DatabaseURL))
	}
	return attrs
}
