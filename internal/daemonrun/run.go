// Package daemonrun wires storage, the AI client, notifications and the
// HTTP surface into a runnable process.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"

	"dentaldir/internal/api"
	"dentaldir/internal/config"
	"dentaldir/internal/logging"
	"dentaldir/internal/ratelimit"
	"dentaldir/internal/scheduler"
)

// Options configures server runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Bind overrides [paths].api_bind when set.
	Bind string
}

// Run serves the HTTP API and the stale job sweeper until the context is
// cancelled or the process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logOpts := logging.FromConfig(cfg)
	if opts.LogLevel != "" {
		logOpts.Level = opts.LogLevel
	}
	logOpts.Development = opts.Development
	logger, err := logging.New(logOpts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "dentaldir.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	rt, err := Open(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("open runtime", logging.Error(err))
		return err
	}
	defer rt.Close()
	logger.Info("runtime ready", logging.Args(rt.Describe()...)...)

	sweeper := scheduler.New(cfg, rt.Repo, logger, scheduler.WithNotifier(rt.Notifier))
	if err := sweeper.Start(signalCtx); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer sweeper.Stop()

	if !opts.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Bind != "" {
		cfg.Paths.APIBind = opts.Bind
	}
	server := api.NewServer(cfg, rt.Service, ratelimit.New(cfg, rt.Redis), logger)
	if err := server.Start(signalCtx); err != nil {
		return fmt.Errorf("start api server: %w", err)
	}
	defer server.Stop()

	<-signalCtx.Done()
	logger.Info("dentaldir shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
