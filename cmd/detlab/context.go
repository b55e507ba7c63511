package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"detlab/internal/config"
	"detlab/internal/gpulock"
	"detlab/internal/history"
	"detlab/internal/logging"
)

type commandContext struct {
	configFlag *string
	noGPULock  *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string, noGPULock *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		noGPULock:  noGPULock,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolvedPath, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolvedPath
	})
	return c.config, c.configErr
}

// ensureLogger builds the logger from the loaded config, writing to stderr
// and a log file in the configured log directory. A config failure degrades
// to a plain stderr console logger so errors still surface.
func (c *commandContext) ensureLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		opts := logging.Options{OutputPaths: []string{"stderr"}}
		if cfg, err := c.ensureConfig(); err == nil {
			opts.Level = cfg.Logging.Level
			opts.Format = cfg.Logging.Format
			opts.OutputPaths = append(opts.OutputPaths, filepath.Join(cfg.Paths.LogDir, "detlab.log"))
		}
		logger, err := logging.New(opts)
		if err != nil {
			logger, _ = logging.New(logging.Options{OutputPaths: []string{"stderr"}})
		}
		c.logger = logger
	})
	return c.logger
}

// acquireGPULock serializes GPU work across processes. The returned release
// function is safe to call unconditionally; it is a no-op when locking is
// disabled in config or via --no-gpu-lock.
func (c *commandContext) acquireGPULock() (func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.GPULock.Enabled || (c.noGPULock != nil && *c.noGPULock) {
		return func() {}, nil
	}

	lock := gpulock.New(cfg.GPULockPath())
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	return func() { _ = lock.Release() }, nil
}

// recordHistory persists one invocation row. Recording is best-effort: any
// store failure is logged and the command's own outcome stands.
func (c *commandContext) recordHistory(ctx context.Context, kind, args string, started time.Time, runErr error, detail map[string]any) {
	cfg, err := c.ensureConfig()
	if err != nil || !cfg.History.Enabled {
		return
	}
	logger := c.ensureLogger()

	store, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		logger.Warn("history store unavailable", logging.Error(err))
		return
	}
	defer store.Close()

	status := "ok"
	if runErr != nil {
		status = "failed"
		if detail == nil {
			detail = map[string]any{}
		}
		detail["error"] = runErr.Error()
	}
	entry := history.Entry{
		Kind:       kind,
		Args:       args,
		Status:     status,
		Detail:     detail,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err := store.Record(ctx, entry); err != nil {
		logger.Warn("could not record invocation", logging.Error(err))
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
