package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/natefinch/atomic"

	"devopsmirror/internal/config"
	"devopsmirror/internal/daemon"
	"devopsmirror/internal/logging"
	"devopsmirror/internal/preflight"
	"devopsmirror/internal/store"
)

// Options configures server process runtime behavior.
type Options struct {
	// ConfigPath enables hot reload of the logging level when non-empty.
	ConfigPath  string
	LogLevel    string
	Development bool
}

// Run starts the devopsmirror server and blocks until ctx is cancelled or
// the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	levelVar := new(slog.LevelVar)
	logger, err := newLogger(cfg, opts, levelVar)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if failed := preflight.Failed(preflight.RunAll(signalCtx, cfg, true)); len(failed) > 0 {
		details := make([]string, 0, len(failed))
		for _, result := range failed {
			logger.Error("preflight check failed",
				logging.String(logging.FieldEventType, "preflight_failed"),
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			details = append(details, result.Name+": "+result.Detail)
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(details, "; "))
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "devopsmirror.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "server start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check http.bind and that no other server is running"),
		)
		return err
	}

	if path := strings.TrimSpace(opts.ConfigPath); path != "" && strings.TrimSpace(opts.LogLevel) == "" {
		go func() {
			if err := watchLogLevel(signalCtx, path, levelVar, logger); err != nil {
				logging.WarnWithContext(logger, "config watch unavailable", "config_watch_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "log level changes require a restart"),
				)
			}
		}()
	}

	<-signalCtx.Done()
	logger.Info("devopsmirror server shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// watchLogLevel applies logging.level from path to levelVar each time the
// config file changes, until ctx is cancelled.
func watchLogLevel(ctx context.Context, path string, levelVar *slog.LevelVar, logger *slog.Logger) error {
	return config.Watch(ctx, path, logger, func(updated *config.Config) {
		level := logging.ParseLevel(updated.Logging.Level)
		if levelVar.Level() == level {
			return
		}
		levelVar.Set(level)
		logger.Info("log level reloaded",
			logging.String(logging.FieldEventType, "log_level_reloaded"),
			logging.String("level", level.String()),
		)
	})
}

func newLogger(cfg *config.Config, opts Options, levelVar *slog.LevelVar) (*slog.Logger, error) {
	level := strings.TrimSpace(opts.LogLevel)
	if level == "" && !opts.Development {
		return logging.NewFromConfig(cfg, levelVar)
	}
	if level == "" {
		level = cfg.Logging.Level
	}
	return logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", cfg.LogFilePath()},
		Development: opts.Development,
		LevelVar:    levelVar,
	})
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return atomic.WriteFile(path, strings.NewReader(value))
}
