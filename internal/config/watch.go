package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadSettle is how long the file must stay quiet before it is re-read.
// Truncate-then-write saves emit several events; only the last one counts.
const reloadSettle = 150 * time.Millisecond

// Watch re-loads the config file at path whenever it changes and passes the
// result to onChange. It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file, so saves that
// replace the file by rename (editors, natefinch/atomic) keep being seen.
// Empty files and files that fail Load are skipped; onChange only sees a
// valid configuration.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	target = filepath.Clean(target)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch config directory: %w", err)
	}
	logger.Info("watching config for changes", slog.String("path", target))

	settle := time.NewTimer(reloadSettle)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			// A rename onto target arrives as Create; Remove and Chmod
			// leave the last good config in place.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				settle.Reset(reloadSettle)
			}

		case <-settle.C:
			if cfg, ok := reloadFile(target, logger); ok {
				onChange(cfg)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

func reloadFile(path string, logger *slog.Logger) (*Config, bool) {
	info, err := os.Stat(path)
	if err != nil {
		logger.Debug("config file not readable; keeping previous config",
			slog.String("path", path), slog.String("error", err.Error()))
		return nil, false
	}
	if info.Size() == 0 {
		logger.Debug("config file empty; waiting for the write to finish", slog.String("path", path))
		return nil, false
	}
	cfg, _, _, err := Load(path)
	if err != nil {
		logger.Warn("config reload failed; keeping previous config",
			slog.String("path", path), slog.String("error", err.Error()))
		return nil, false
	}
	logger.Info("config reloaded",
		slog.String("path", path),
		slog.String("logging_level", cfg.Logging.Level),
	)
	return cfg, true
}
