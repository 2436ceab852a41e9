package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const reloadDebounce = 250 * time.Millisecond

// Watch reloads the config whenever the file at cfg.ConfigPath changes and
// passes the result to apply. It blocks until ctx is done.
//
// The parent directory is watched rather than the file so that editors that
// save by rename are picked up.
func Watch(ctx context.Context, cfg *Config, fs *pflag.FlagSet, logger *zap.Logger, apply func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer w.Close()

	path, err := filepath.Abs(cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	logger.Info("watching config", zap.String("path", path))

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			pending = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", zap.Error(err))

		case <-pending:
			pending = nil
			next, err := Load(fs)
			if err != nil {
				logger.Warn("config reload rejected", zap.Error(err))
				continue
			}
			logger.Info("config reloaded",
				zap.Float64("gmt_offset", next.GMTOffset),
				zap.Strings("fields", next.Fields))
			apply(next)
		}
	}
}
