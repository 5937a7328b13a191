package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// reloadDelay coalesces the burst of events an editor save produces.
const reloadDelay = 200 * time.Millisecond

// Watch reloads the config whenever the file changes and calls fn with the
// new values. It blocks until ctx is done. Invalid files are logged and
// skipped, keeping the last good config.
func (m *Manager) Watch(ctx context.Context, fn func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so replace-on-save editors are seen.
	if err := watcher.Add(m.configDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", m.configDir, err)
	}

	logger := log.With().Str("component", "config").Logger()
	var debounce <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(m.configPath) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				debounce = time.After(reloadDelay)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("config watcher error")

		case <-debounce:
			debounce = nil
			if err := m.Load(); err != nil {
				logger.Warn().Err(err).Msg("ignoring config change")
				continue
			}
			logger.Info().Str("path", m.configPath).Msg("config reloaded")
			fn(m.Get())
		}
	}
}
