package services

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher rebuilds the cache index when content files are edited directly
// on disk. Bursts of events are debounced into a single rebuild.
type Watcher struct {
	repo     *PostRepository
	watcher  *fsnotify.Watcher
	debounce time.Duration
}

func NewWatcher(repo *PostRepository, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(repo.Dir()); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch content directory %s: %w", repo.Dir(), err)
	}
	return &Watcher{
		repo:     repo,
		watcher:  fw,
		debounce: debounce,
	}, nil
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	slog.Info("Watching content directory", "dir", w.repo.Dir())

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, contentExt) || event.Op == fsnotify.Chmod {
				continue
			}
			slog.Debug("Content change detected", "file", filepath.Base(event.Name), "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("File watcher error", "error", err)
		case <-fire:
			fire = nil
			if posts, err := w.repo.Rebuild(ctx); err != nil {
				slog.Error("Cache rebuild after content change failed", "error", err)
			} else {
				slog.Info("Cache index rebuilt after content change", "posts", len(posts))
			}
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
