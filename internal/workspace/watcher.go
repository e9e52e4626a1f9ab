package workspace

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/raido/internal/storage"
)

// StaleCallback is called with the URI of a document whose backing file
// changed on disk.
type StaleCallback func(uri string)

const staleDebounce = 150 * time.Millisecond

// Watch observes the files behind path-based sources until ctx is
// cancelled. Loaded documents are never reloaded; cb only reports that the
// on-disk copy has diverged. Bursts of events for one file are coalesced.
func Watch(ctx context.Context, store storage.Provider, sources []DocumentSource, logger *slog.Logger, cb StaleCallback) error {
	byPath := make(map[string][]string)
	dirs := make(map[string]struct{})
	for _, src := range sources {
		if src.Path == "" {
			continue
		}
		abs, err := store.Resolve(src.Path)
		if err != nil {
			return err
		}
		byPath[abs] = append(byPath[abs], src.URI)
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	if len(byPath) == 0 {
		logger.Debug("watcher: no file-backed documents")
		<-ctx.Done()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Directories, not files, so editors that save by rename stay watched.
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return err
		}
	}
	logger.Info("watcher: started", slog.Int("files", len(byPath)), slog.String("root", store.Root()))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			for abs := range pending {
				for _, uri := range byPath[abs] {
					logger.Info("watcher: document changed on disk", slog.String("uri", uri))
					if cb != nil {
						cb(uri)
					}
				}
			}
			clear(pending)
			timerCh = nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if _, tracked := byPath[ev.Name]; !tracked {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			pending[ev.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(staleDebounce)
			} else {
				timer.Reset(staleDebounce)
			}
			timerCh = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: error", slog.String("error", err.Error()))
		}
	}
}
