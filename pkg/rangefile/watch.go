package rangefile

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// DefaultDebounce is how long Watcher waits for writes to settle.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports changes to a fixed set of range files. It watches the
// parent directories so files replaced by rename are still seen.
type Watcher struct {
	watcher  *fsnotify.Watcher
	targets  map[string]struct{}
	debounce time.Duration
}

// NewWatcher starts watching paths. Events are coalesced over debounce;
// a non-positive debounce selects DefaultDebounce.
func NewWatcher(paths []string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}

	w := &Watcher{watcher: fw, targets: make(map[string]struct{}, len(paths)), debounce: debounce}
	dirs := make(map[string]struct{})

	for _, path := range paths {
		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			fw.Close()

			return nil, errors.Wrapf(absErr, "resolve %s", path)
		}

		w.targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	for dir := range dirs {
		addErr := fw.Add(dir)
		if addErr != nil {
			fw.Close()

			return nil, errors.Wrapf(addErr, "failed to watch %s", dir)
		}
	}

	return w, nil
}

// Run calls onChange once per settled burst of writes to the watched files.
// It blocks until ctx is canceled or the watcher fails, and closes the
// watcher before returning.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context)) error {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if _, watched := w.targets[filepath.Clean(event.Name)]; watched {
				timer.Reset(w.debounce)
			}
		case <-timer.C:
			onChange(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}

			return errors.Wrap(err, "file watcher failed")
		}
	}
}
