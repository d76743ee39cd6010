package watcher

import (
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the watcher waits for a burst of events to settle
const DefaultDebounce = 200 * time.Millisecond

// skipDirs are never watched
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
}

// gitFiles inside .git whose changes alter the local diff
var gitFiles = map[string]bool{
	"index": true,
	"HEAD":  true,
}

// Watcher wraps fsnotify and sends debounced batches of changed paths
type Watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	debounce time.Duration
	log      zerolog.Logger

	Changes chan []string // repo-relative paths, sorted
	Errors  chan error

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a watcher over the work tree at root
func New(root string, debounce time.Duration, logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		fsw:      fsw,
		root:     root,
		debounce: debounce,
		log:      logger.With().Str("component", "watcher").Logger(),
		Changes:  make(chan []string, 1),
		Errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}

	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	// .git itself is watched shallowly so staging shows up
	if err := fsw.Add(filepath.Join(root, ".git")); err != nil {
		w.log.Debug().Err(err).Msg("not watching .git")
	}
	return w, nil
}

// addTree watches dir and every non-skipped directory below it
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Directories can vanish mid-walk
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.log.Debug().Err(err).Str("dir", path).Msg("cannot watch directory")
		}
		return nil
	})
}

// Start begins forwarding events in a goroutine
func (w *Watcher) Start() {
	go w.loop()
}

func (w *Watcher) loop() {
	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-w.done:
			timer.Stop()
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			rel, keep := w.relevant(ev)
			if !keep {
				continue
			}
			if ev.Has(fsnotify.Create) {
				w.watchIfDir(ev.Name)
			}
			pending[rel] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
				w.log.Warn().Err(err).Msg("dropped watcher error")
			}

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			pending = make(map[string]struct{})

			select {
			case w.Changes <- batch:
			case <-w.done:
				return
			}
		}
	}
}

// relevant filters an event and returns its repo-relative path
func (w *Watcher) relevant(ev fsnotify.Event) (string, bool) {
	if ev.Op == fsnotify.Chmod {
		return "", false
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)

	if filepath.Dir(ev.Name) == filepath.Join(w.root, ".git") {
		return rel, gitFiles[filepath.Base(ev.Name)]
	}
	return rel, true
}

// watchIfDir adds newly created directories
func (w *Watcher) watchIfDir(path string) {
	if skipDirs[filepath.Base(path)] {
		return
	}
	if err := w.addTree(path); err != nil {
		w.log.Debug().Err(err).Str("path", path).Msg("new path not watched")
	}
}

// Close stops the watcher
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}
