package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ChangeFunc is called with the paths that changed during a debounce window.
// A returned error is logged and watching continues.
type ChangeFunc func(ctx context.Context, changed []string) error

// Config holds configuration for the Watcher.
type Config struct {
	// Paths are files or directories to watch. Directories are watched
	// recursively, files through their parent directory so editors that save
	// by rename are still seen.
	Paths []string

	// Ignore lists directories whose events are dropped, typically the output
	// directory so a build does not trigger itself.
	Ignore []string

	// Debounce coalesces bursts of events into a single callback.
	// Default: 300ms
	Debounce time.Duration
}

// Watcher runs a callback when watched files change. Callbacks run one at a
// time on the goroutine that called Run.
type Watcher struct {
	cfg      Config
	onChange ChangeFunc
	ready    chan struct{}

	roots []string
	files map[string]bool
}

// New creates a watcher. Returns an error if no paths are given or a path does
// not exist.
func New(cfg Config, onChange ChangeFunc) (*Watcher, error) {
	if len(cfg.Paths) == 0 {
		return nil, errors.New("no paths to watch")
	}
	if onChange == nil {
		return nil, errors.New("change callback cannot be nil")
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 300 * time.Millisecond
	}

	w := &Watcher{
		cfg:      cfg,
		onChange: onChange,
		ready:    make(chan struct{}),
		files:    make(map[string]bool),
	}

	for _, p := range cfg.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %q: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to watch %q: %w", p, err)
		}
		if info.IsDir() {
			w.roots = append(w.roots, abs)
		} else {
			w.files[abs] = true
		}
	}

	ignore := make([]string, 0, len(cfg.Ignore))
	for _, p := range cfg.Ignore {
		if abs, err := filepath.Abs(p); err == nil {
			ignore = append(ignore, abs)
		}
	}
	w.cfg.Ignore = ignore

	return w, nil
}

// Ready is closed once every path is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	for _, root := range w.roots {
		if err := w.addTree(fw, root); err != nil {
			return err
		}
	}
	for file := range w.files {
		if err := fw.Add(filepath.Dir(file)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", file, err)
		}
	}

	log.Info().
		Strs("dirs", w.roots).
		Int("files", len(w.files)).
		Dur("debounce", w.cfg.Debounce).
		Msg("Watching for changes")

	close(w.ready)

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = make(map[string]struct{})
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Watcher stopping")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}

			// new directories inside a watched tree need their own watch
			if event.Has(fsnotify.Create) && w.inRoot(event.Name) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(fw, event.Name); err != nil {
						log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
					}
				}
			}

			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.cfg.Debounce)
			} else {
				timer.Reset(w.cfg.Debounce)
			}
			fire = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			log.Warn().Err(err).Msg("Watcher error")

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			slices.Sort(changed)

			log.Debug().Strs("changed", changed).Msg("Change detected")

			if err := w.onChange(ctx, changed); err != nil {
				log.Error().Err(err).Msg("Rebuild failed, continuing to watch")
			}
		}
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (skipDir(d.Name()) || w.ignored(path)) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if w.ignored(event.Name) {
		return false
	}
	return w.files[event.Name] || w.inRoot(event.Name)
}

func (w *Watcher) inRoot(path string) bool {
	for _, root := range w.roots {
		if within(root, path) {
			return true
		}
	}
	return false
}

func (w *Watcher) ignored(path string) bool {
	for _, dir := range w.cfg.Ignore {
		if within(dir, path) {
			return true
		}
	}
	return false
}

func skipDir(name string) bool {
	return name == "node_modules" || strings.HasPrefix(name, ".")
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || filepath.IsLocal(rel)
}
