package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/chrisschopp/anylogic-export/internal/artifact"
)

// DefaultDebounce is how long events are coalesced into one batch.
const DefaultDebounce = 200 * time.Millisecond

// FSNotifier watches the directories holding the subscribed addresses.
type FSNotifier struct {
	debounce time.Duration
	logger   *slog.Logger
}

// NewFSNotifier creates a notifier. A non-positive debounce uses
// DefaultDebounce.
func NewFSNotifier(debounce time.Duration, logger *slog.Logger) *FSNotifier {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FSNotifier{debounce: debounce, logger: logger}
}

// Subscribe starts watching addrs. Directories that do not exist yet are
// covered by watching their nearest existing ancestor until they appear.
func (n *FSNotifier) Subscribe(ctx context.Context, addrs []artifact.Address) (Subscription, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &SubscribeError{Message: "failed to create watcher", Cause: err}
	}

	subCtx, cancel := context.WithCancel(ctx)
	s := &fsSubscription{
		watcher:  w,
		debounce: n.debounce,
		logger:   n.logger,
		targets:  make(map[string]bool, len(addrs)),
		watched:  make(map[string]bool),
		events:   make(chan Batch),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
	for _, a := range addrs {
		s.targets[a.Path] = true
	}
	for _, dir := range s.targetDirs() {
		if err := s.watchNearest(dir); err != nil {
			cancel()
			_ = w.Close()
			return nil, err
		}
	}

	go s.loop(subCtx)
	return s, nil
}

type fsSubscription struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	// targets and watched are only touched by Subscribe and then loop.
	targets map[string]bool
	watched map[string]bool

	events    chan Batch
	done      chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (s *fsSubscription) Events() <-chan Batch {
	return s.events
}

func (s *fsSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

func (s *fsSubscription) targetDirs() []string {
	seen := make(map[string]bool)
	var dirs []string
	for t := range s.targets {
		d := filepath.Dir(t)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// watchNearest watches dir, or its closest existing ancestor.
func (s *fsSubscription) watchNearest(dir string) error {
	for d := dir; ; {
		if s.watched[d] {
			return nil
		}
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			if err := s.watcher.Add(d); err != nil {
				return &SubscribeError{Message: "failed to watch", Path: d, Cause: err}
			}
			s.watched[d] = true
			s.logger.Debug("watching directory", "dir", d)
			return nil
		}
		parent := filepath.Dir(d)
		if parent == d {
			return &SubscribeError{Message: "no existing ancestor for", Path: dir}
		}
		d = parent
	}
}

func (s *fsSubscription) loop(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)
	defer s.watcher.Close()

	var pending Batch
	var timer *time.Timer
	var flush <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			pending = append(pending, s.translate(ev)...)
			if len(pending) > 0 && flush == nil {
				timer = time.NewTimer(s.debounce)
				flush = timer.C
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", "error", err)
		case <-flush:
			flush = nil
			select {
			case s.events <- pending:
			case <-ctx.Done():
				return
			}
			pending = nil
		}
	}
}

// translate turns a raw event into events for subscribed addresses and
// keeps directory watches in step with directories appearing or vanishing.
func (s *fsSubscription) translate(ev fsnotify.Event) Batch {
	path := filepath.Clean(ev.Name)

	if s.targets[path] {
		switch {
		case ev.Has(fsnotify.Create):
			return Batch{{Kind: Created, Path: path}}
		case ev.Has(fsnotify.Write):
			return Batch{{Kind: Modified, Path: path}}
		case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
			return Batch{{Kind: Deleted, Path: path}}
		default:
			return nil
		}
	}

	switch {
	case ev.Has(fsnotify.Create):
		return s.directoryAppeared(path)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		s.directoryVanished(path)
	}
	return nil
}

func (s *fsSubscription) directoryAppeared(path string) Batch {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil
	}
	var out Batch
	for _, dir := range s.targetDirs() {
		if !within(path, dir) {
			continue
		}
		if err := s.watchNearest(dir); err != nil {
			s.logger.Warn("failed to follow new directory", "dir", path, "error", err)
			continue
		}
	}
	// Anything written before the watch was added is reported now.
	for t := range s.targets {
		if !within(path, t) {
			continue
		}
		if _, err := os.Stat(t); err == nil {
			out = append(out, Event{Kind: Created, Path: t})
		}
	}
	return out
}

func (s *fsSubscription) directoryVanished(path string) {
	if !s.watched[path] {
		return
	}
	delete(s.watched, path)
	for _, dir := range s.targetDirs() {
		if within(path, dir) {
			if err := s.watchNearest(dir); err != nil {
				s.logger.Warn("failed to re-watch after removal", "dir", dir, "error", err)
			}
		}
	}
}

// within reports whether p is dir or lies beneath it.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
