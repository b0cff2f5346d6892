package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/ilsp/errors"
	"github.com/teranos/ilsp/logger"
)

// WatchOptions configures a Watcher
type WatchOptions struct {
	Filter Filter
	// Debounce coalesces bursts of events on one path
	Debounce time.Duration
	// MaxPerSecond throttles change callbacks; zero or less means unlimited
	MaxPerSecond float64
}

// DefaultWatchOptions returns the watcher settings used without configuration
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		Filter:       DefaultFilter(),
		Debounce:     200 * time.Millisecond,
		MaxPerSecond: 50,
	}
}

// PathFunc is called with the absolute path of a changed file
type PathFunc func(ctx context.Context, path string)

type eventKind int

const (
	eventChange eventKind = iota
	eventRemove
)

// Watcher reports created, written and removed workspace files.
//
// Events are debounced per path; change callbacks are additionally rate
// limited. Callbacks run on a single dispatch goroutine.
type Watcher struct {
	root     string
	opts     WatchOptions
	onChange PathFunc
	onRemove PathFunc
	logger   *zap.SugaredLogger

	fs      *fsnotify.Watcher
	limiter *rate.Limiter

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]eventKind
	fire    chan string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewWatcher creates a watcher for root. Call Start to begin watching.
func NewWatcher(root string, opts WatchOptions, onChange, onRemove PathFunc, log *zap.SugaredLogger) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve root %s", root)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}
	if log == nil {
		log = logger.ComponentLogger("il.watcher")
	}

	limit := rate.Inf
	burst := 1
	if opts.MaxPerSecond > 0 {
		limit = rate.Limit(opts.MaxPerSecond)
		burst = max(1, int(opts.MaxPerSecond))
	}

	return &Watcher{
		root:     abs,
		opts:     opts,
		onChange: onChange,
		onRemove: onRemove,
		logger:   log,
		fs:       fsw,
		limiter:  rate.NewLimiter(limit, burst),
		timers:   make(map[string]*time.Timer),
		pending:  make(map[string]eventKind),
		fire:     make(chan string, 64),
	}, nil
}

// Start registers every directory under the root and begins dispatching
func (w *Watcher) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	if err := w.addTree(w.root); err != nil {
		w.cancel()
		_ = w.fs.Close()
		return err
	}

	w.wg.Add(2)
	go w.loop()
	go w.dispatch()

	w.logger.Infow("Watching workspace", logger.FieldRoot, w.root)
	return nil
}

// Close stops watching and waits for the goroutines to exit. Pending
// debounced events are dropped.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		err = w.fs.Close()

		w.mu.Lock()
		for p, t := range w.timers {
			t.Stop()
			delete(w.timers, p)
		}
		w.mu.Unlock()

		w.wg.Wait()
	})
	return err
}

// addTree watches dir and every non-excluded directory below it
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return errors.Wrapf(err, "watch %s", dir)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && w.opts.Filter.SkipDir(w.rel(p)) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(p); err != nil {
			w.logger.Warnw("Cannot watch directory", logger.FieldPath, p, logger.FieldError, err)
		}
		return nil
	})
}

func (w *Watcher) rel(p string) string {
	return mustRel(w.root, p)
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("Watcher error", logger.FieldError, err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.opts.Filter.SkipDir(w.rel(ev.Name)) {
				if err := w.addTree(ev.Name); err != nil {
					w.logger.Warnw("Cannot watch new directory", logger.FieldPath, ev.Name, logger.FieldError, err)
				}
			}
			return
		}
	}

	if !w.opts.Filter.Match(w.rel(ev.Name)) {
		return
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.schedule(ev.Name, eventRemove)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.schedule(ev.Name, eventChange)
	}
}

// schedule records the latest event for path and restarts its timer
func (w *Watcher) schedule(path string, kind eventKind) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = kind
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.opts.Debounce, func() {
		select {
		case w.fire <- path:
		case <-w.ctx.Done():
		}
	})
}

func (w *Watcher) dispatch() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case path := <-w.fire:
			w.mu.Lock()
			kind, ok := w.pending[path]
			delete(w.pending, path)
			delete(w.timers, path)
			w.mu.Unlock()
			if !ok {
				continue
			}
			w.deliver(path, kind)
		}
	}
}

func (w *Watcher) deliver(path string, kind eventKind) {
	switch kind {
	case eventRemove:
		w.logger.Debugw("File removed", logger.FieldPath, path)
		if w.onRemove != nil {
			w.onRemove(w.ctx, path)
		}
	case eventChange:
		if err := w.limiter.Wait(w.ctx); err != nil {
			return
		}
		w.logger.Debugw("File changed", logger.FieldPath, path)
		if w.onChange != nil {
			w.onChange(w.ctx, path)
		}
	}
}
