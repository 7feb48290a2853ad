// Package watch re-runs pipeline tasks when source files change and tells the
// dev server to refresh connected browsers afterwards.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/fileset"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
)

const drainTimeout = 10 * time.Second

// Reloader is notified after successful rebuilds.
type Reloader interface {
	Reload()
	InjectCSS(urlPath string)
}

// Rule maps source patterns to an action. Patterns are relative to the
// watched root and may be negated with "!".
type Rule struct {
	Name     string
	Patterns []string
	Run      func(ctx context.Context) error
	Reload   bool   // full page reload after success
	Inject   string // stylesheet URL path swapped in place after success
}

// Watcher observes a source tree and dispatches matching changes to rules.
// Rules run independently; a single rule never overlaps with itself and
// queues at most one follow-up run while busy.
type Watcher struct {
	root     string
	rules    []*ruleState
	reloader Reloader
	debounce time.Duration
	recorder metrics.Recorder
	log      *slog.Logger
	workers  workerGroup
	ready    chan struct{}
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithReloader sets the browser refresh target.
func WithReloader(r Reloader) Option { return func(w *Watcher) { w.reloader = r } }

// WithDebounce delays each rule until its events have been quiet for d.
func WithDebounce(d time.Duration) Option { return func(w *Watcher) { w.debounce = d } }

// WithRecorder reports rebuild outcomes to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(w *Watcher) { w.recorder = metrics.OrNoop(r) }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option { return func(w *Watcher) { w.log = l } }

// New validates rules and returns a watcher for root.
func New(root string, rules []Rule, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		root:     root,
		recorder: metrics.NoopRecorder{},
		log:      slog.Default(),
		ready:    make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	for _, r := range rules {
		if r.Run == nil {
			return nil, ferrors.ValidationError("watch rule has no action").WithContext("rule", r.Name).Build()
		}
		for _, p := range r.Patterns {
			if !doublestar.ValidatePattern(strings.TrimPrefix(p, "!")) {
				return nil, ferrors.ValidationError("invalid watch pattern").
					WithContext("rule", r.Name).
					WithContext("pattern", p).
					Build()
			}
		}
		w.rules = append(w.rules, &ruleState{Rule: r, w: w})
	}
	return w, nil
}

// Ready is closed once the source tree is being observed.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run watches until ctx is canceled. Rebuild failures are logged and do not
// stop watching.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create file watcher").Build()
	}
	defer func() { _ = fw.Close() }()

	root, err := filepath.Abs(w.root)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "resolve watch root").Build()
	}
	if st, err := os.Stat(root); err != nil || !st.IsDir() {
		return ferrors.NotFoundError("watch root is not a directory").WithContext("path", root).Build()
	}
	w.addDirsRecursive(fw, root)
	close(w.ready)
	w.log.Info("Watching for changes", logfields.Path(root), "rules", len(w.rules))

	for {
		select {
		case <-ctx.Done():
			return w.shutdown()
		case ev, ok := <-fw.Events:
			if !ok {
				return w.shutdown()
			}
			w.handleEvent(ctx, fw, root, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return w.shutdown()
			}
			w.log.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) shutdown() error {
	for _, r := range w.rules {
		r.stopTimer()
	}
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := w.workers.StopAndWait(ctx); err != nil {
		w.log.Warn("Rebuilds still running at shutdown", logfields.Error(err))
	}
	return nil
}

func (w *Watcher) handleEvent(ctx context.Context, fw *fsnotify.Watcher, root string, ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod || shouldIgnoreEvent(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.addDirsRecursive(fw, ev.Name)
			return
		}
	}
	rel, err := filepath.Rel(root, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)
	for _, r := range w.rules {
		if pattern, ok := fileset.MatchPattern(r.Patterns, rel); ok {
			w.log.Debug("Change detected", logfields.Rule(r.Name), logfields.Path(rel), logfields.Pattern(pattern), "op", ev.Op.String())
			r.trigger(ctx)
		}
	}
}

func (w *Watcher) addDirsRecursive(fw *fsnotify.Watcher, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && shouldIgnoreEvent(path) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			w.log.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

// shouldIgnoreEvent reports hidden files and editor temp files.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db", base == "4913":
		return true
	}
	return false
}

type ruleState struct {
	Rule
	w *Watcher

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	pending bool
}

func (r *ruleState) trigger(ctx context.Context) {
	if r.w.debounce <= 0 {
		r.fire(ctx)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.w.debounce, func() { r.fire(ctx) })
}

func (r *ruleState) stopTimer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
}

// fire starts a run, or marks one pending if the rule is already running.
func (r *ruleState) fire(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.pending = true
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	started := r.w.workers.Go(func() {
		for {
			r.execute(ctx)
			r.mu.Lock()
			if !r.pending || ctx.Err() != nil {
				r.running = false
				r.pending = false
				r.mu.Unlock()
				return
			}
			r.pending = false
			r.mu.Unlock()
		}
	})
	if !started {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}
}

func (r *ruleState) execute(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	err := r.Run(ctx)
	if err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil) {
		return
	}
	r.w.recorder.IncRebuild(r.Name, err == nil)
	if err != nil {
		r.w.log.Warn("Rebuild failed; still watching",
			logfields.Rule(r.Name), logfields.Error(err))
		return
	}
	r.w.log.Info("Rebuilt", logfields.Rule(r.Name), logfields.Duration(time.Since(start)))

	if r.w.reloader == nil {
		return
	}
	if r.Inject != "" {
		r.w.reloader.InjectCSS(r.Inject)
	}
	if r.Reload {
		r.w.reloader.Reload()
	}
}
