package watch

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
)

type fakeReloader struct {
	mu      sync.Mutex
	reloads int
	css     []string
}

func (f *fakeReloader) Reload() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
}

func (f *fakeReloader) InjectCSS(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.css = append(f.css, p)
}

func (f *fakeReloader) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reloads, len(f.css)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher not ready")
	}
}

func touch(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRulesDispatchByPattern(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "less"), 0o755))

	var styles, markup atomic.Int32
	rl := &fakeReloader{}
	w, err := New(root, []Rule{
		{Name: "styles", Patterns: []string{"less/**/*.less"}, Inject: "/css/style.min.css",
			Run: func(context.Context) error { styles.Add(1); return nil }},
		{Name: "html", Patterns: []string{"*.html"}, Reload: true,
			Run: func(context.Context) error { markup.Add(1); return nil }},
	}, WithReloader(rl))
	require.NoError(t, err)
	startWatcher(t, w)

	touch(t, filepath.Join(root, "less", "style.less"), "a{}")
	require.Eventually(t, func() bool { return styles.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { _, css := rl.counts(); return css >= 1 }, time.Second, 10*time.Millisecond)
	require.Zero(t, markup.Load())
	reloads, _ := rl.counts()
	require.Zero(t, reloads)

	touch(t, filepath.Join(root, "index.html"), "<p>")
	require.Eventually(t, func() bool { r, _ := rl.counts(); return r >= 1 }, 3*time.Second, 20*time.Millisecond)
	require.GreaterOrEqual(t, markup.Load(), int32(1))
}

func TestNewDirectoriesAreWatched(t *testing.T) {
	root := t.TempDir()
	var runs atomic.Int32
	w, err := New(root, []Rule{{Name: "styles", Patterns: []string{"less/**/*.less"},
		Run: func(context.Context) error { runs.Add(1); return nil }}})
	require.NoError(t, err)
	startWatcher(t, w)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "less", "parts"), 0o755))
	// Give the watcher a moment to register the new directories.
	time.Sleep(200 * time.Millisecond)
	touch(t, filepath.Join(root, "less", "parts", "nav.less"), "a{}")
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestFailedRebuildIsLoggedAndWatchingContinues(t *testing.T) {
	root := t.TempDir()
	logs := &syncBuffer{}
	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	rl := &fakeReloader{}

	var calls atomic.Int32
	var failing atomic.Bool
	failing.Store(true)
	w, err := New(root, []Rule{{Name: "html", Patterns: []string{"*.html"}, Reload: true,
		Run: func(context.Context) error {
			calls.Add(1)
			if failing.Load() {
				return ferrors.TransformError("minify html").Build()
			}
			return nil
		}}},
		WithReloader(rl),
		WithRecorder(rec),
		WithLogger(slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	require.NoError(t, err)
	startWatcher(t, w)

	touch(t, filepath.Join(root, "index.html"), "<p>")
	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "pattern=*.html")
	}, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "Rebuild failed")
	}, time.Second, 10*time.Millisecond)
	n, err := testutil.GatherAndCount(reg, "assetbuilder_watch_rebuilds_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	reloads, _ := rl.counts()
	require.Zero(t, reloads)

	failing.Store(false)
	touch(t, filepath.Join(root, "other.html"), "<p>")
	require.Eventually(t, func() bool { r, _ := rl.counts(); return r >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestRuleNeverOverlapsItself(t *testing.T) {
	release := make(chan struct{})
	var active, maxActive, runs atomic.Int32
	w, err := New(t.TempDir(), []Rule{{Name: "scripts", Patterns: []string{"js/*.js"},
		Run: func(context.Context) error {
			n := active.Add(1)
			defer active.Add(-1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			runs.Add(1)
			<-release
			return nil
		}}})
	require.NoError(t, err)

	ctx := context.Background()
	r := w.rules[0]
	for range 5 {
		r.fire(ctx)
	}
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(release)

	require.NoError(t, w.workers.StopAndWait(ctx))
	require.Equal(t, int32(2), runs.Load())
	require.Equal(t, int32(1), maxActive.Load())
}

func TestDebounceCoalescesEvents(t *testing.T) {
	var runs atomic.Int32
	w, err := New(t.TempDir(), []Rule{{Name: "styles", Patterns: []string{"*.less"},
		Run: func(context.Context) error { runs.Add(1); return nil }}},
		WithDebounce(50*time.Millisecond))
	require.NoError(t, err)

	ctx := context.Background()
	for range 10 {
		w.rules[0].trigger(ctx)
	}
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(1), runs.Load())
}

func TestCanceledRunIsNotCountedAsFailure(t *testing.T) {
	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	w, err := New(t.TempDir(), []Rule{{Name: "styles", Patterns: []string{"*.less"},
		Run: func(ctx context.Context) error { return ctx.Err() }}}, WithRecorder(rec))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.rules[0].execute(ctx)
	n, err := testutil.GatherAndCount(reg, "assetbuilder_watch_rebuilds_total")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestNewRejectsBadRules(t *testing.T) {
	_, err := New(t.TempDir(), []Rule{{Name: "x", Patterns: []string{"[a"}, Run: func(context.Context) error { return nil }}})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	_, err = New(t.TempDir(), []Rule{{Name: "y", Patterns: []string{"*.js"}}})
	require.Error(t, err)
}

func TestRunMissingRoot(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "nope"), nil)
	require.NoError(t, err)
	err = w.Run(context.Background())
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestShouldIgnoreEvent(t *testing.T) {
	cases := map[string]bool{
		"/src/style.less":     false,
		"/src/.style.less":    true,
		"/src/index.html~":    true,
		"/src/.index.swp":     true,
		"/src/index.html.swx": true,
		"/src/#index.html#":   true,
		"/src/4913":           true,
		"/src/js/script.js":   false,
	}
	for path, want := range cases {
		require.Equal(t, want, shouldIgnoreEvent(path), path)
	}
}

func TestWorkerGroupRefusesAfterStop(t *testing.T) {
	var g workerGroup
	require.NoError(t, g.StopAndWait(context.Background()))
	require.False(t, g.Go(func() {}))
}
