package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
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

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
	"git.home.luguber.info/inful/assetbuilder/internal/taskgraph"
	"git.home.luguber.info/inful/assetbuilder/internal/tasks"
)

const iconSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24"><path d="M0 0L24 24"/></svg>`

func write(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := range 16 {
		img.Set(i, i, color.NRGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// project lays out a small source tree and returns a config pointing at it.
func project(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "source")

	write(t, filepath.Join(src, "less", "style.less"), []byte("@c: #333;\nbody { color: @c; }\n"))
	write(t, filepath.Join(src, "index.html"), []byte("<!DOCTYPE html>\n<html>\n  <body>\n    <p>hi</p>\n  </body>\n</html>\n"))
	write(t, filepath.Join(src, "js", "script.js"), []byte("function hello(name) {\n  return 'hi ' + name;\n}\nwindow.hello = hello;\n"))
	write(t, filepath.Join(src, "img", "photo.png"), pngBytes(t))
	write(t, filepath.Join(src, "img", "icons", "cart.svg"), []byte(iconSVG))
	write(t, filepath.Join(src, "img", "catalog", "item.svg"), []byte(iconSVG))
	write(t, filepath.Join(src, "fonts", "lato", "lato.woff2"), []byte("font"))
	write(t, filepath.Join(src, "favicon.ico"), []byte("ico"))

	cfg := config.Default()
	cfg.Source = src
	cfg.Output = filepath.Join(dir, "build")
	require.NoError(t, config.Validate(cfg))
	return cfg
}

func levels(t *testing.T, flow taskgraph.Flow) [][]taskgraph.StageName {
	t.Helper()
	g, err := taskgraph.Compile(flow)
	require.NoError(t, err)
	lv, err := g.Levels()
	require.NoError(t, err)
	return lv
}

type blockingService struct {
	mu      sync.Mutex
	started bool
}

func (s *blockingService) Run(ctx context.Context) error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (s *blockingService) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func TestBuildFlowOrder(t *testing.T) {
	p := New(tasks.New(config.Default()))
	require.Equal(t, [][]taskgraph.StageName{
		{tasks.StageClean},
		{tasks.StageCopy},
		{tasks.StageImages},
		{tasks.StageHTML, tasks.StageScripts, tasks.StageSprite, tasks.StageStyles, tasks.StageSVG, tasks.StageWebP},
	}, levels(t, p.BuildFlow()))
}

func TestDevFlowOrder(t *testing.T) {
	p := New(tasks.New(config.Default()))
	lv := levels(t, p.DevFlow(&blockingService{}, &blockingService{}))
	require.Len(t, lv, 5)
	require.Equal(t, []taskgraph.StageName{tasks.StageCopyImages}, lv[2])
	require.Equal(t, []taskgraph.StageName{StageServer, StageWatch}, lv[4])
}

func TestBuildRegeneratesOutput(t *testing.T) {
	cfg := project(t)
	stale := filepath.Join(cfg.Output, "old", "stale.css")
	write(t, stale, []byte("stale"))

	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	p := New(tasks.New(cfg, tasks.WithRecorder(rec)), WithRecorder(rec))
	report, err := p.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, taskgraph.OutcomeSuccess, report.Outcome)
	require.Equal(t, FlowBuild, report.Flow)

	require.NoFileExists(t, stale)
	for _, rel := range []string{
		"css/style.min.css",
		"css/style.min.css.map",
		"index.html",
		"js/script.js",
		"img/photo.png",
		"img/photo.webp",
		"img/sprite.svg",
		"img/item.svg",
		"fonts/lato/lato.woff2",
		"favicon.ico",
	} {
		require.FileExists(t, filepath.Join(cfg.Output, filepath.FromSlash(rel)))
	}
	require.NoFileExists(t, filepath.Join(cfg.Output, "img", "icons", "cart.svg"))

	n, err := testutil.GatherAndCount(reg, "assetbuilder_stage_results_total")
	require.NoError(t, err)
	require.Equal(t, 9, n)
}

func TestBuildStopsOnStageFailure(t *testing.T) {
	cfg := project(t)
	write(t, filepath.Join(cfg.Source, "less", "style.less"), []byte("body { color: @missing; }"))

	p := New(tasks.New(cfg))
	report, err := p.Build(context.Background())
	require.Error(t, err)
	require.Equal(t, taskgraph.OutcomeFailed, report.Outcome)
	res, ok := report.Result(tasks.StageStyles)
	require.True(t, ok)
	require.Equal(t, taskgraph.StageResultFatal, res)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryTransform))
}

func TestRebuildLeavesOtherOutputsUntouched(t *testing.T) {
	cfg := project(t)
	p := New(tasks.New(cfg))
	_, err := p.Build(context.Background())
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	html := filepath.Join(cfg.Output, "index.html")
	css := filepath.Join(cfg.Output, "css", "style.min.css")
	require.NoError(t, os.Chtimes(html, past, past))
	require.NoError(t, os.Chtimes(css, past, past))

	flow, err := p.RebuildFlow([]string{"styles"})
	require.NoError(t, err)
	report, err := p.Run(context.Background(), FlowRebuild+":styles", flow)
	require.NoError(t, err)
	require.Len(t, report.Stages, 1)

	st, err := os.Stat(html)
	require.NoError(t, err)
	require.True(t, st.ModTime().Equal(past))
	st, err = os.Stat(css)
	require.NoError(t, err)
	require.True(t, st.ModTime().After(past))
}

type countingReloader struct{ reloads, injects atomic.Int32 }

func (r *countingReloader) Reload()          { r.reloads.Add(1) }
func (r *countingReloader) InjectCSS(string) { r.injects.Add(1) }

func TestWatchedScriptEditRegeneratesOnlyScript(t *testing.T) {
	cfg := project(t)
	p := New(tasks.New(cfg))
	_, err := p.Build(context.Background())
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	script := filepath.Join(cfg.Output, "js", "script.js")
	untouched := []string{
		filepath.Join(cfg.Output, "css", "style.min.css"),
		filepath.Join(cfg.Output, "index.html"),
		filepath.Join(cfg.Output, "img", "photo.png"),
		filepath.Join(cfg.Output, "img", "photo.webp"),
		filepath.Join(cfg.Output, "img", "sprite.svg"),
	}
	for _, f := range append([]string{script}, untouched...) {
		require.NoError(t, os.Chtimes(f, past, past))
	}

	rl := &countingReloader{}
	w, err := p.Watcher(rl)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher not ready")
	}

	write(t, filepath.Join(cfg.Source, "js", "script.js"), []byte("function edited(v) {\n  return v * 2;\n}\nwindow.edited = edited;\n"))
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(script)
		return err == nil && strings.Contains(string(data), "edited")
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	st, err := os.Stat(script)
	require.NoError(t, err)
	require.True(t, st.ModTime().After(past))
	for _, f := range untouched {
		st, err := os.Stat(f)
		require.NoError(t, err)
		require.True(t, st.ModTime().Equal(past), "%s was rewritten", f)
	}
	require.Zero(t, rl.injects.Load(), "script rule injects no stylesheet")
}

func TestRebuildRejectsUnknownTask(t *testing.T) {
	p := New(tasks.New(config.Default()))
	_, err := p.RebuildFlow([]string{"styles", "bogus"})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	_, err = p.RebuildFlow([]string{"clean"})
	require.Error(t, err)
}

func TestWatchRulesFromConfig(t *testing.T) {
	cfg := config.Default()
	p := New(tasks.New(cfg))
	rules, err := p.WatchRules()
	require.NoError(t, err)
	require.Len(t, rules, 3)

	byName := map[string]int{}
	for i, r := range rules {
		byName[r.Name] = i
	}
	styles := rules[byName["styles"]]
	require.Equal(t, "/css/style.min.css", styles.Inject)
	require.False(t, styles.Reload)
	html := rules[byName["html"]]
	require.True(t, html.Reload)
	require.Empty(t, html.Inject)

	cfg.Watch.Rules = append(cfg.Watch.Rules, config.WatchRule{Name: "bad", Patterns: []string{"*.txt"}, Tasks: []string{"nope"}})
	_, err = p.WatchRules()
	require.Error(t, err)
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	rule, _ := ce.Context().GetString("rule")
	require.Equal(t, "bad", rule)
}

func TestDevRunsServicesUntilCanceled(t *testing.T) {
	cfg := project(t)
	p := New(tasks.New(cfg))
	server, watcher := &blockingService{}, &blockingService{}

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		report *taskgraph.Report
		err    error
	}
	done := make(chan result, 1)
	go func() {
		r, err := p.Dev(ctx, server, watcher)
		done <- result{r, err}
	}()

	require.Eventually(t, func() bool { return server.running() && watcher.running() }, 10*time.Second, 10*time.Millisecond)
	require.FileExists(t, filepath.Join(cfg.Output, "img", "photo.png"))
	cancel()

	r := <-done
	require.Error(t, r.err)
	require.Equal(t, taskgraph.OutcomeCanceled, r.report.Outcome)
	_, ok := r.report.Result(tasks.StageImages)
	require.False(t, ok, "dev flow copies images instead of optimizing them")
	res, ok := r.report.Result(tasks.StageCopyImages)
	require.True(t, ok)
	require.Equal(t, taskgraph.StageResultSuccess, res)
}

func TestStylesheetURL(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, "/css/style.min.css", StylesheetURL(cfg))
	cfg.Styles.Output = "./assets/site.css"
	require.Equal(t, "/assets/site.css", StylesheetURL(cfg))
}
