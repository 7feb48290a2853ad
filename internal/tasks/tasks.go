// Package tasks implements the per-asset pipeline stages. Each task reads the
// source files selected by configuration, applies its transformation and
// writes into the output tree; none keep state between invocations.
package tasks

import (
	"context"
	"log/slog"
	"runtime"
	"sort"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
	"git.home.luguber.info/inful/assetbuilder/internal/taskgraph"
)

// Canonical stage names.
const (
	StageClean      taskgraph.StageName = "clean"
	StageCopy       taskgraph.StageName = "copy"
	StageImages     taskgraph.StageName = "images"
	StageCopyImages taskgraph.StageName = "copy_images"
	StageStyles     taskgraph.StageName = "styles"
	StageHTML       taskgraph.StageName = "html"
	StageScripts    taskgraph.StageName = "scripts"
	StageSVG        taskgraph.StageName = "svg"
	StageSprite     taskgraph.StageName = "sprite"
	StageWebP       taskgraph.StageName = "webp"
)

// Set binds every task to one configuration.
type Set struct {
	cfg      *config.Config
	recorder metrics.Recorder
	log      *slog.Logger
}

// Option customizes a Set.
type Option func(*Set)

// WithRecorder reports processed file counts to r.
func WithRecorder(r metrics.Recorder) Option { return func(s *Set) { s.recorder = metrics.OrNoop(r) } }

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option { return func(s *Set) { s.log = l } }

// New returns the task set for cfg.
func New(cfg *config.Config, opts ...Option) *Set {
	s := &Set{cfg: cfg, recorder: metrics.NoopRecorder{}, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Config returns the bound configuration.
func (s *Set) Config() *config.Config { return s.cfg }

// Lookup returns the stage function registered under name. Only
// regenerating tasks are addressable; clean is reserved for full flows.
func (s *Set) Lookup(name string) (taskgraph.StageFunc, bool) {
	fn, ok := s.registry()[taskgraph.StageName(name)]
	return fn, ok
}

// Names lists the tasks Lookup accepts, sorted.
func (s *Set) Names() []string {
	reg := s.registry()
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, string(n))
	}
	sort.Strings(out)
	return out
}

func (s *Set) registry() map[taskgraph.StageName]taskgraph.StageFunc {
	return map[taskgraph.StageName]taskgraph.StageFunc{
		StageCopy:       s.Copy,
		StageImages:     s.OptimizeImages,
		StageCopyImages: s.CopyImages,
		StageStyles:     s.Styles,
		StageHTML:       s.HTML,
		StageScripts:    s.Scripts,
		StageSVG:        s.SVG,
		StageSprite:     s.Sprite,
		StageWebP:       s.WebP,
	}
}

func (s *Set) workers() int {
	if s.cfg.Images.Workers > 0 {
		return s.cfg.Images.Workers
	}
	return runtime.NumCPU()
}

func (s *Set) done(ctx context.Context, stage taskgraph.StageName, files int) {
	s.recorder.AddFilesProcessed(string(stage), files)
	s.log.DebugContext(ctx, "Task wrote files", logfields.Stage(string(stage)), logfields.Files(files))
}
