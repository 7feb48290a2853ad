// Package pipeline wires the asset tasks into the build and dev flows and
// runs them through the stage scheduler.
package pipeline

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
	"git.home.luguber.info/inful/assetbuilder/internal/taskgraph"
	"git.home.luguber.info/inful/assetbuilder/internal/tasks"
)

// Flow labels used in logs, metrics and reports.
const (
	FlowBuild   = "build"
	FlowDev     = "dev"
	FlowRebuild = "rebuild"
)

// Long-running stages of the dev flow.
const (
	StageServer taskgraph.StageName = "server"
	StageWatch  taskgraph.StageName = "watch"
)

// Service is a long-running stage that returns once ctx is canceled.
type Service interface {
	Run(ctx context.Context) error
}

// Pipeline runs flows composed from one task set.
type Pipeline struct {
	set       *tasks.Set
	recorder  metrics.Recorder
	observers taskgraph.Observers
	log       *slog.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRecorder reports stage and run metrics to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pipeline) { p.recorder = metrics.OrNoop(r) }
}

// WithObserver adds o to every run.
func WithObserver(o taskgraph.Observer) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, o) }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.log = l } }

// New returns a pipeline over set.
func New(set *tasks.Set, opts ...Option) *Pipeline {
	p := &Pipeline{set: set, recorder: metrics.NoopRecorder{}, log: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// generate is the set of independent per-asset tasks.
func (p *Pipeline) generate() taskgraph.Flow {
	s := p.set
	return taskgraph.Parallel(
		taskgraph.Step(tasks.StageStyles, s.Styles),
		taskgraph.Step(tasks.StageHTML, s.HTML),
		taskgraph.Step(tasks.StageScripts, s.Scripts),
		taskgraph.Step(tasks.StageSVG, s.SVG),
		taskgraph.Step(tasks.StageSprite, s.Sprite),
		taskgraph.Step(tasks.StageWebP, s.WebP),
	)
}

// BuildFlow cleans the output, copies passthrough assets, optimizes images
// and then generates everything else concurrently.
func (p *Pipeline) BuildFlow() taskgraph.Flow {
	s := p.set
	return taskgraph.Series(
		taskgraph.Step(tasks.StageClean, s.Clean),
		taskgraph.Step(tasks.StageCopy, s.Copy),
		taskgraph.Step(tasks.StageImages, s.OptimizeImages),
		p.generate(),
	)
}

// DevFlow is BuildFlow with images copied instead of recompressed, followed
// by server and watcher running side by side until canceled.
func (p *Pipeline) DevFlow(server, watcher Service) taskgraph.Flow {
	s := p.set
	return taskgraph.Series(
		taskgraph.Step(tasks.StageClean, s.Clean),
		taskgraph.Step(tasks.StageCopy, s.Copy),
		taskgraph.Step(tasks.StageCopyImages, s.CopyImages),
		p.generate(),
		taskgraph.Parallel(
			taskgraph.Step(StageServer, server.Run),
			taskgraph.Step(StageWatch, watcher.Run),
		),
	)
}

// Run compiles flow and executes it under the given label.
func (p *Pipeline) Run(ctx context.Context, label string, flow taskgraph.Flow) (*taskgraph.Report, error) {
	g, err := taskgraph.Compile(flow)
	if err != nil {
		return nil, err
	}
	obs := append(taskgraph.Observers{taskgraph.RecorderObserver{Recorder: p.recorder}}, p.observers...)
	return taskgraph.Run(ctx, g, taskgraph.RunOptions{
		Flow:     label,
		Observer: obs,
		Logger:   p.log,
	})
}

// Build runs the production flow.
func (p *Pipeline) Build(ctx context.Context) (*taskgraph.Report, error) {
	return p.Run(ctx, FlowBuild, p.BuildFlow())
}

// Dev runs the development flow until ctx is canceled.
func (p *Pipeline) Dev(ctx context.Context, server, watcher Service) (*taskgraph.Report, error) {
	return p.Run(ctx, FlowDev, p.DevFlow(server, watcher))
}
