package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
	"git.home.luguber.info/inful/assetbuilder/internal/tasks"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"assetbuilder.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Dev   DevCmd   `cmd:"" default:"1" help:"Build, serve the output with live reload and rebuild on change (default)"`
	Build BuildCmd `cmd:"" help:"Clean the output directory and produce a production build"`
	Init  InitCmd  `cmd:"" help:"Write a configuration file with the default layout"`
	Graph GraphCmd `cmd:"" help:"Print the stage graph of a flow (text, mermaid, dot, json)"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig reads the configuration named by the global flag. A missing
// default file falls back to the built-in layout.
func loadConfig(root *CLI) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(root.Config)
	if err != nil {
		return nil, err
	}
	slog.Debug("Effective configuration", "config", cfg.String())
	return cfg, nil
}

// stack is everything a flow needs, wired to one metrics registry.
type stack struct {
	registry *prom.Registry
	recorder metrics.Recorder
	set      *tasks.Set
	pipeline *pipeline.Pipeline
}

func newStack(cfg *config.Config, logger *slog.Logger) *stack {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	set := tasks.New(cfg, tasks.WithRecorder(rec), tasks.WithLogger(logger))
	return &stack{
		registry: reg,
		recorder: rec,
		set:      set,
		pipeline: pipeline.New(set, pipeline.WithRecorder(rec), pipeline.WithLogger(logger)),
	}
}
