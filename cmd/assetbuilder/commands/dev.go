package commands

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/devserver"
	"git.home.luguber.info/inful/assetbuilder/internal/taskgraph"
)

// DevCmd builds once, then serves the output and rebuilds on change until
// interrupted.
type DevCmd struct {
	Host         string `help:"Override the server host"`
	Port         int    `short:"p" help:"Override the server port"`
	NoLiveReload bool   `name:"no-live-reload" help:"Disable live reload SSE and script injection"`
	Metrics      bool   `help:"Expose Prometheus metrics at /metrics"`
}

func (d *DevCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return d.run(ctx, g, root)
}

func (d *DevCmd) apply(cfg *config.Config) error {
	if d.Host != "" {
		cfg.Server.Host = d.Host
	}
	if d.Port != 0 {
		cfg.Server.Port = d.Port
	}
	if d.NoLiveReload {
		cfg.Server.LiveReload = config.BoolPtr(false)
	}
	if d.Metrics {
		cfg.Server.Metrics = true
	}
	return config.Validate(cfg)
}

func (d *DevCmd) run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if err := d.apply(cfg); err != nil {
		return err
	}

	st := newStack(cfg, g.Logger)
	server := devserver.New(cfg.Output, cfg.Server,
		devserver.WithMetrics(st.registry, st.recorder),
		devserver.WithLogger(g.Logger))
	watcher, err := st.pipeline.Watcher(server)
	if err != nil {
		return err
	}

	slog.Info("Starting dev mode", "source", cfg.Source, "output", cfg.Output)
	report, err := st.pipeline.Dev(ctx, server, watcher)
	if isInterrupt(ctx, report, err) {
		slog.Info("Dev mode stopped")
		return nil
	}
	return err
}

// isInterrupt reports a run that ended because the process was asked to stop.
func isInterrupt(ctx context.Context, report *taskgraph.Report, err error) bool {
	if ctx.Err() == nil || report == nil || report.Outcome != taskgraph.OutcomeCanceled {
		return false
	}
	var se *taskgraph.StageError
	return errors.As(err, &se) && se.Kind == taskgraph.StageErrorCanceled
}
