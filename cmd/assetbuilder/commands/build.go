package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output string `short:"o" help:"Override the output directory from the configuration"`
	Report string `help:"Write a JSON run report to this path"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return b.run(ctx, g, root)
}

func (b *BuildCmd) run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if b.Output != "" {
		cfg.Output = b.Output
		if err := config.Validate(cfg); err != nil {
			return err
		}
	}
	slog.Info("Starting production build", "source", cfg.Source, "output", cfg.Output)

	st := newStack(cfg, g.Logger)
	report, err := st.pipeline.Build(ctx)
	if report != nil {
		slog.Info("Build finished", "summary", report.Summary())
		if b.Report != "" {
			if perr := report.Persist(b.Report); perr != nil {
				slog.Warn("Failed to write run report", logfields.Path(b.Report), logfields.Error(perr))
			}
		}
	}
	return err
}
