package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
	"git.home.luguber.info/inful/assetbuilder/internal/taskgraph"
)

// GraphCmd implements the 'graph' command.
type GraphCmd struct {
	Flow   string `arg:"" optional:"" help:"Flow to render: build or dev" default:"build" enum:"build,dev"`
	Format string `short:"f" help:"Output format: text, mermaid, dot, json" default:"text" enum:"text,mermaid,dot,json"`
	Output string `short:"o" help:"Output file path (optional, prints to stdout if not specified)"`
	List   bool   `short:"l" help:"List available formats and exit"`

	out io.Writer
}

// idle stands in for the long-running dev services; graphs are rendered, not run.
type idle struct{}

func (idle) Run(context.Context) error { return nil }

// Run executes the graph command.
func (c *GraphCmd) Run(g *Global, root *CLI) error {
	out := c.out
	if out == nil {
		out = os.Stdout
	}
	if c.List {
		fmt.Fprintln(out, "Available graph formats:")
		for _, f := range taskgraph.Formats() {
			fmt.Fprintf(out, "  %s\n", f)
		}
		return nil
	}

	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	p := newStack(cfg, g.Logger).pipeline
	flow := p.BuildFlow()
	if c.Flow == pipeline.FlowDev {
		flow = p.DevFlow(idle{}, idle{})
	}
	graph, err := taskgraph.Compile(flow)
	if err != nil {
		return ferrors.PipelineError("compile flow").WithCause(err).Build()
	}
	rendered, err := taskgraph.Visualize(graph, c.Flow+" flow", taskgraph.Format(c.Format))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "render graph").Build()
	}

	if c.Output != "" {
		if err := os.WriteFile(c.Output, []byte(rendered), 0o644); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write graph").
				WithContext("path", c.Output).
				Build()
		}
		slog.Info("Graph written", "file", c.Output, "format", c.Format)
		return nil
	}
	_, err = io.WriteString(out, rendered)
	return err
}
