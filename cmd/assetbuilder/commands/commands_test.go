package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/taskgraph"
)

func parse(t *testing.T, args ...string) (*kong.Context, *CLI) {
	t.Helper()
	cli := &CLI{}
	parser, err := kong.New(cli, kong.Vars{"version": "test"}, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return kctx, cli
}

// writeProject creates a minimal source tree and a configuration file for it.
func writeProject(t *testing.T) (cfgPath, output string) {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "source")
	output = filepath.Join(dir, "build")
	files := map[string]string{
		"less/style.less": "@brand: #f60;\na { color: @brand; }\n",
		"index.html":      "<!DOCTYPE html>\n<html>\n  <body>\n    <p>hi</p>\n  </body>\n</html>\n",
		"js/script.js":    "function go(x) {\n  return x + 1;\n}\nwindow.go = go;\n",
	}
	for rel, content := range files {
		p := filepath.Join(src, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	cfgPath = filepath.Join(dir, config.DefaultPath)
	yml := "source: " + src + "\noutput: " + output + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yml), 0o644))
	return cfgPath, output
}

func TestDevIsDefaultCommand(t *testing.T) {
	kctx, cli := parse(t, "-c", "x.yaml", "-p", "4000")
	require.Equal(t, "dev", kctx.Command())
	require.Equal(t, 4000, cli.Dev.Port)
	require.Equal(t, "x.yaml", cli.Config)
}

func TestBuildCommand(t *testing.T) {
	cfgPath, output := writeProject(t)
	report := filepath.Join(t.TempDir(), "report.json")

	kctx, cli := parse(t, "-c", cfgPath, "build", "--report", report)
	require.Equal(t, "build", kctx.Command())
	require.NoError(t, kctx.Run(&Global{Logger: slog.Default()}, cli))

	require.FileExists(t, filepath.Join(output, "css", "style.min.css"))
	require.FileExists(t, filepath.Join(output, "index.html"))
	require.FileExists(t, filepath.Join(output, "js", "script.js"))
	require.FileExists(t, filepath.Join(output, "img", "sprite.svg"))

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	var r struct {
		Flow    string `json:"flow"`
		Outcome string `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(data, &r))
	require.Equal(t, "build", r.Flow)
	require.Equal(t, "success", r.Outcome)
}

func TestBuildRejectsOverlappingOutputOverride(t *testing.T) {
	cfgPath, _ := writeProject(t)
	src := filepath.Join(filepath.Dir(cfgPath), "source")

	kctx, cli := parse(t, "-c", cfgPath, "build", "-o", filepath.Join(src, "out"))
	err := kctx.Run(&Global{Logger: slog.Default()}, cli)
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestBuildMissingExplicitConfig(t *testing.T) {
	kctx, cli := parse(t, "-c", filepath.Join(t.TempDir(), "nope.yaml"), "build")
	err := kctx.Run(&Global{Logger: slog.Default()}, cli)
	require.Error(t, err)
	require.Equal(t, 4, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	kctx, cli := parse(t, "init", "-o", dir)
	require.NoError(t, kctx.Run(&Global{}, cli))

	cfg, err := config.Load(filepath.Join(dir, config.DefaultPath))
	require.NoError(t, err)
	require.Equal(t, config.DefaultSource, cfg.Source)

	kctx, cli = parse(t, "init", "-o", dir)
	err = kctx.Run(&Global{}, cli)
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	kctx, cli = parse(t, "init", "-o", dir, "--force")
	require.NoError(t, kctx.Run(&Global{}, cli))
}

func TestGraphCommand(t *testing.T) {
	cfgPath, _ := writeProject(t)

	kctx, cli := parse(t, "-c", cfgPath, "graph", "dev", "-f", "json")
	var buf bytes.Buffer
	cli.Graph.out = &buf
	require.NoError(t, kctx.Run(&Global{Logger: slog.Default()}, cli))

	var out struct {
		Flow   string `json:"flow"`
		Stages []struct {
			Name  string `json:"name"`
			Level int    `json:"level"`
		} `json:"stages"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Equal(t, "dev flow", out.Flow)
	levels := map[string]int{}
	for _, s := range out.Stages {
		levels[s.Name] = s.Level
	}
	require.Equal(t, 1, levels["clean"])
	require.Equal(t, 3, levels["copy_images"])
	require.Equal(t, 5, levels["server"])
	require.Equal(t, 5, levels["watch"])

	file := filepath.Join(t.TempDir(), "build.dot")
	kctx, cli = parse(t, "-c", cfgPath, "graph", "-f", "dot", "-o", file)
	require.NoError(t, kctx.Run(&Global{Logger: slog.Default()}, cli))
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(data), `"images" -> "styles";`)
}

func TestGraphList(t *testing.T) {
	kctx, cli := parse(t, "graph", "--list")
	var buf bytes.Buffer
	cli.Graph.out = &buf
	require.NoError(t, kctx.Run(&Global{}, cli))
	require.Contains(t, buf.String(), "mermaid")
}

func TestDevFlagsOverrideServer(t *testing.T) {
	cfg := config.Default()
	d := &DevCmd{Host: "0.0.0.0", Port: 8080, NoLiveReload: true, Metrics: true}
	require.NoError(t, d.apply(cfg))
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 8080, cfg.Server.Port)
	require.False(t, cfg.Server.LiveReloadEnabled())
	require.True(t, cfg.Server.Metrics)

	require.Error(t, (&DevCmd{Port: 70000}).apply(config.Default()))
}

func TestIsInterrupt(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	report := &taskgraph.Report{Outcome: taskgraph.OutcomeCanceled}
	stageErr := taskgraph.NewCanceledStageError("watch", context.Canceled)

	require.True(t, isInterrupt(canceled, report, stageErr))
	require.False(t, isInterrupt(context.Background(), report, stageErr))
	require.False(t, isInterrupt(canceled, &taskgraph.Report{Outcome: taskgraph.OutcomeFailed},
		taskgraph.NewFatalStageError("styles", context.Canceled)))
}
