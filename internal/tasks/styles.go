package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/assetbuilder/internal/foundation"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/less"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// Assets referenced from stylesheets are served from the output tree as-is.
var externalAssets = []string{"*.woff2", "*.woff", "*.ttf", "*.eot", "*.png", "*.jpg", "*.jpeg", "*.gif", "*.svg", "*.webp", "*.avif"}

var engineNames = foundation.NewEnum("browser engine", map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
})

// Styles compiles the stylesheet entry into one minified, prefixed file with
// an optional linked sourcemap.
func (s *Set) Styles(ctx context.Context) error {
	st := s.cfg.Styles
	entry, err := filepath.Abs(s.cfg.SourcePath(st.Entry))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "resolve stylesheet entry").Build()
	}
	outfile, err := filepath.Abs(s.cfg.OutputPath(st.Output))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "resolve stylesheet output").Build()
	}
	engines, err := parseEngines(st.Targets)
	if err != nil {
		return err
	}

	sourcemap := api.SourceMapNone
	if st.SourcemapEnabled() {
		sourcemap = api.SourceMapLinked
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	result := api.Build(api.BuildOptions{
		EntryPoints:       []string{entry},
		Outfile:           outfile,
		Bundle:            true,
		Write:             false,
		Sourcemap:         sourcemap,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		MinifyIdentifiers: true,
		LegalComments:     api.LegalCommentsNone,
		Engines:           engines,
		External:          externalAssets,
		Plugins:           []api.Plugin{less.Plugin()},
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return buildError("compile stylesheet", entry, result.Errors)
	}
	// A diagnostic located in a source stylesheet means esbuild kept text it
	// could not parse.
	var invalid []api.Message
	for _, w := range result.Warnings {
		if strings.HasSuffix(messageFile(w), ".less") || strings.HasSuffix(messageFile(w), ".css") {
			invalid = append(invalid, w)
			continue
		}
		s.log.WarnContext(ctx, "Stylesheet warning", logfields.Path(messageFile(w)), "message", w.Text)
	}
	if len(invalid) > 0 {
		return buildError("compile stylesheet", entry, invalid)
	}

	for _, f := range result.OutputFiles {
		if err := writeOutput(f.Path, f.Contents); err != nil {
			return err
		}
	}
	s.done(ctx, StageStyles, len(result.OutputFiles))
	return nil
}

// parseEngines turns targets such as "safari12" or "ios12.2" into esbuild engines.
func parseEngines(targets []string) ([]api.Engine, error) {
	engines := make([]api.Engine, 0, len(targets))
	for _, t := range targets {
		t = strings.ToLower(strings.TrimSpace(t))
		i := strings.IndexAny(t, "0123456789")
		if i <= 0 {
			return nil, ferrors.ValidationError("invalid style target").WithContext("target", t).Build()
		}
		name, err := engineNames.Parse(t[:i])
		if err != nil {
			return nil, err
		}
		engines = append(engines, api.Engine{Name: name, Version: t[i:]})
	}
	return engines, nil
}

func messageFile(m api.Message) string {
	if m.Location == nil {
		return ""
	}
	return m.Location.File
}

// buildError classifies esbuild diagnostics as a transform failure.
func buildError(action, path string, msgs []api.Message) error {
	b := ferrors.TransformError(action).
		WithContext("path", path).
		WithContext("errors", len(msgs))
	if len(msgs) > 0 {
		b = b.WithCause(errors.New(describe(msgs[0])))
	}
	return b.Build()
}

func describe(m api.Message) string {
	if m.Location == nil {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
}
