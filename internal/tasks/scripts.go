package tasks

import (
	"context"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/assetbuilder/internal/foundation"
)

var languageTargets = foundation.NewEnum("script target", map[string]api.Target{
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
})

// Scripts minifies the script entry; the output keeps the source file name.
func (s *Set) Scripts(ctx context.Context) error {
	sc := s.cfg.Scripts
	entry := s.cfg.SourcePath(sc.Entry)
	target := api.ESNext
	if sc.Target != "" {
		t, err := languageTargets.Parse(sc.Target)
		if err != nil {
			return err
		}
		target = t
	}

	code, err := readSource(entry)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	result := api.Transform(string(code), api.TransformOptions{
		Loader:            api.LoaderJS,
		Sourcefile:        filepath.ToSlash(sc.Entry),
		Target:            target,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		LegalComments:     api.LegalCommentsNone,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return buildError("minify script", entry, result.Errors)
	}

	out := filepath.Join(s.cfg.OutputPath(sc.Output), filepath.Base(entry))
	if err := writeOutput(out, result.Code); err != nil {
		return err
	}
	s.done(ctx, StageScripts, 1)
	return nil
}
