package tasks

import (
	"context"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/svg"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/fileset"
)

const (
	mimeSVG = "image/svg+xml"
	mimeCSS = "text/css"
)

func newSVGMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(mimeSVG, svg.Minify)
	m.AddFunc(mimeCSS, css.Minify)
	return m
}

func minifySVG(m *minify.M, path string, src []byte) ([]byte, error) {
	out, err := m.Bytes(mimeSVG, src)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryTransform, "minify svg").
			WithContext("path", path).
			Build()
	}
	return out, nil
}

// SVG minifies standalone vector assets. Files are written below the vector
// output directory relative to the glob parent of the pattern that matched
// them; sprite sources are excluded.
func (s *Set) SVG(ctx context.Context) error {
	v := s.cfg.SVG
	exclude := append(append([]string(nil), v.Exclude...), s.cfg.Sprite.Patterns...)
	files, err := fileset.Expand(s.cfg.Source, v.Patterns, fileset.Options{Exclude: exclude})
	if err != nil {
		return err
	}
	m := newSVGMinifier()
	outDir := s.cfg.OutputPath(v.Output)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, err := readSource(f.Path)
		if err != nil {
			return err
		}
		out, err := minifySVG(m, f.Path, src)
		if err != nil {
			return err
		}
		if err := writeOutput(fileset.Dest(outDir, f), out); err != nil {
			return err
		}
	}
	s.done(ctx, StageSVG, len(files))
	return nil
}
