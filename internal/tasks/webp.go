package tasks

import (
	"bytes"
	"context"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/sync/errgroup"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/fileset"
)

// WebP writes a same-named .webp sibling for every raster.
func (s *Set) WebP(ctx context.Context) error {
	w := s.cfg.WebP
	files, err := fileset.Expand(s.cfg.Source, w.Patterns, fileset.Options{})
	if err != nil {
		return err
	}
	outDir := s.cfg.OutputPath(w.Output)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := decodeRaster(f.Path)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := nativewebp.Encode(&buf, img, nil); err != nil {
				return ferrors.WrapError(err, ferrors.CategoryTransform, "encode webp").
					WithContext("path", f.Path).
					Build()
			}
			return writeOutput(fileset.WithExt(fileset.Dest(outDir, f), ".webp"), buf.Bytes())
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.done(ctx, StageWebP, len(files))
	return nil
}
