package tasks

import (
	"context"

	"git.home.luguber.info/inful/assetbuilder/internal/fileset"
)

// Copy copies passthrough assets (fonts, favicons) relative to the copy base.
func (s *Set) Copy(ctx context.Context) error {
	c := s.cfg.Copy
	files, err := fileset.Expand(s.cfg.Source, c.Patterns, fileset.Options{Base: c.Base})
	if err != nil {
		return err
	}
	outDir := s.cfg.OutputPath(c.Output)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := copyFile(f.Path, fileset.Dest(outDir, f)); err != nil {
			return err
		}
	}
	s.done(ctx, StageCopy, len(files))
	return nil
}

// CopyImages copies rasters unmodified; the dev flow uses it instead of
// OptimizeImages.
func (s *Set) CopyImages(ctx context.Context) error {
	im := s.cfg.Images
	files, err := fileset.Expand(s.cfg.Source, im.Patterns, fileset.Options{})
	if err != nil {
		return err
	}
	outDir := s.cfg.OutputPath(im.Output)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := copyFile(f.Path, fileset.Dest(outDir, f)); err != nil {
			return err
		}
	}
	s.done(ctx, StageCopyImages, len(files))
	return nil
}
