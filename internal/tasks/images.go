package tasks

import (
	"bytes"
	"context"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/fileset"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// OptimizeImages re-encodes every raster. The smaller of the re-encoded and
// the original bytes is written, so output never grows.
func (s *Set) OptimizeImages(ctx context.Context) error {
	im := s.cfg.Images
	files, err := fileset.Expand(s.cfg.Source, im.Patterns, fileset.Options{})
	if err != nil {
		return err
	}
	outDir := s.cfg.OutputPath(im.Output)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return s.optimizeOne(gctx, f, fileset.Dest(outDir, f))
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.done(ctx, StageImages, len(files))
	return nil
}

func (s *Set) optimizeOne(ctx context.Context, f fileset.File, dst string) error {
	original, err := readSource(f.Path)
	if err != nil {
		return err
	}
	format, err := imaging.FormatFromFilename(f.Path)
	if err != nil {
		s.log.DebugContext(ctx, "Unsupported raster format; copying", logfields.Path(f.Rel))
		return writeOutput(dst, original)
	}
	level, err := config.PNGCompression.Parse(s.cfg.Images.PNGCompression)
	if err != nil {
		return err
	}
	img, err := decodeRaster(f.Path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	opts := []imaging.EncodeOption{
		imaging.JPEGQuality(s.cfg.Images.JPEGQuality),
		imaging.PNGCompressionLevel(level),
	}
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryTransform, "encode image").
			WithContext("path", f.Path).
			Build()
	}
	out := buf.Bytes()
	if len(out) >= len(original) {
		out = original
	}
	s.log.DebugContext(ctx, "Image optimized",
		logfields.Path(f.Rel),
		logfields.BytesIn(int64(len(original))),
		logfields.BytesOut(int64(len(out))))
	return writeOutput(dst, out)
}

// decodeRaster opens path applying its EXIF orientation.
func decodeRaster(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, ferrors.WrapError(statErr, ferrors.CategoryFileSystem, "open image").
				WithContext("path", path).
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryTransform, "decode image").
			WithContext("path", path).
			Build()
	}
	return img, nil
}
