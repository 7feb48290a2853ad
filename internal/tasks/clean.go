package tasks

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// Clean removes the output directory. It refuses to touch the filesystem
// root, the working directory, the source directory or any of their parents.
func (s *Set) Clean(ctx context.Context) error {
	out, err := filepath.Abs(s.cfg.Output)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "resolve output directory").Build()
	}
	if err := s.guardRemoval(out); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.RemoveAll(out); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "remove output directory").
			WithContext("path", out).
			Build()
	}
	s.log.DebugContext(ctx, "Output directory removed", logfields.Path(out))
	return nil
}

func (s *Set) guardRemoval(out string) error {
	protected := map[string]string{"filesystem root": filepath.VolumeName(out) + string(filepath.Separator)}
	if wd, err := os.Getwd(); err == nil {
		protected["working directory"] = wd
	}
	if src, err := filepath.Abs(s.cfg.Source); err == nil {
		protected["source directory"] = src
	}
	for label, p := range protected {
		if contains(out, p) {
			return ferrors.ValidationError("refusing to remove output directory").
				WithContext("output", out).
				WithContext("protects", label).
				Build()
		}
	}
	return nil
}

// contains reports whether path equals dir or lies below it.
func contains(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
