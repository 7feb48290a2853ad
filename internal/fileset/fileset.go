// Package fileset expands source glob patterns into concrete files and maps
// them onto output locations.
//
// Patterns are slash-separated, relative to a root directory, and support
// `**`, `{a,b}` alternatives and character classes. A pattern prefixed with
// `!` removes matches contributed by the other patterns. Each match keeps the
// path relative to its base: the explicit base when one is given, otherwise
// the static directory prefix of the pattern that produced it (its "glob
// parent"). Writing Rel under an output directory therefore mirrors the
// source tree below the glob parent.
package fileset

import (
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// File is one matched source file.
type File struct {
	Path string // filesystem path: root joined with the slash path
	Rel  string // slash path relative to the base
}

// Options tune expansion.
type Options struct {
	// Base overrides the per-pattern glob parent; relative to the root.
	Base string
	// Exclude holds patterns removed from the result, equivalent to "!" entries.
	Exclude []string
}

// Expand resolves patterns under root. The result is sorted by Path and free of duplicates.
func Expand(root string, patterns []string, opts Options) ([]File, error) {
	var include, exclude []string
	for _, p := range patterns {
		if neg, ok := strings.CutPrefix(p, "!"); ok {
			exclude = append(exclude, neg)
			continue
		}
		include = append(include, p)
	}
	exclude = append(exclude, opts.Exclude...)

	for _, p := range append(append([]string(nil), include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, ferrors.ValidationError("invalid glob pattern").WithContext(logfields.KeyPattern, p).Build()
		}
	}

	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var out []File
	for _, pattern := range include {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "expand glob").
				WithContext("root", root).
				WithContext(logfields.KeyPattern, pattern).
				Build()
		}
		if len(matches) == 0 {
			slog.Debug("Pattern matched no files", logfields.Pattern(pattern), logfields.Path(root))
		}
		base := opts.Base
		if base == "" {
			base = GlobParent(pattern)
		}
		for _, m := range matches {
			if seen[m] || matchesAny(exclude, m) {
				continue
			}
			seen[m] = true
			rel, ok := relativeTo(path.Clean(base), m)
			if !ok {
				rel = path.Base(m)
			}
			out = append(out, File{Path: filepath.Join(root, filepath.FromSlash(m)), Rel: rel})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Match reports whether the slash path name, relative to the root the
// patterns are written against, is selected by patterns.
func Match(patterns []string, name string) bool {
	_, ok := MatchPattern(patterns, name)
	return ok
}

// MatchPattern is Match returning the first include pattern that selected
// name. A matching negation wins over any include.
func MatchPattern(patterns []string, name string) (string, bool) {
	name = filepath.ToSlash(name)
	matched := ""
	for _, p := range patterns {
		if neg, ok := strings.CutPrefix(p, "!"); ok {
			if ok, _ := doublestar.Match(neg, name); ok {
				return "", false
			}
			continue
		}
		if ok, _ := doublestar.Match(p, name); ok && matched == "" {
			matched = p
		}
	}
	return matched, matched != ""
}

// GlobParent returns the static directory prefix of pattern ("." when the
// pattern starts with a meta character).
func GlobParent(pattern string) string {
	base, _ := doublestar.SplitPattern(pattern)
	if base == "" {
		return "."
	}
	return base
}

// Dest maps a matched file into outDir.
func Dest(outDir string, f File) string {
	return filepath.Join(outDir, filepath.FromSlash(f.Rel))
}

// WithExt replaces the extension of p.
func WithExt(p, ext string) string {
	return strings.TrimSuffix(p, filepath.Ext(p)) + ext
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

func relativeTo(base, name string) (string, bool) {
	if base == "." {
		return name, true
	}
	rel, ok := strings.CutPrefix(name, base+"/")
	return rel, ok
}
