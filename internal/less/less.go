// Package less flattens the LESS subset used by the stylesheet sources into
// plain CSS that esbuild can bundle, prefix and minify.
//
// Supported: recursive `@import` of .less files (each file included once),
// `@name: value;` variables with lazy last-definition-wins semantics,
// `@{name}` interpolation, `~"escaped"` values, `//` line comments, nested
// rules with `&` parent references (including suffixes such as `&__item`),
// parameterless mixins (`.name;`, `.name();`, optionally `!important`) and
// arithmetic on numbers with compatible units. Nested rules are flattened and
// conditional at-rules bubble up the way lessc emits them.
//
// Parametric mixins, guards and LESS color functions are rejected with an
// error instead of being passed through as invalid CSS.
package less

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// Result is a flattened stylesheet.
type Result struct {
	CSS string
	// Files lists every source that contributed, entry first.
	Files []string
}

var (
	importRe = regexp.MustCompile(`@import\s*(?:\(([^)]*)\)\s*)?(?:url\(\s*)?["']([^"']+)["']\s*\)?\s*([^;]*);`)
	declRe   = regexp.MustCompile(`(?m)(^|[{;])[ \t]*@([A-Za-z_][\w-]*)[ \t]*:[ \t]*([^;{}]*?)[ \t]*;`)
)

// atRules are CSS at-keywords that must never be treated as variable references.
var atRules = map[string]bool{
	"charset": true, "container": true, "counter-style": true, "document": true,
	"font-face": true, "font-feature-values": true, "import": true, "keyframes": true,
	"-webkit-keyframes": true, "-moz-keyframes": true, "layer": true, "media": true,
	"namespace": true, "page": true, "property": true, "scope": true,
	"starting-style": true, "supports": true, "viewport": true,
}

// Preprocess reads the entry file and returns the flattened stylesheet.
func Preprocess(entry string) (*Result, error) {
	p := &processor{included: make(map[string]bool)}
	body, err := p.inline(entry, nil)
	if err != nil {
		return nil, err
	}
	css, err := resolveVariables(body)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryTransform, "resolve stylesheet variables").
			WithContext("entry", entry).
			Build()
	}
	flat, err := flattenStylesheet(css)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryTransform, "flatten stylesheet").
			WithContext("entry", entry).
			Build()
	}
	return &Result{CSS: flat, Files: p.files}, nil
}

type processor struct {
	included map[string]bool
	files    []string
}

func (p *processor) inline(path string, stack []string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "resolve stylesheet path").
			WithContext("path", path).
			Build()
	}
	for _, s := range stack {
		if s == abs {
			return "", ferrors.TransformError("circular stylesheet import").
				WithContext("path", path).
				WithContext("chain", strings.Join(append(stack, abs), " -> ")).
				Build()
		}
	}
	if p.included[abs] {
		return "", nil
	}
	p.included[abs] = true
	p.files = append(p.files, abs)

	data, err := os.ReadFile(abs)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "read stylesheet").
			WithContext("path", path).
			Build()
	}
	src := StripLineComments(string(data))
	dir := filepath.Dir(abs)
	stack = append(stack, abs)

	var out strings.Builder
	last := 0
	for _, m := range importRe.FindAllStringSubmatchIndex(src, -1) {
		out.WriteString(src[last:m[0]])
		last = m[1]

		opts := submatch(src, m, 1)
		target := submatch(src, m, 2)
		if isCSSImport(target, opts) {
			// Plain CSS imports are left for esbuild, minus LESS import options.
			media := strings.TrimSpace(submatch(src, m, 3))
			if media != "" {
				media = " " + media
			}
			fmt.Fprintf(&out, "@import %q%s;", target, media)
			continue
		}
		if filepath.Ext(target) == "" {
			target += ".less"
		}
		full := filepath.Join(dir, filepath.FromSlash(target))
		if strings.Contains(opts, "inline") {
			raw, err := os.ReadFile(full)
			if err != nil {
				return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "read inline import").
					WithContext("path", full).
					Build()
			}
			out.Write(raw)
			continue
		}
		body, err := p.inline(full, stack)
		if err != nil {
			return "", err
		}
		out.WriteString(body)
		out.WriteByte('\n')
	}
	out.WriteString(src[last:])
	return out.String(), nil
}

func submatch(s string, m []int, n int) string {
	if m[2*n] < 0 {
		return ""
	}
	return s[m[2*n]:m[2*n+1]]
}

func isCSSImport(target, opts string) bool {
	if strings.Contains(opts, "css") {
		return true
	}
	if strings.HasPrefix(target, "http:") || strings.HasPrefix(target, "https:") || strings.HasPrefix(target, "//") {
		return true
	}
	return strings.EqualFold(filepath.Ext(target), ".css")
}
