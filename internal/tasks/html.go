package tasks

import (
	"bytes"
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
	xhtml "golang.org/x/net/html"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/fileset"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

const mimeHTML = "text/html"

// newHTMLMinifier collapses whitespace only. Comments, document and end tags,
// quotes and default attribute values are kept; embedded CSS and JS are
// untouched.
func newHTMLMinifier() *minify.M {
	m := minify.New()
	m.Add(mimeHTML, &html.Minifier{
		KeepComments:        true,
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
		KeepDefaultAttrVals: true,
	})
	return m
}

// HTML minifies every page and warns about sprite references that no icon
// source provides.
func (s *Set) HTML(ctx context.Context) error {
	mk := s.cfg.Markup
	pages, err := fileset.Expand(s.cfg.Source, mk.Patterns, fileset.Options{})
	if err != nil {
		return err
	}
	var icons map[string]bool
	if mk.SpriteCheckEnabled() {
		if icons, err = s.iconIDs(); err != nil {
			return err
		}
	}

	m := newHTMLMinifier()
	outDir := s.cfg.OutputPath(mk.Output)
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, err := readSource(p.Path)
		if err != nil {
			return err
		}
		out, err := m.Bytes(mimeHTML, src)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryTransform, "minify html").
				WithContext("path", p.Path).
				Build()
		}
		if icons != nil {
			for _, id := range missingSpriteRefs(out, path.Base(filepath.ToSlash(s.cfg.Sprite.Output)), icons) {
				s.log.WarnContext(ctx, "Sprite reference has no icon source",
					logfields.Path(p.Rel), "icon", id)
			}
		}
		if err := writeOutput(fileset.Dest(outDir, p), out); err != nil {
			return err
		}
	}
	s.done(ctx, StageHTML, len(pages))
	return nil
}

// iconIDs returns the symbol ids the sprite will contain.
func (s *Set) iconIDs() (map[string]bool, error) {
	files, err := fileset.Expand(s.cfg.Source, s.cfg.Sprite.Patterns, fileset.Options{})
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(files))
	for _, f := range files {
		ids[symbolID(f.Rel)] = true
	}
	return ids, nil
}

// missingSpriteRefs parses page and returns <use> fragment ids pointing into
// spriteName that are not in icons.
func missingSpriteRefs(page []byte, spriteName string, icons map[string]bool) []string {
	doc, err := xhtml.Parse(bytes.NewReader(page))
	if err != nil {
		return nil
	}
	var missing []string
	seen := make(map[string]bool)
	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode && n.Data == "use" {
			for _, a := range n.Attr {
				if a.Key != "href" && a.Key != "xlink:href" {
					continue
				}
				file, id, ok := strings.Cut(a.Val, "#")
				if !ok || path.Base(file) != spriteName || icons[id] || seen[id] {
					continue
				}
				seen[id] = true
				missing = append(missing, id)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return missing
}
