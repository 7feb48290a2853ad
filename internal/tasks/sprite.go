package tasks

import (
	"context"
	"path"
	"strings"

	"github.com/beevik/etree"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/fileset"
)

const svgNamespace = "http://www.w3.org/2000/svg"

// symbolAttrs are copied from an icon's root onto its <symbol>.
var symbolAttrs = []string{"viewBox", "preserveAspectRatio"}

// symbolID derives the fragment id of an icon from its file name.
func symbolID(rel string) string {
	base := path.Base(rel)
	return strings.TrimSuffix(base, path.Ext(base))
}

// Sprite minifies the icon sources and merges them into one inline sprite:
// a root <svg> holding one <symbol id="name"> per icon, without an XML
// declaration so it can be embedded or referenced as sprite.svg#name.
func (s *Set) Sprite(ctx context.Context) error {
	files, err := fileset.Expand(s.cfg.Source, s.cfg.Sprite.Patterns, fileset.Options{})
	if err != nil {
		return err
	}

	m := newSVGMinifier()
	doc := etree.NewDocument()
	sprite := doc.CreateElement("svg")
	sprite.CreateAttr("xmlns", svgNamespace)

	ids := make(map[string]string, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := symbolID(f.Rel)
		if prev, dup := ids[id]; dup {
			return ferrors.TransformError("duplicate icon name in sprite").
				WithContext("icon", id).
				WithContext("first", prev).
				WithContext("second", f.Rel).
				Build()
		}
		ids[id] = f.Rel

		src, err := readSource(f.Path)
		if err != nil {
			return err
		}
		minified, err := minifySVG(m, f.Path, src)
		if err != nil {
			return err
		}
		if err := addSymbol(sprite, id, f.Path, minified); err != nil {
			return err
		}
	}

	data, err := doc.WriteToBytes()
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryTransform, "serialize sprite").Build()
	}
	if err := writeOutput(s.cfg.OutputPath(s.cfg.Sprite.Output), data); err != nil {
		return err
	}
	s.done(ctx, StageSprite, len(files))
	return nil
}

func addSymbol(sprite *etree.Element, id, srcPath string, data []byte) error {
	icon := etree.NewDocument()
	if err := icon.ReadFromBytes(data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryTransform, "parse icon").
			WithContext("path", srcPath).
			Build()
	}
	root := icon.Root()
	if root == nil || root.Tag != "svg" {
		return ferrors.TransformError("icon has no <svg> root").
			WithContext("path", srcPath).
			Build()
	}

	// Namespace declarations used inside the icon (xlink and friends) move up
	// to the sprite root.
	for _, a := range root.Attr {
		if a.Space == "xmlns" && sprite.SelectAttr(a.FullKey()) == nil {
			sprite.CreateAttr(a.FullKey(), a.Value)
		}
	}

	sym := sprite.CreateElement("symbol")
	sym.CreateAttr("id", id)
	for _, key := range symbolAttrs {
		if v := root.SelectAttrValue(key, ""); v != "" {
			sym.CreateAttr(key, v)
		}
	}
	for _, tok := range append([]etree.Token(nil), root.Child...) {
		sym.AddChild(tok)
	}
	return nil
}
