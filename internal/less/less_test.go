package less

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestPreprocess_ImportsAndVariables(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "variables.less", "@brand: #ff6600;\n@gap: 10px;\n@font-path: \"../fonts\";\n")
	write(t, dir, "blocks/header.less", "// header block\n.header { color: @brand; padding: @gap; }\n")
	entry := write(t, dir, "style.less", `@import "variables";
@import "blocks/header.less";
@import (css) "normalize.css";
@gap: 20px; // later definition wins
@font-face { font-family: Lato; src: url("@{font-path}/lato.woff2"); }
@media (min-width: 768px) { .page { margin: @gap; } }
.logo { background: url(//cdn.example.com/logo.png); }
`)

	res, err := Preprocess(entry)
	require.NoError(t, err)
	require.Len(t, res.Files, 3)
	require.Equal(t, filepath.Join(dir, "style.less"), res.Files[0])

	css := res.CSS
	require.Contains(t, css, ".header {\n  color: #ff6600;\n  padding: 20px;\n}")
	require.Contains(t, css, "@media (min-width: 768px) {\n  .page {\n    margin: 20px;\n  }\n}")
	require.Contains(t, css, `src: url("../fonts/lato.woff2")`)
	require.Contains(t, css, `@import "normalize.css";`)
	require.NotContains(t, css, "(css)")
	require.Contains(t, css, "@media (min-width: 768px)")
	require.Contains(t, css, "@font-face")
	require.Contains(t, css, "url(//cdn.example.com/logo.png)")
	require.NotContains(t, css, "header block")
	require.NotContains(t, css, "later definition")
	require.NotContains(t, css, "@brand")
}

func TestPreprocess_ImportsOnce(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "mixins.less", ".shared { display: block; }\n")
	write(t, dir, "a.less", "@import \"mixins\";\n")
	entry := write(t, dir, "style.less", "@import \"mixins\";\n@import \"a\";\n")

	res, err := Preprocess(entry)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(res.CSS, ".shared"))
}

func TestPreprocess_CircularImport(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.less", "@import \"style\";\n")
	entry := write(t, dir, "style.less", "@import \"a\";\n")

	_, err := Preprocess(entry)
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryTransform))
	require.Contains(t, err.Error(), "circular")

	self := write(t, dir, "self.less", "@import \"self\";\n")
	_, err = Preprocess(self)
	require.Error(t, err)
}

func TestPreprocess_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Preprocess(filepath.Join(dir, "missing.less"))
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryFileSystem))

	entry := write(t, dir, "undefined.less", ".a { color: @nope; }\n")
	_, err = Preprocess(entry)
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryTransform))
	require.Contains(t, err.Error(), "@nope")

	entry = write(t, dir, "loop.less", "@a: @b;\n@b: @a;\n.x { width: @a; }\n")
	_, err = Preprocess(entry)
	require.Error(t, err)
	require.Contains(t, err.Error(), "recursive")
}

func TestEscapedValues(t *testing.T) {
	dir := t.TempDir()
	entry := write(t, dir, "style.less", "@tablet: ~\"(min-width: 768px)\";\n@media @tablet { .a { float: left; } }\n")

	res, err := Preprocess(entry)
	require.NoError(t, err)
	require.Contains(t, res.CSS, "@media (min-width: 768px) {")
}

func TestStripLineComments(t *testing.T) {
	src := "a { b: \"//keep\"; } // drop\n/* // block stays */ c: url(http://x/y);\n"
	out := StripLineComments(src)
	require.Equal(t, "a { b: \"//keep\"; } \n/* // block stays */ c: url(http://x/y);\n", out)
}

func TestPreprocess_NestingWithParentReferences(t *testing.T) {
	dir := t.TempDir()
	entry := write(t, dir, "style.less", `.page-header {
  color: #68b738;
  &__logo { display: flex; }
  &:hover, &.is-open { color: red; }
  .no-js & { display: none; }
  a { text-decoration: none; }
  @media (min-width: 768px) {
    padding: 10px;
    &__logo { display: block; }
  }
}
`)

	res, err := Preprocess(entry)
	require.NoError(t, err)
	css := res.CSS
	require.NotContains(t, css, "&")
	require.True(t, strings.HasPrefix(css, ".page-header {\n  color: #68b738;\n}\n"), "own declarations come first")
	require.Contains(t, css, ".page-header__logo {\n  display: flex;\n}")
	require.Contains(t, css, ".page-header:hover,\n.page-header.is-open {\n  color: red;\n}")
	require.Contains(t, css, ".no-js .page-header {\n  display: none;\n}")
	require.Contains(t, css, ".page-header a {\n  text-decoration: none;\n}")
	require.Contains(t, css, "@media (min-width: 768px) {\n  .page-header {\n    padding: 10px;\n  }\n  .page-header__logo {\n    display: block;\n  }\n}")
}

func TestPreprocess_ParameterlessMixins(t *testing.T) {
	dir := t.TempDir()
	entry := write(t, dir, "style.less", `.visually-hidden() { position: absolute; width: 1px; }
.clearfix { &::after { content: ""; display: table; } }
.a { .visually-hidden(); color: red; }
.b { .clearfix; }
.c { .visually-hidden() !important; }
`)

	res, err := Preprocess(entry)
	require.NoError(t, err)
	css := res.CSS
	require.NotContains(t, css, "visually-hidden")
	require.Contains(t, css, ".clearfix::after {")
	require.Contains(t, css, ".a {\n  position: absolute;\n  width: 1px;\n  color: red;\n}")
	require.Contains(t, css, ".b::after {\n  content: \"\";\n  display: table;\n}")
	require.Contains(t, css, ".c {\n  position: absolute !important;\n  width: 1px !important;\n}")
}

func TestPreprocess_Operations(t *testing.T) {
	dir := t.TempDir()
	entry := write(t, dir, "style.less", `@tablet: 768px;
@gap: 10px;
.b {
  width: @tablet / 2;
  margin: 0 -@gap;
  padding: @gap * 2 (@gap + 5px);
  left: (@tablet / 4);
  right: @gap - 4px;
  height: calc(100% - @gap);
  font: 12px/1.5 Arial;
  grid-area: 1 / 2 / 3 / 4;
  max-width: @tablet - 1em;
}
`)

	res, err := Preprocess(entry)
	require.NoError(t, err)
	for _, decl := range []string{
		"width: 384px;",
		"margin: 0 -10px;",
		"padding: 20px 15px;",
		"left: 192px;",
		"right: 6px;",
		"height: calc(100% - 10px);",
		"font: 12px/1.5 Arial;",
		"grid-area: 1 / 2 / 3 / 4;",
		"max-width: 768px - 1em;",
	} {
		require.Contains(t, res.CSS, decl)
	}
}

func TestPreprocess_UnsupportedConstructs(t *testing.T) {
	cases := map[string]string{
		"parametric call": ".x { .m(10px); }\n",
		"undefined mixin": ".x { .nope; }\n",
		"recursive mixin": ".a { .b; }\n.b { .a; }\n",
		"color function":  ".x { color: darken(#fff, 10%); }\n",
		"guard":           ".m() when (default()) { color: red; }\n",
		"unclosed block":  ".x { color: red;\n",
		"stray close":     ".x { color: red; } }\n",
		"empty selector":  "{ color: red; }\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			entry := write(t, t.TempDir(), "style.less", src)
			_, err := Preprocess(entry)
			require.Error(t, err)
			require.True(t, ferrors.HasCategory(err, ferrors.CategoryTransform))
		})
	}
}
