package less

import (
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
)

// Plugin loads .less files through Preprocess so esbuild sees plain CSS.
// Relative url() references resolve against the entry file's directory, which
// matches LESS without relative-urls rewriting.
func Plugin() api.Plugin {
	return api.Plugin{
		Name: "less",
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: `\.less$`}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				res, err := Preprocess(args.Path)
				if err != nil {
					return api.OnLoadResult{}, err
				}
				return api.OnLoadResult{
					Contents:   &res.CSS,
					ResolveDir: filepath.Dir(args.Path),
					Loader:     api.LoaderCSS,
					WatchFiles: res.Files,
				}, nil
			})
		},
	}
}
