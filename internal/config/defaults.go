package config

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config)
	Domain() string
}

// Defaults reproduce the conventional layout:
//
//	source/less/style.less   -> build/css/style.min.css (+ .map)
//	source/*.html            -> build/*.html
//	source/js/script.js      -> build/js/script.js
//	source/img/**/*.{jpg,png} -> build/img/** (+ .webp siblings)
//	source/img/icons/*.svg   -> build/img/sprite.svg
//	source/fonts, *.ico      -> build/fonts, build/favicon.ico
const (
	DefaultSource      = "source"
	DefaultOutput      = "build"
	DefaultHost        = "localhost"
	DefaultPort        = 3000
	DefaultJPEGQuality = 75
)

var defaultRasterPatterns = []string{"img/**/*.{jpg,png}"}

type layoutDefaults struct{}

func (layoutDefaults) Domain() string { return "layout" }

func (layoutDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	if cfg.Output == "" {
		cfg.Output = DefaultOutput
	}
}

type stylesDefaults struct{}

func (stylesDefaults) Domain() string { return "styles" }

func (stylesDefaults) ApplyDefaults(cfg *Config) {
	s := &cfg.Styles
	if s.Entry == "" {
		s.Entry = "less/style.less"
	}
	if s.Output == "" {
		s.Output = "css/style.min.css"
	}
	if len(s.Targets) == 0 {
		s.Targets = []string{"chrome80", "firefox78", "safari12", "edge80"}
	}
}

type markupDefaults struct{}

func (markupDefaults) Domain() string { return "markup" }

func (markupDefaults) ApplyDefaults(cfg *Config) {
	if len(cfg.Markup.Patterns) == 0 {
		cfg.Markup.Patterns = []string{"*.html"}
	}
	if cfg.Markup.Output == "" {
		cfg.Markup.Output = "."
	}
}

type scriptsDefaults struct{}

func (scriptsDefaults) Domain() string { return "scripts" }

func (scriptsDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Scripts.Entry == "" {
		cfg.Scripts.Entry = "js/script.js"
	}
	if cfg.Scripts.Output == "" {
		cfg.Scripts.Output = "js"
	}
}

type imageDefaults struct{}

func (imageDefaults) Domain() string { return "images" }

func (imageDefaults) ApplyDefaults(cfg *Config) {
	im := &cfg.Images
	if len(im.Patterns) == 0 {
		im.Patterns = append([]string(nil), defaultRasterPatterns...)
	}
	if im.Output == "" {
		im.Output = "img"
	}
	if im.JPEGQuality <= 0 || im.JPEGQuality > 100 {
		im.JPEGQuality = DefaultJPEGQuality
	}
	if im.PNGCompression == "" {
		im.PNGCompression = "best"
	}
	if im.Workers < 0 {
		im.Workers = 0
	}
	if len(cfg.WebP.Patterns) == 0 {
		cfg.WebP.Patterns = append([]string(nil), im.Patterns...)
	}
	if cfg.WebP.Output == "" {
		cfg.WebP.Output = im.Output
	}
}

type vectorDefaults struct{}

func (vectorDefaults) Domain() string { return "svg" }

func (vectorDefaults) ApplyDefaults(cfg *Config) {
	if len(cfg.SVG.Patterns) == 0 {
		cfg.SVG.Patterns = []string{
			"img/catalog/*.svg",
			"img/form/*.svg",
			"img/index/*.svg",
			"img/favicons/*.svg",
		}
		if len(cfg.SVG.Exclude) == 0 {
			cfg.SVG.Exclude = []string{"img/icons/*.svg"}
		}
	}
	if cfg.SVG.Output == "" {
		cfg.SVG.Output = "img"
	}
	if len(cfg.Sprite.Patterns) == 0 {
		cfg.Sprite.Patterns = []string{"img/icons/*.svg"}
	}
	if cfg.Sprite.Output == "" {
		cfg.Sprite.Output = "img/sprite.svg"
	}
}

type copyDefaults struct{}

func (copyDefaults) Domain() string { return "copy" }

func (copyDefaults) ApplyDefaults(cfg *Config) {
	if len(cfg.Copy.Patterns) == 0 {
		cfg.Copy.Patterns = []string{
			"fonts/lato/*.{woff2,woff}",
			"fonts/oswald/*.{woff2,woff}",
			"*.ico",
		}
	}
	if cfg.Copy.Base == "" {
		cfg.Copy.Base = "."
	}
	if cfg.Copy.Output == "" {
		cfg.Copy.Output = "."
	}
}

type serverDefaults struct{}

func (serverDefaults) Domain() string { return "server" }

func (serverDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
}

type watchDefaults struct{}

func (watchDefaults) Domain() string { return "watch" }

func (watchDefaults) ApplyDefaults(cfg *Config) {
	if len(cfg.Watch.Rules) > 0 {
		return
	}
	cfg.Watch.Rules = []WatchRule{
		{Name: "styles", Patterns: []string{"less/**/*.less"}, Tasks: []string{"styles"}, Inject: true},
		{Name: "html", Patterns: []string{"*.html"}, Tasks: []string{"html"}, Reload: true},
		{Name: "scripts", Patterns: []string{"js/script.js"}, Tasks: []string{"scripts"}},
	}
}

var defaultAppliers = []DefaultApplier{
	layoutDefaults{},
	stylesDefaults{},
	markupDefaults{},
	scriptsDefaults{},
	imageDefaults{},
	vectorDefaults{},
	copyDefaults{},
	serverDefaults{},
	watchDefaults{},
}

// ApplyDefaults fills every unset field with the conventional layout.
func ApplyDefaults(cfg *Config) {
	for _, a := range defaultAppliers {
		a.ApplyDefaults(cfg)
	}
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
