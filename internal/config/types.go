package config

import (
	"path/filepath"
	"time"
)

// Config represents the asset pipeline configuration. Source patterns are
// relative to Source; output locations are relative to Output.
type Config struct {
	Source  string        `yaml:"source"`
	Output  string        `yaml:"output"`
	Styles  StylesConfig  `yaml:"styles"`
	Markup  MarkupConfig  `yaml:"markup"`
	Scripts ScriptsConfig `yaml:"scripts"`
	Images  ImagesConfig  `yaml:"images"`
	WebP    WebPConfig    `yaml:"webp"`
	SVG     SVGConfig     `yaml:"svg"`
	Sprite  SpriteConfig  `yaml:"sprite"`
	Copy    CopyConfig    `yaml:"copy"`
	Server  ServerConfig  `yaml:"server"`
	Watch   WatchConfig   `yaml:"watch"`
}

// StylesConfig configures the stylesheet compiler.
type StylesConfig struct {
	Entry     string   `yaml:"entry"`
	Output    string   `yaml:"output"`
	Sourcemap *bool    `yaml:"sourcemap,omitempty"`
	Targets   []string `yaml:"targets,omitempty"` // browser engines driving vendor prefixes, e.g. "safari11"
}

// SourcemapEnabled reports whether a linked sourcemap is written next to the stylesheet.
func (s StylesConfig) SourcemapEnabled() bool { return s.Sourcemap == nil || *s.Sourcemap }

// MarkupConfig configures HTML minification.
type MarkupConfig struct {
	Patterns    []string `yaml:"patterns"`
	Output      string   `yaml:"output"`
	SpriteCheck *bool    `yaml:"sprite_check,omitempty"`
}

// SpriteCheckEnabled reports whether sprite <use> references are verified after minification.
func (m MarkupConfig) SpriteCheckEnabled() bool { return m.SpriteCheck == nil || *m.SpriteCheck }

// ScriptsConfig configures script minification.
type ScriptsConfig struct {
	Entry  string `yaml:"entry"`
	Output string `yaml:"output"`
	Target string `yaml:"target,omitempty"` // esbuild language target, e.g. "es2017"
}

// ImagesConfig configures raster optimization (build) and raster copying (dev).
type ImagesConfig struct {
	Patterns       []string `yaml:"patterns"`
	Output         string   `yaml:"output"`
	JPEGQuality    int      `yaml:"jpeg_quality"`
	PNGCompression string   `yaml:"png_compression"` // default|none|fast|best
	Workers        int      `yaml:"workers"`         // 0 means one per CPU
}

// WebPConfig configures modern-format sibling generation.
type WebPConfig struct {
	Patterns []string `yaml:"patterns"`
	Output   string   `yaml:"output"`
}

// SVGConfig configures standalone vector minification.
type SVGConfig struct {
	Patterns []string `yaml:"patterns"`
	Exclude  []string `yaml:"exclude,omitempty"`
	Output   string   `yaml:"output"`
}

// SpriteConfig configures the icon sprite sheet.
type SpriteConfig struct {
	Patterns []string `yaml:"patterns"`
	Output   string   `yaml:"output"`
}

// CopyConfig configures passthrough assets. Base is relative to Source and is
// the root that relative output paths are computed from.
type CopyConfig struct {
	Patterns []string `yaml:"patterns"`
	Base     string   `yaml:"base"`
	Output   string   `yaml:"output"`
}

// ServerConfig configures the dev server.
type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	CORS       *bool  `yaml:"cors,omitempty"`
	LiveReload *bool  `yaml:"live_reload,omitempty"`
	Metrics    bool   `yaml:"metrics"`
}

func (s ServerConfig) CORSEnabled() bool       { return s.CORS == nil || *s.CORS }
func (s ServerConfig) LiveReloadEnabled() bool { return s.LiveReload == nil || *s.LiveReload }

// WatchConfig configures dev-mode rebuild rules.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce,omitempty"`
	Rules    []WatchRule   `yaml:"rules"`
}

// WatchRule maps changed source files to the stages re-run for them.
type WatchRule struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
	Tasks    []string `yaml:"tasks"`
	Reload   bool     `yaml:"reload"` // full page reload after a successful run
	Inject   bool     `yaml:"inject"` // stylesheet hot swap after a successful run
}

// SourcePath joins rel onto the source directory.
func (c *Config) SourcePath(rel string) string { return filepath.Join(c.Source, rel) }

// OutputPath joins rel onto the output directory.
func (c *Config) OutputPath(rel string) string { return filepath.Join(c.Output, rel) }

// BoolPtr is a helper for optional boolean fields.
func BoolPtr(b bool) *bool { return &b }
