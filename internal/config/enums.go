package config

import (
	"image/png"

	"git.home.luguber.info/inful/assetbuilder/internal/foundation"
)

// PNGCompression maps images.png_compression onto encoder levels.
var PNGCompression = foundation.NewEnum("png_compression", map[string]png.CompressionLevel{
	"default": png.DefaultCompression,
	"none":    png.NoCompression,
	"fast":    png.BestSpeed,
	"best":    png.BestCompression,
})
