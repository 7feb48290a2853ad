package config

import (
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// Validate checks the structural invariants the pipeline relies on. The output
// directory is wiped on every build, so it must never overlap the sources.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Source) == "" {
		return ferrors.ValidationError("source directory cannot be empty").Build()
	}
	if strings.TrimSpace(cfg.Output) == "" {
		return ferrors.ValidationError("output directory cannot be empty").Build()
	}
	if err := validateOutputPlacement(cfg.Source, cfg.Output); err != nil {
		return err
	}

	required := []struct{ field, value string }{
		{"styles.entry", cfg.Styles.Entry},
		{"styles.output", cfg.Styles.Output},
		{"scripts.entry", cfg.Scripts.Entry},
		{"scripts.output", cfg.Scripts.Output},
		{"sprite.output", cfg.Sprite.Output},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return ferrors.ValidationError("required field is empty").WithContext("field", r.field).Build()
		}
	}
	if filepath.IsAbs(cfg.Styles.Entry) || filepath.IsAbs(cfg.Scripts.Entry) {
		return ferrors.ValidationError("entry points must be relative to the source directory").Build()
	}

	if _, err := PNGCompression.Parse(cfg.Images.PNGCompression); err != nil {
		return err
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return ferrors.ValidationError("server port out of range").
			WithContext("port", cfg.Server.Port).
			Build()
	}
	if cfg.Watch.Debounce < 0 {
		return ferrors.ValidationError("watch debounce cannot be negative").Build()
	}

	seen := make(map[string]bool, len(cfg.Watch.Rules))
	for _, r := range cfg.Watch.Rules {
		if r.Name == "" {
			return ferrors.ValidationError("watch rule name cannot be empty").Build()
		}
		if seen[r.Name] {
			return ferrors.ValidationError("duplicate watch rule").WithContext("rule", r.Name).Build()
		}
		seen[r.Name] = true
		if len(r.Patterns) == 0 || len(r.Tasks) == 0 {
			return ferrors.ValidationError("watch rule needs patterns and tasks").WithContext("rule", r.Name).Build()
		}
	}
	return nil
}

func validateOutputPlacement(source, output string) error {
	src, err := filepath.Abs(source)
	if err != nil {
		return ferrors.ConfigError("resolve source directory").WithCause(err).Build()
	}
	out, err := filepath.Abs(output)
	if err != nil {
		return ferrors.ConfigError("resolve output directory").WithCause(err).Build()
	}
	if isWithin(src, out) || isWithin(out, src) {
		return ferrors.ValidationError("output directory must not overlap the source directory").
			WithContext("source", source).
			WithContext("output", output).
			Build()
	}
	return nil
}

// isWithin reports whether path equals root or lies below it.
func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
