// Package foundation holds small generic helpers shared across packages.
package foundation

import (
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Enum maps case-insensitive configuration names onto values of T.
type Enum[T any] struct {
	name   string
	values map[string]T
}

// NewEnum creates an enum called name (used in error messages).
func NewEnum[T any](name string, values map[string]T) *Enum[T] {
	normalized := make(map[string]T, len(values))
	for k, v := range values {
		normalized[normalize(k)] = v
	}
	return &Enum[T]{name: name, values: normalized}
}

// Parse resolves raw, ignoring case and surrounding space. Unknown names
// yield a validation error listing the accepted ones.
func (e *Enum[T]) Parse(raw string) (T, error) {
	if v, ok := e.values[normalize(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, ferrors.ValidationError("unknown "+e.name).
		WithContext("value", raw).
		WithContext("allowed", strings.Join(e.Values(), ",")).
		Build()
}

// Has reports whether raw names a value.
func (e *Enum[T]) Has(raw string) bool {
	_, ok := e.values[normalize(raw)]
	return ok
}

// Values lists the accepted names, sorted.
func (e *Enum[T]) Values() []string {
	out := make([]string, 0, len(e.values))
	for k := range e.values {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
