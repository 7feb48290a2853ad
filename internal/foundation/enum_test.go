package foundation

import (
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

func TestEnumParse(t *testing.T) {
	e := NewEnum("level", map[string]int{"Low": 1, "high": 3})

	v, err := e.Parse("  LOW ")
	require.NoError(t, err)
	require.Equal(t, 1, v)
	require.True(t, e.Has("High"))
	require.Equal(t, []string{"high", "low"}, e.Values())

	_, err = e.Parse("medium")
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	allowed, _ := ce.Context().GetString("allowed")
	require.Equal(t, "high,low", allowed)
}
