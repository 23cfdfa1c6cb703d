package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectProfiles(t *testing.T) {
	all := []Profile{
		{ID: "wasm-browser", Target: "wasm32-unknown-unknown"},
		{ID: "native", Target: "x86_64-unknown-linux-gnu"},
		{ID: "wasm-node", Target: "wasm32-unknown-unknown"},
	}

	t.Run("empty request selects all in order", func(t *testing.T) {
		selected, err := SelectProfiles(all, nil)
		require.NoError(t, err)
		assert.Equal(t, all, selected)
	})

	t.Run("subset preserves configured order", func(t *testing.T) {
		selected, err := SelectProfiles(all, []string{"wasm-node", "wasm-browser"})
		require.NoError(t, err)
		require.Len(t, selected, 2)
		assert.Equal(t, "wasm-browser", selected[0].ID)
		assert.Equal(t, "wasm-node", selected[1].ID)
	})

	t.Run("unknown id fails", func(t *testing.T) {
		_, err := SelectProfiles(all, []string{"native", "does-not-exist"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConfig))
		assert.Contains(t, err.Error(), "does-not-exist")
	})

	t.Run("empty configured list with request fails", func(t *testing.T) {
		_, err := SelectProfiles(nil, []string{"native"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConfig))
	})
}
