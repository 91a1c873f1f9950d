package affiliate

import (
	"testing"

	"github.com/redakta/backend/internal/domain/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Run("registers and resolves plugins", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(func() source.Plugin { return NewAmazonPlugin() }))
		require.NoError(t, r.Register(func() source.Plugin { return NewShareASalePlugin() }))

		p, err := r.Resolve(AmazonSlug)
		require.NoError(t, err)
		assert.Equal(t, AmazonSlug, p.Slug())

		assert.Equal(t, []string{AmazonSlug, ShareASaleSlug}, r.List())
	})

	t.Run("rejects duplicate registration", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(func() source.Plugin { return NewAmazonPlugin() }))

		err := r.Register(func() source.Plugin { return NewAmazonPlugin() })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("unknown slug resolves to domain error", func(t *testing.T) {
		r := NewRegistry()

		_, err := r.Resolve("awin")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "awin")
	})

	t.Run("hands out fresh instances per resolution", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(func() source.Plugin { return NewAmazonPlugin() }))

		a, err := r.Resolve(AmazonSlug)
		require.NoError(t, err)
		b, err := r.Resolve(AmazonSlug)
		require.NoError(t, err)

		assert.NotSame(t, a, b)
	})
}
