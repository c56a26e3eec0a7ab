package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := New[func() int]()

	require.NoError(t, r.Register("b", func() int { return 2 }))
	require.NoError(t, r.Register("a", func() int { return 1 }))
	assert.Error(t, r.Register("a", func() int { return 3 }), "duplicate name")
	assert.Error(t, r.Register("", func() int { return 0 }), "empty name")

	fn, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, 1, fn())

	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"b", "a"}, r.Names())
	assert.Equal(t, 2, r.Len())
	assert.True(t, r.Has("b"))
}

func TestRegistry_MustRegisterPanicsOnDuplicate(t *testing.T) {
	r := New[string]()
	r.MustRegister("x", "1")
	assert.Panics(t, func() { r.MustRegister("x", "2") })
}
