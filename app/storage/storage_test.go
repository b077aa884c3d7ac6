package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	m := NewMemory()
	_, ok, err := m.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set("k", "v"))
	require.NoError(t, m.Set("k", "v2"))
	val, ok, err := m.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", val)
	assert.Equal(t, []string{"k"}, m.Keys())

	assert.ErrorIs(t, m.Set("", "v"), ErrInvalidKey)
	assert.Equal(t, "memory", m.String())
}
