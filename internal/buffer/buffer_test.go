package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushDropOldest(t *testing.T) {
	b := New(3)

	require.False(t, b.Push("a"))
	require.False(t, b.Push("b"))
	require.False(t, b.Push("c"))
	assert.Equal(t, 3, b.Len())

	dropped := b.Push("d")
	assert.True(t, dropped)
	assert.Equal(t, 3, b.Len())

	frames := b.Drain()
	assert.Equal(t, []string{"b", "c", "d"}, frames)
}

func TestDrainEmpty(t *testing.T) {
	b := New(3)
	assert.Nil(t, b.Drain())
	assert.Equal(t, 0, b.Len())
}

func TestDrainResetsBuffer(t *testing.T) {
	b := New(2)
	b.Push("x")
	b.Push("y")

	first := b.Drain()
	assert.Equal(t, []string{"x", "y"}, first)
	assert.Equal(t, 0, b.Len())

	b.Push("z")
	second := b.Drain()
	assert.Equal(t, []string{"z"}, second)
}

func TestNewDefaultsCapacity(t *testing.T) {
	b := New(0)
	for i := 0; i < 121; i++ {
		b.Push("f")
	}
	assert.Equal(t, 120, b.Len())
}
