package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorWindowRate(t *testing.T) {
	w := NewErrorWindow(4)

	assert.Equal(t, float64(0), w.Push(false))
	assert.Equal(t, float64(50), w.Push(true))
	assert.Equal(t, float64(100.0/3), w.Push(false))
	assert.Equal(t, float64(50), w.Push(true))
}

func TestErrorWindowEvictsOldest(t *testing.T) {
	w := NewErrorWindow(2)

	w.Push(true)
	rate := w.Push(false)
	assert.Equal(t, float64(50), rate)

	// Evicts the leading "true", so the window is now [false, false].
	rate = w.Push(false)
	assert.Equal(t, float64(0), rate)
}

func TestErrorWindowDefaultSize(t *testing.T) {
	w := NewErrorWindow(0)
	assert.Equal(t, 20, w.size)
}
