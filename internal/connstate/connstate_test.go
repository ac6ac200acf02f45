package connstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultDisconnected(t *testing.T) {
	s := New()
	assert.False(t, s.Connected())
}

func TestSetConnected(t *testing.T) {
	s := New()
	s.SetConnected(true)
	assert.True(t, s.Connected())
	s.SetConnected(false)
	assert.False(t, s.Connected())
}
