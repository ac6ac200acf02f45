package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewGeneratesUniqueIDs(t *testing.T) {
	a := New("1.0.0")
	b := New("1.0.0")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "1.0.0", a.Version)
}
