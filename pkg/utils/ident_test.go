package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUUID(t *testing.T) {
	assert.True(t, IsUUID("f47ac10b-58cc-0372-8567-0e02b2c3d479"))
	assert.True(t, IsUUID(NewID()))
	assert.False(t, IsUUID(""))
	assert.False(t, IsUUID("not-a-uuid"))
	assert.False(t, IsUUID("f47ac10b-58cc-0372-8567"))
}

func TestNewIDUnique(t *testing.T) {
	a := NewID()
	b := NewID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
