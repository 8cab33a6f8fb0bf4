package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptduel/server/internal/models"
)

func TestRegistryAddGetRemove(t *testing.T) {
	reg := NewRegistry()
	room := NewRoom("ABC123", models.DefaultRoomSettings())

	require.NoError(t, reg.Add(room))
	assert.Equal(t, 1, reg.Len())

	got, ok := reg.Get("ABC123")
	require.True(t, ok)
	assert.Same(t, room, got)

	_, ok = reg.Get("NOPE00")
	assert.False(t, ok)

	assert.ErrorIs(t, reg.Add(NewRoom("ABC123", models.DefaultRoomSettings())), ErrRoomExists)

	reg.Remove("ABC123")
	_, ok = reg.Get("ABC123")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())
}

func TestRoomCodeShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		code := NewRoomCode()
		assert.True(t, ValidRoomCode(code), "generated code %q must be valid", code)
	}
	assert.False(t, ValidRoomCode("abc123"))
	assert.False(t, ValidRoomCode("ABC12"))
	assert.False(t, ValidRoomCode("ABC12!"))
}
