package models

import (
	"time"

	"github.com/coder/websocket"
)

// Player is one named participant in a room. The ID is assigned at join time
// and is stable for the lifetime of the connection; names are unique within a
// room (case-insensitive).
type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Connected bool      `json:"connected"`
	JoinedAt  time.Time `json:"joinedAt"`

	Conn *websocket.Conn `json:"-"`
}
