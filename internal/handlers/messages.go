package handlers

import (
	"github.com/promptduel/server/internal/game"
	"github.com/promptduel/server/internal/models"
)

// clientMessage is the single inbound WebSocket message shape. Type selects
// the action; the other fields are populated per action.
type clientMessage struct {
	Type string `json:"type"`

	// join-room
	RoomCode   string `json:"roomCode,omitempty"`
	PlayerName string `json:"playerName,omitempty"`

	// submit-prompt / unsubmit-prompt
	RoundID string `json:"roundId,omitempty"`
	Text    string `json:"text,omitempty"`

	// start-game
	Settings *models.RoomSettings `json:"settings,omitempty"`
	Force    bool                 `json:"force,omitempty"`
}

const (
	msgJoinRoom       = "join-room"
	msgLeaveRoom      = "leave-room"
	msgStartGame      = "start-game"
	msgSubmitPrompt   = "submit-prompt"
	msgUnsubmitPrompt = "unsubmit-prompt"
	msgNextRound      = "next-round"
	msgPing           = "ping"
)

// envelope wraps every outbound room event with its type tag.
type envelope struct {
	Type game.EventType `json:"type"`
	Data game.Event     `json:"data"`
}

// joinedMessage confirms a successful join to the joining connection only.
type joinedMessage struct {
	Type     string              `json:"type"`
	PlayerID string              `json:"playerId"`
	RoomCode string              `json:"roomCode"`
	Phase    models.Phase        `json:"phase"`
	Players  []game.RosterEntry  `json:"players"`
	Settings models.RoomSettings `json:"settings"`
}

// errorMessage is sent to a single connection when its action fails.
type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
