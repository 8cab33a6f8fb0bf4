package models

// Phase describes where a room currently is in its game lifecycle.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

// MaxPlayers is the hard per-room roster cap.
const MaxPlayers = 8

// RoomSettings are the per-game knobs chosen by the host at game start.
type RoomSettings struct {
	Rounds         int `json:"rounds"`
	TimeLimitSec   int `json:"timeLimit"`
	MaxPlayers     int `json:"maxPlayers"`
	CharacterLimit int `json:"characterLimit"`
}

// DefaultRoomSettings mirrors the defaults a fresh room starts with.
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		Rounds:         3,
		TimeLimitSec:   60,
		MaxPlayers:     MaxPlayers,
		CharacterLimit: 100,
	}
}

// Normalize fills zero-valued fields with defaults and clamps the roster cap.
func (s RoomSettings) Normalize() RoomSettings {
	def := DefaultRoomSettings()
	if s.Rounds <= 0 {
		s.Rounds = def.Rounds
	}
	if s.TimeLimitSec <= 0 {
		s.TimeLimitSec = def.TimeLimitSec
	}
	if s.MaxPlayers <= 0 || s.MaxPlayers > MaxPlayers {
		s.MaxPlayers = MaxPlayers
	}
	if s.CharacterLimit <= 0 {
		s.CharacterLimit = def.CharacterLimit
	}
	return s
}

// RankingEntry is one row of a cumulative standings list.
type RankingEntry struct {
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
}
