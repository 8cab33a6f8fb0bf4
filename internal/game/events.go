package game

import (
	"github.com/promptduel/server/internal/models"
)

// EventType tags every outbound room event.
type EventType string

const (
	EventPlayerJoined      EventType = "player-joined"
	EventPlayerLeft        EventType = "player-left"
	EventRoundStarted      EventType = "round-started"
	EventPromptSubmitted   EventType = "prompt-submitted"
	EventPromptUnsubmitted EventType = "prompt-unsubmitted"
	EventRoundEnded        EventType = "round-ended"
	EventGameCompleted     EventType = "game-completed"
)

// Event is one outbound message for every connection subscribed to a room.
// Each payload is an explicit tagged type; the transport wraps it in an
// envelope carrying Kind().
type Event interface {
	Kind() EventType
}

// RosterEntry is the public view of one player in roster snapshots.
type RosterEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

type PlayerJoined struct {
	Player  RosterEntry   `json:"player"`
	Players []RosterEntry `json:"players"`
	Phase   models.Phase  `json:"phase"`
}

func (PlayerJoined) Kind() EventType { return EventPlayerJoined }

type PlayerLeft struct {
	PlayerID   string        `json:"playerId"`
	PlayerName string        `json:"playerName"`
	Players    []RosterEntry `json:"players"`
}

func (PlayerLeft) Kind() EventType { return EventPlayerLeft }

type RoundStarted struct {
	RoundID      string                `json:"roundId"`
	ImagePath    string                `json:"imagePath"`
	TimeLimitSec int                   `json:"timeLimit"`
	RoundNumber  int                   `json:"roundNumber"`
	TotalRounds  int                   `json:"totalRounds"`
	Difficulty   models.DifficultyTier `json:"difficulty"`
}

func (RoundStarted) Kind() EventType { return EventRoundStarted }

type PromptSubmitted struct {
	RoundID    string `json:"roundId"`
	PlayerName string `json:"playerName"`
}

func (PromptSubmitted) Kind() EventType { return EventPromptSubmitted }

type PromptUnsubmitted struct {
	RoundID    string `json:"roundId"`
	PlayerName string `json:"playerName"`
}

func (PromptUnsubmitted) Kind() EventType { return EventPromptUnsubmitted }

type RoundEnded struct {
	RoundID          string          `json:"roundId"`
	TargetText       string          `json:"targetText"`
	Results          []models.Result `json:"results"`
	CumulativeScores map[string]int  `json:"cumulativeScores"`
	RoundNumber      int             `json:"roundNumber"`
	TotalRounds      int             `json:"totalRounds"`
	IsLastRound      bool            `json:"isLastRound"`
}

func (RoundEnded) Kind() EventType { return EventRoundEnded }

type GameCompleted struct {
	FinalRankings []models.RankingEntry `json:"finalRankings"`
}

func (GameCompleted) Kind() EventType { return EventGameCompleted }

// BroadcastFunc fans an event out to every connection subscribed to the room.
// It must not be called while holding the room lock; the engine snapshots
// payloads under the lock and emits after releasing it.
type BroadcastFunc func(ev Event)
