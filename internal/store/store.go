// Package store defines the durable record store behind the game engine.
// The engine writes through to it; in-memory room state stays authoritative
// and is never rebuilt from these tables at runtime.
package store

import (
	"context"
	"time"

	"github.com/promptduel/server/internal/models"
)

// Store persists rooms, players, rounds, submissions and results.
type Store interface {
	CreateRoom(ctx context.Context, code string, settings models.RoomSettings) error
	DeleteRoom(ctx context.Context, code string) error

	AddPlayer(ctx context.Context, roomCode, playerID, name string) error
	RemovePlayer(ctx context.Context, roomCode, playerID string) error

	CreateRound(ctx context.Context, rec models.RoundRecord) error
	// CloseRound stamps the round's closedAt exactly once; closing an already
	// closed round is a no-op.
	CloseRound(ctx context.Context, roundID string, closedAt time.Time) error

	SaveSubmission(ctx context.Context, sub models.Submission) error
	DeleteSubmission(ctx context.Context, roundID, playerName string) error

	SaveResult(ctx context.Context, res models.Result) error
}
