package game

import "errors"

// Sentinel errors surfaced to callers. Handlers translate these into
// user-facing messages; anything not listed here is treated as internal and
// reported generically.
var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoundNotFound = errors.New("round not found")

	ErrInvalidName       = errors.New("player name must be 1-20 characters")
	ErrInvalidRoomCode   = errors.New("room code must be 6 letters or digits")
	ErrInvalidSubmission = errors.New("prompt text length out of range")

	ErrRoomExists = errors.New("room code already exists")
	ErrNameTaken  = errors.New("player name already taken")
	ErrRoomFull   = errors.New("room is full")

	ErrNotEnoughPlayers  = errors.New("need at least 2 players to start")
	ErrGameInProgress    = errors.New("game already in progress")
	ErrWrongPhase        = errors.New("not allowed in the current phase")
	ErrNotHost           = errors.New("only the host may do that")
	ErrNoRoundsRemaining = errors.New("no rounds remaining")
	ErrRoundEnded        = errors.New("round already ended")
)

// UserFacing reports whether err carries a message safe to show players
// verbatim. Internal failures (persistence, dataset) are not user facing.
func UserFacing(err error) bool {
	for _, known := range []error{
		ErrRoomNotFound, ErrRoundNotFound, ErrInvalidName, ErrInvalidRoomCode,
		ErrInvalidSubmission, ErrRoomExists, ErrNameTaken, ErrRoomFull,
		ErrNotEnoughPlayers, ErrGameInProgress, ErrWrongPhase, ErrNotHost,
		ErrNoRoundsRemaining, ErrRoundEnded,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
