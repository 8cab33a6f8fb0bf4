package models

import "time"

// DifficultyTier classifies how hard a target prompt is to reconstruct.
// Tiers are assigned offline by the corpus analyzer; the live service only
// consumes them.
type DifficultyTier string

const (
	DifficultyEasy   DifficultyTier = "easy"
	DifficultyMedium DifficultyTier = "medium"
	DifficultyHard   DifficultyTier = "hard"
)

// Multiplier returns the leaderboard scaling factor for the tier.
func (d DifficultyTier) Multiplier() float64 {
	switch d {
	case DifficultyMedium:
		return 1.2
	case DifficultyHard:
		return 1.5
	default:
		return 1.0
	}
}

// DifficultyMeta carries the offline analyzer's per-prompt measurements.
// The round controller passes it through untouched.
type DifficultyMeta struct {
	WordCount           int     `json:"wordCount"`
	NamedEntityCount    int     `json:"namedEntityCount"`
	DifficultyScore     float64 `json:"difficultyScore"`
	HasArtStyle         bool    `json:"hasArtStyle"`
	HasAbstractConcepts bool    `json:"hasAbstractConcepts"`
}

// Challenge is one candidate (image, target prompt) pair from the corpus.
type Challenge struct {
	TargetText string         `json:"targetText"`
	ImagePath  string         `json:"imagePath"`
	Difficulty DifficultyTier `json:"difficulty"`
	Meta       DifficultyMeta `json:"meta"`
}

// Submission is a player's current guess for a round. A newer submission by
// the same player replaces the older one until the round ends.
type Submission struct {
	RoundID     string    `json:"roundId"`
	PlayerName  string    `json:"playerName"`
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Bonus is one scoring extra awarded on top of the accuracy score.
type Bonus struct {
	Kind   string `json:"kind"`
	Points int    `json:"points"`
	Detail string `json:"detail,omitempty"`
}

// Result is the immutable scored outcome of one player's round.
type Result struct {
	RoundID           string    `json:"roundId"`
	PlayerName        string    `json:"playerName"`
	Text              string    `json:"text"`
	AccuracyScore     int       `json:"accuracyScore"`
	LeaderboardPoints int       `json:"leaderboardPoints"`
	MatchedWords      []string  `json:"matchedWords"`
	MissedWords       []string  `json:"missedWords"`
	Bonuses           []Bonus   `json:"bonuses,omitempty"`
	Explanation       string    `json:"explanation"`
	SubmittedAt       time.Time `json:"submittedAt"`
}

// RoundRecord is the persisted shape of a round for the record store.
type RoundRecord struct {
	ID           string         `json:"id"`
	RoomCode     string         `json:"roomCode"`
	TargetText   string         `json:"targetText"`
	ImagePath    string         `json:"imagePath"`
	TimeLimitSec int            `json:"timeLimit"`
	Difficulty   DifficultyTier `json:"difficulty"`
	CreatedAt    time.Time      `json:"createdAt"`
	ClosedAt     *time.Time     `json:"closedAt,omitempty"`
}
