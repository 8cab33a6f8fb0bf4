package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptduel/server/internal/models"
)

// Postgres is the production Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and verifies the connection.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// EnsureSchema creates the tables on startup if they do not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS rooms (
    code            TEXT PRIMARY KEY,
    rounds          INT NOT NULL,
    time_limit_sec  INT NOT NULL,
    max_players     INT NOT NULL,
    character_limit INT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS players (
    id         TEXT PRIMARY KEY,
    room_code  TEXT NOT NULL,
    name       TEXT NOT NULL,
    joined_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    left_at    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS rounds (
    id             TEXT PRIMARY KEY,
    room_code      TEXT NOT NULL,
    target_text    TEXT NOT NULL,
    image_path     TEXT NOT NULL,
    time_limit_sec INT NOT NULL,
    difficulty     TEXT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL,
    closed_at      TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS submissions (
    round_id     TEXT NOT NULL,
    player_name  TEXT NOT NULL,
    text         TEXT NOT NULL,
    submitted_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (round_id, player_name)
);

CREATE TABLE IF NOT EXISTS results (
    round_id           TEXT NOT NULL,
    player_name        TEXT NOT NULL,
    text               TEXT NOT NULL,
    accuracy_score     INT NOT NULL,
    leaderboard_points INT NOT NULL,
    explanation        TEXT NOT NULL,
    submitted_at       TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (round_id, player_name)
);`
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) CreateRoom(ctx context.Context, code string, s models.RoomSettings) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO rooms (code, rounds, time_limit_sec, max_players, character_limit)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			rounds = EXCLUDED.rounds,
			time_limit_sec = EXCLUDED.time_limit_sec,
			max_players = EXCLUDED.max_players,
			character_limit = EXCLUDED.character_limit`,
		code, s.Rounds, s.TimeLimitSec, s.MaxPlayers, s.CharacterLimit)
	return err
}

func (p *Postgres) DeleteRoom(ctx context.Context, code string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM rooms WHERE code = $1`, code)
	return err
}

func (p *Postgres) AddPlayer(ctx context.Context, roomCode, playerID, name string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO players (id, room_code, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`,
		playerID, roomCode, name)
	return err
}

func (p *Postgres) RemovePlayer(ctx context.Context, roomCode, playerID string) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE players SET left_at = now()
		WHERE id = $1 AND room_code = $2 AND left_at IS NULL`,
		playerID, roomCode)
	return err
}

func (p *Postgres) CreateRound(ctx context.Context, rec models.RoundRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO rounds (id, room_code, target_text, image_path, time_limit_sec, difficulty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.RoomCode, rec.TargetText, rec.ImagePath, rec.TimeLimitSec, string(rec.Difficulty), rec.CreatedAt)
	return err
}

// CloseRound stamps closed_at once; the NULL guard makes replays harmless.
func (p *Postgres) CloseRound(ctx context.Context, roundID string, closedAt time.Time) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE rounds SET closed_at = $2
		WHERE id = $1 AND closed_at IS NULL`,
		roundID, closedAt)
	return err
}

func (p *Postgres) SaveSubmission(ctx context.Context, sub models.Submission) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO submissions (round_id, player_name, text, submitted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (round_id, player_name) DO UPDATE SET
			text = EXCLUDED.text,
			submitted_at = EXCLUDED.submitted_at`,
		sub.RoundID, sub.PlayerName, sub.Text, sub.SubmittedAt)
	return err
}

func (p *Postgres) DeleteSubmission(ctx context.Context, roundID, playerName string) error {
	_, err := p.pool.Exec(ctx, `
		DELETE FROM submissions WHERE round_id = $1 AND player_name = $2`,
		roundID, playerName)
	return err
}

func (p *Postgres) SaveResult(ctx context.Context, res models.Result) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO results (round_id, player_name, text, accuracy_score, leaderboard_points, explanation, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (round_id, player_name) DO NOTHING`,
		res.RoundID, res.PlayerName, res.Text, res.AccuracyScore, res.LeaderboardPoints, res.Explanation, res.SubmittedAt)
	return err
}
