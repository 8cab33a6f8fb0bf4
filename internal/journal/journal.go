// Package journal streams finished-round records into Redis: a list queue
// consumed by offline history tooling, and a per-room sorted set mirroring
// the live standings for leaderboard reads.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/promptduel/server/internal/models"
)

// DefaultQueueName is the Redis list that round records are pushed onto.
const DefaultQueueName = "promptduel_rounds"

// RoundRecord is the queue message for one finished round.
type RoundRecord struct {
	RoomCode   string          `json:"room_code"`
	RoundID    string          `json:"round_id"`
	Results    []models.Result `json:"results"`
	Cumulative map[string]int  `json:"cumulative"`
	Timestamp  int64           `json:"timestamp"`
}

// Redis is the production journal.
type Redis struct {
	rdb   *redis.Client
	queue string
}

// Connect dials Redis at addr and verifies the connection.
func Connect(addr string, db int) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis at %s: %w", addr, err)
	}
	return New(rdb, DefaultQueueName), nil
}

// New wraps an existing client; tests inject a miniredis-backed one.
func New(rdb *redis.Client, queue string) *Redis {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Redis{rdb: rdb, queue: queue}
}

func (j *Redis) Close() error {
	return j.rdb.Close()
}

func leaderboardKey(roomCode string) string {
	return "leaderboard:" + roomCode
}

// RoundEnded pushes the round record onto the queue and overwrites the
// room's leaderboard set with the cumulative standings.
func (j *Redis) RoundEnded(ctx context.Context, roomCode, roundID string, results []models.Result, cumulative map[string]int) error {
	data, err := json.Marshal(RoundRecord{
		RoomCode:   roomCode,
		RoundID:    roundID,
		Results:    results,
		Cumulative: cumulative,
		Timestamp:  time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal round record: %w", err)
	}
	if err := j.rdb.RPush(ctx, j.queue, data).Err(); err != nil {
		return fmt.Errorf("rpush round record: %w", err)
	}

	members := make([]redis.Z, 0, len(cumulative))
	for name, pts := range cumulative {
		members = append(members, redis.Z{Score: float64(pts), Member: name})
	}
	if len(members) == 0 {
		return nil
	}
	if err := j.rdb.ZAdd(ctx, leaderboardKey(roomCode), members...).Err(); err != nil {
		return fmt.Errorf("zadd leaderboard: %w", err)
	}
	return nil
}

// TopScores reads the top n standings of a room, best first.
func (j *Redis) TopScores(ctx context.Context, roomCode string, n int) ([]models.RankingEntry, error) {
	zs, err := j.rdb.ZRevRangeWithScores(ctx, leaderboardKey(roomCode), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	out := make([]models.RankingEntry, 0, len(zs))
	for _, z := range zs {
		name, _ := z.Member.(string)
		out = append(out, models.RankingEntry{PlayerName: name, Score: int(z.Score)})
	}
	return out, nil
}
