package store

import (
	"context"
	"sync"
	"time"

	"github.com/promptduel/server/internal/models"
)

// Memory is an in-process Store for development and tests. Behavior mirrors
// the Postgres store, including the close-once round semantics.
type Memory struct {
	mu          sync.Mutex
	rooms       map[string]models.RoomSettings
	players     map[string]string // playerID -> roomCode
	rounds      map[string]models.RoundRecord
	submissions map[string]map[string]models.Submission // roundID -> playerName
	results     map[string][]models.Result              // roundID
}

func NewMemory() *Memory {
	return &Memory{
		rooms:       make(map[string]models.RoomSettings),
		players:     make(map[string]string),
		rounds:      make(map[string]models.RoundRecord),
		submissions: make(map[string]map[string]models.Submission),
		results:     make(map[string][]models.Result),
	}
}

func (m *Memory) CreateRoom(_ context.Context, code string, s models.RoomSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[code] = s
	return nil
}

func (m *Memory) DeleteRoom(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, code)
	return nil
}

func (m *Memory) AddPlayer(_ context.Context, roomCode, playerID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[playerID] = roomCode
	return nil
}

func (m *Memory) RemovePlayer(_ context.Context, _, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.players, playerID)
	return nil
}

func (m *Memory) CreateRound(_ context.Context, rec models.RoundRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rounds[rec.ID]; !ok {
		m.rounds[rec.ID] = rec
	}
	return nil
}

func (m *Memory) CloseRound(_ context.Context, roundID string, closedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rounds[roundID]
	if !ok || rec.ClosedAt != nil {
		return nil
	}
	at := closedAt
	rec.ClosedAt = &at
	m.rounds[roundID] = rec
	return nil
}

func (m *Memory) SaveSubmission(_ context.Context, sub models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byPlayer, ok := m.submissions[sub.RoundID]
	if !ok {
		byPlayer = make(map[string]models.Submission)
		m.submissions[sub.RoundID] = byPlayer
	}
	byPlayer[sub.PlayerName] = sub
	return nil
}

func (m *Memory) DeleteSubmission(_ context.Context, roundID, playerName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if byPlayer, ok := m.submissions[roundID]; ok {
		delete(byPlayer, playerName)
	}
	return nil
}

func (m *Memory) SaveResult(_ context.Context, res models.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[res.RoundID] = append(m.results[res.RoundID], res)
	return nil
}

// Round returns the stored record for tests.
func (m *Memory) Round(roundID string) (models.RoundRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rounds[roundID]
	return rec, ok
}

// Results returns the stored results of a round for tests.
func (m *Memory) Results(roundID string) []models.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Result, len(m.results[roundID]))
	copy(out, m.results[roundID])
	return out
}
