package game

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptduel/server/internal/models"
)

type stubSource struct {
	ch  models.Challenge
	err error
}

func (s stubSource) NextChallenge() (models.Challenge, error) { return s.ch, s.err }

// recorder captures emitted events; emits can come from timer goroutines.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) broadcast(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(kind EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind() == kind {
			n++
		}
	}
	return n
}

func (r *recorder) lastOf(kind EventType) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind() == kind {
			return r.events[i], true
		}
	}
	return nil, false
}

func testChallenge() models.Challenge {
	return models.Challenge{
		TargetText: "a red car on a road",
		ImagePath:  "images/red-car.png",
		Difficulty: models.DifficultyEasy,
	}
}

// newTestRoom runs round timers on a millisecond clock so timeout paths
// finish quickly.
func newTestRoom(t *testing.T, settings models.RoomSettings) (*Room, *recorder) {
	t.Helper()
	rec := &recorder{}
	r := NewRoom("TEST01", settings)
	r.TimeScale = time.Millisecond
	r.Challenge = stubSource{ch: testChallenge()}
	r.BroadcastFn = rec.broadcast
	return r, rec
}

func currentRoundID(t *testing.T, r *Room) string {
	t.Helper()
	r.Mu.Lock()
	defer r.Mu.Unlock()
	require.NotNil(t, r.CurrentRound, "expected a live round")
	return r.CurrentRound.ID
}

func phase(r *Room) models.Phase {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.Phase
}

func TestJoinAssignsHostAndRoster(t *testing.T) {
	r, rec := newTestRoom(t, models.DefaultRoomSettings())

	alice, err := r.Join("alice")
	require.NoError(t, err)
	bob, err := r.Join("bob")
	require.NoError(t, err)
	assert.NotEqual(t, alice.ID, bob.ID)

	ev, ok := rec.lastOf(EventPlayerJoined)
	require.True(t, ok)
	joined := ev.(PlayerJoined)
	require.Len(t, joined.Players, 2)
	assert.True(t, joined.Players[0].IsHost)
	assert.False(t, joined.Players[1].IsHost)
	assert.Equal(t, "alice", joined.Players[0].Name)
}

func TestJoinValidation(t *testing.T) {
	r, _ := newTestRoom(t, models.RoomSettings{MaxPlayers: 2})

	_, err := r.Join("   ")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = r.Join("this name is way way way too long")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = r.Join("alice")
	require.NoError(t, err)
	_, err = r.Join("ALICE")
	assert.ErrorIs(t, err, ErrNameTaken, "name uniqueness is case-insensitive")

	_, err = r.Join("bob")
	require.NoError(t, err)
	_, err = r.Join("carol")
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestStartGameRequiresHostAndQuorum(t *testing.T) {
	r, _ := newTestRoom(t, models.DefaultRoomSettings())
	host, _ := r.Join("alice")

	err := r.StartGame(host.ID, models.DefaultRoomSettings(), false)
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)

	guest, _ := r.Join("bob")
	err = r.StartGame(guest.ID, models.DefaultRoomSettings(), false)
	assert.ErrorIs(t, err, ErrNotHost)

	require.NoError(t, r.StartGame(host.ID, models.DefaultRoomSettings(), false))
	assert.Equal(t, models.PhasePlaying, phase(r))

	err = r.StartGame(host.ID, models.DefaultRoomSettings(), false)
	assert.ErrorIs(t, err, ErrGameInProgress)
}

func TestAllSubmittedEndsRoundEarly(t *testing.T) {
	settings := models.RoomSettings{Rounds: 3, TimeLimitSec: 600}
	r, rec := newTestRoom(t, settings)
	host, _ := r.Join("alice")
	r.Join("bob")

	require.NoError(t, r.StartGame(host.ID, settings, false))
	roundID := currentRoundID(t, r)

	require.NoError(t, r.Submit(roundID, "alice", "a red car on a road"))
	assert.Equal(t, models.PhasePlaying, phase(r), "round stays open until everyone submits")

	require.NoError(t, r.Submit(roundID, "bob", "blue bicycle"))
	assert.Equal(t, models.PhaseWaiting, phase(r), "last submission closes the round at once")
	assert.Equal(t, 1, rec.count(EventRoundEnded))

	ev, ok := rec.lastOf(EventRoundEnded)
	require.True(t, ok)
	ended := ev.(RoundEnded)
	assert.Equal(t, "a red car on a road", ended.TargetText)
	require.Len(t, ended.Results, 2)
	assert.Equal(t, "alice", ended.Results[0].PlayerName, "results sort by points descending")
	assert.Equal(t, 100, ended.Results[0].AccuracyScore)
	assert.False(t, ended.IsLastRound)
}

func TestTimeoutScoresMissingSubmissionAsZero(t *testing.T) {
	settings := models.RoomSettings{Rounds: 1, TimeLimitSec: 30}
	r, rec := newTestRoom(t, settings)
	host, _ := r.Join("alice")
	r.Join("bob")

	require.NoError(t, r.StartGame(host.ID, settings, false))
	roundID := currentRoundID(t, r)
	require.NoError(t, r.Submit(roundID, "alice", "a red car on a road"))

	require.Eventually(t, func() bool {
		return phase(r) != models.PhasePlaying
	}, time.Second, 2*time.Millisecond, "timer must close the round")

	require.Equal(t, 1, rec.count(EventRoundEnded))
	ev, _ := rec.lastOf(EventRoundEnded)
	ended := ev.(RoundEnded)
	require.Len(t, ended.Results, 2)

	var bob models.Result
	for _, res := range ended.Results {
		if res.PlayerName == "bob" {
			bob = res
		}
	}
	assert.Equal(t, 0, bob.AccuracyScore, "silent players score as an empty guess")
	assert.Equal(t, 0, bob.LeaderboardPoints)
	assert.Empty(t, bob.Text)
}

func TestRoundEndsExactlyOnceUnderRace(t *testing.T) {
	settings := models.RoomSettings{Rounds: 1, TimeLimitSec: 3}
	r, rec := newTestRoom(t, settings)
	host, _ := r.Join("alice")
	r.Join("bob")

	require.NoError(t, r.StartGame(host.ID, settings, false))
	roundID := currentRoundID(t, r)

	// Hammer every trigger at once: the armed timer, forged timeout calls,
	// and both players submitting.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.EndRoundByTimeout(roundID)
		}()
	}
	for _, name := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_ = r.Submit(roundID, name, "a red car")
		}(name)
	}
	wg.Wait()
	time.Sleep(20 * time.Millisecond) // let the real timer fire too

	assert.Equal(t, 1, rec.count(EventRoundEnded), "round must end exactly once")
	assert.Equal(t, 1, rec.count(EventGameCompleted))
}

func TestResubmitOverwritesAndUnsubmitReopens(t *testing.T) {
	settings := models.RoomSettings{Rounds: 1, TimeLimitSec: 600}
	r, rec := newTestRoom(t, settings)
	host, _ := r.Join("alice")
	r.Join("bob")

	require.NoError(t, r.StartGame(host.ID, settings, false))
	roundID := currentRoundID(t, r)

	require.NoError(t, r.Submit(roundID, "alice", "blue bicycle"))
	require.NoError(t, r.Unsubmit(roundID, "alice"))
	require.NoError(t, r.Submit(roundID, "bob", "something else"))
	assert.Equal(t, models.PhasePlaying, phase(r), "withdrawn guess keeps the round open")

	require.NoError(t, r.Submit(roundID, "alice", "a red car on a road"))
	assert.Equal(t, models.PhaseFinished, phase(r))

	ev, _ := rec.lastOf(EventRoundEnded)
	ended := ev.(RoundEnded)
	for _, res := range ended.Results {
		if res.PlayerName == "alice" {
			assert.Equal(t, "a red car on a road", res.Text, "latest submission wins")
		}
	}
}

func TestSubmitValidation(t *testing.T) {
	settings := models.RoomSettings{Rounds: 1, TimeLimitSec: 600, CharacterLimit: 10}
	r, _ := newTestRoom(t, settings)
	host, _ := r.Join("alice")
	r.Join("bob")
	require.NoError(t, r.StartGame(host.ID, settings, false))
	roundID := currentRoundID(t, r)

	assert.ErrorIs(t, r.Submit(roundID, "alice", "   "), ErrInvalidSubmission)
	assert.ErrorIs(t, r.Submit(roundID, "alice", "well over ten characters"), ErrInvalidSubmission)
	assert.ErrorIs(t, r.Submit("round_bogus", "alice", "hi"), ErrRoundNotFound)
	assert.ErrorIs(t, r.Submit(roundID, "mallory", "hi"), ErrRoomNotFound)

	require.NoError(t, r.Submit(roundID, "alice", "red car"))
	require.NoError(t, r.Submit(roundID, "bob", "blue"))
	// Round is over and detached now.
	assert.ErrorIs(t, r.Submit(roundID, "alice", "late"), ErrRoundNotFound)
}

func TestLastHoldoutLeavingEndsRound(t *testing.T) {
	settings := models.RoomSettings{Rounds: 1, TimeLimitSec: 600}
	r, rec := newTestRoom(t, settings)
	host, _ := r.Join("alice")
	r.Join("bob")
	carol, _ := r.Join("carol")

	require.NoError(t, r.StartGame(host.ID, settings, false))
	roundID := currentRoundID(t, r)
	require.NoError(t, r.Submit(roundID, "alice", "a red car"))
	require.NoError(t, r.Submit(roundID, "bob", "a road"))

	empty := r.Leave(carol.ID)
	assert.False(t, empty)
	assert.Equal(t, 1, rec.count(EventRoundEnded), "departure of the only holdout closes the round")

	ev, _ := rec.lastOf(EventRoundEnded)
	ended := ev.(RoundEnded)
	assert.Len(t, ended.Results, 2, "departed players are not scored")
}

func TestLastPlayerLeavingEmptiesRoom(t *testing.T) {
	settings := models.RoomSettings{Rounds: 1, TimeLimitSec: 600}
	r, _ := newTestRoom(t, settings)
	host, _ := r.Join("alice")
	bob, _ := r.Join("bob")
	require.NoError(t, r.StartGame(host.ID, settings, false))

	assert.False(t, r.Leave(bob.ID))
	assert.True(t, r.Leave(host.ID), "room reports empty so the registry can drop it")
	assert.False(t, r.Leave(host.ID), "leaving twice is harmless")
}

func TestGamePlaysConfiguredRoundsToCompletion(t *testing.T) {
	settings := models.RoomSettings{Rounds: 2, TimeLimitSec: 600}
	r, rec := newTestRoom(t, settings)
	host, _ := r.Join("alice")
	r.Join("bob")

	require.NoError(t, r.StartGame(host.ID, settings, false))
	roundID := currentRoundID(t, r)
	require.NoError(t, r.Submit(roundID, "alice", "a red car on a road"))
	require.NoError(t, r.Submit(roundID, "bob", "blue bicycle"))
	require.Equal(t, models.PhaseWaiting, phase(r))

	assert.ErrorIs(t, r.NextRound("not-the-host"), ErrNotHost)
	require.NoError(t, r.NextRound(host.ID))
	roundID = currentRoundID(t, r)
	require.NoError(t, r.Submit(roundID, "alice", "a red car on a road"))
	require.NoError(t, r.Submit(roundID, "bob", "blue bicycle"))

	assert.Equal(t, models.PhaseFinished, phase(r))
	assert.Equal(t, 2, rec.count(EventRoundEnded))
	require.Equal(t, 1, rec.count(EventGameCompleted))

	ev, _ := rec.lastOf(EventGameCompleted)
	final := ev.(GameCompleted)
	require.Len(t, final.FinalRankings, 2)
	assert.Equal(t, "alice", final.FinalRankings[0].PlayerName)
	assert.Greater(t, final.FinalRankings[0].Score, final.FinalRankings[1].Score)

	assert.ErrorIs(t, r.NextRound(host.ID), ErrWrongPhase)
}

func TestNextRoundGuards(t *testing.T) {
	settings := models.RoomSettings{Rounds: 1, TimeLimitSec: 600}
	r, _ := newTestRoom(t, settings)
	host, _ := r.Join("alice")
	r.Join("bob")

	assert.ErrorIs(t, r.NextRound(host.ID), ErrWrongPhase, "no game started yet")

	require.NoError(t, r.StartGame(host.ID, settings, false))
	roundID := currentRoundID(t, r)
	require.NoError(t, r.Submit(roundID, "alice", "x"))
	require.NoError(t, r.Submit(roundID, "bob", "y"))

	require.Equal(t, models.PhaseFinished, phase(r))
	assert.ErrorIs(t, r.NextRound(host.ID), ErrWrongPhase)
}

func TestMidGameJoinerEntersStandingsAtZero(t *testing.T) {
	settings := models.RoomSettings{Rounds: 2, TimeLimitSec: 600}
	r, rec := newTestRoom(t, settings)
	host, _ := r.Join("alice")
	r.Join("bob")
	require.NoError(t, r.StartGame(host.ID, settings, false))

	_, err := r.Join("carol")
	require.NoError(t, err)

	roundID := currentRoundID(t, r)
	require.NoError(t, r.Submit(roundID, "alice", "a red car"))
	require.NoError(t, r.Submit(roundID, "bob", "a road"))
	require.NoError(t, r.Submit(roundID, "carol", "blue"))

	ev, _ := rec.lastOf(EventRoundEnded)
	ended := ev.(RoundEnded)
	_, tracked := ended.CumulativeScores["carol"]
	assert.True(t, tracked, "mid-game joiner must appear in standings")
	assert.Len(t, ended.Results, 3)
}

func TestForceRestartEndsStaleRound(t *testing.T) {
	settings := models.RoomSettings{Rounds: 3, TimeLimitSec: 600}
	r, rec := newTestRoom(t, settings)
	host, _ := r.Join("alice")
	r.Join("bob")

	require.NoError(t, r.StartGame(host.ID, settings, false))
	stale := currentRoundID(t, r)

	require.NoError(t, r.StartGame(host.ID, settings, true))
	fresh := currentRoundID(t, r)
	assert.NotEqual(t, stale, fresh)
	assert.Equal(t, 1, rec.count(EventRoundEnded), "forced restart closes the stale round")
	assert.Equal(t, models.PhasePlaying, phase(r))

	// A late timeout for the stale round must be ignored.
	r.EndRoundByTimeout(stale)
	assert.Equal(t, 1, rec.count(EventRoundEnded))
}

func TestStartGameFailsCleanlyWhenDatasetEmpty(t *testing.T) {
	r, _ := newTestRoom(t, models.DefaultRoomSettings())
	r.Challenge = stubSource{err: fmt.Errorf("corpus is empty")}
	host, _ := r.Join("alice")
	r.Join("bob")

	err := r.StartGame(host.ID, models.DefaultRoomSettings(), false)
	require.Error(t, err)
	assert.Equal(t, models.PhaseWaiting, phase(r), "failed start leaves the room untouched")
	r.Mu.Lock()
	assert.Nil(t, r.CurrentRound)
	assert.Equal(t, 0, r.RoundsPlayed)
	r.Mu.Unlock()
}
