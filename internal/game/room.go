// Package game holds the authoritative in-memory room state and the round
// lifecycle state machine. Each room is guarded by its own mutex; rooms never
// block each other. The lock is held only to transition state and snapshot
// payloads; store writes and broadcasts happen outside it.
package game

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/promptduel/server/internal/models"
	"github.com/promptduel/server/internal/scoring"
	"github.com/promptduel/server/internal/store"
)

// ChallengeSource hands out the next (image, target prompt) pair for a round.
type ChallengeSource interface {
	NextChallenge() (models.Challenge, error)
}

// Journal receives finished-round records for write-behind history and
// leaderboard mirroring. Implementations must tolerate being called
// concurrently; a nil Journal disables journaling.
type Journal interface {
	RoundEnded(ctx context.Context, roomCode, roundID string, results []models.Result, cumulative map[string]int) error
}

// Round is one live guessing challenge within a room. All fields are guarded
// by the owning room's mutex.
type Round struct {
	ID           string
	RoomCode     string
	Number       int
	TargetText   string
	ImagePath    string
	TimeLimitSec int
	Difficulty   models.DifficultyTier
	Meta         models.DifficultyMeta
	StartedAt    time.Time
	EndedAt      time.Time

	// Ended flips exactly once; every end-round trigger checks it under the
	// room lock before doing any work. This is the central correctness
	// invariant of the whole system.
	Ended bool

	// Submissions keyed by player name; a resubmission overwrites. The count
	// of distinct keys among current players drives early termination.
	Submissions map[string]models.Submission

	timer *time.Timer
}

// Room is one multiplayer session. The engine is the only writer of its
// fields; handlers interact exclusively through exported methods.
type Room struct {
	Mu sync.Mutex

	Code             string
	Phase            models.Phase
	Settings         models.RoomSettings
	Players          []*models.Player
	RoundsPlayed     int
	CumulativeScores map[string]int
	CurrentRound     *Round
	FinalSummary     []models.RankingEntry

	// BroadcastFn fans events out to subscribed connections. Set once during
	// wiring, before the room is shared; must not be invoked with Mu held.
	BroadcastFn BroadcastFunc

	// TimeScale is the wall-clock length of one configured "second". Tests
	// shrink it to run timeout paths quickly.
	TimeScale time.Duration

	Store     store.Store
	Challenge ChallengeSource
	Journal   Journal
	Logger    logrus.FieldLogger
}

var roomCodeRe = regexp.MustCompile(`^[A-Z0-9]{6}$`)

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewRoomCode returns a random 6-character room code.
func NewRoomCode() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
	}
	return string(b)
}

// ValidRoomCode reports whether code is a well-formed room code.
func ValidRoomCode(code string) bool {
	return roomCodeRe.MatchString(code)
}

func newRoundID() string {
	return fmt.Sprintf("round_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// NewRoom builds an empty waiting room.
func NewRoom(code string, settings models.RoomSettings) *Room {
	return &Room{
		Code:      code,
		Phase:     models.PhaseWaiting,
		Settings:  settings.Normalize(),
		TimeScale: time.Second,
	}
}

// CurrentSettings returns a copy of the room's settings.
func (r *Room) CurrentSettings() models.RoomSettings {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.Settings
}

func (r *Room) log() logrus.FieldLogger {
	if r.Logger != nil {
		return r.Logger
	}
	return logrus.StandardLogger().WithField("room", r.Code)
}

// persist runs one write-through store call off the lock, logging failures.
// Store failures never mutate or roll back in-memory state.
func (r *Room) persist(what string, fn func(context.Context) error) {
	if r.Store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			r.log().WithError(err).Warnf("persist %s failed", what)
		}
	}()
}

func (r *Room) emit(evs ...Event) {
	if r.BroadcastFn == nil {
		return
	}
	for _, ev := range evs {
		r.BroadcastFn(ev)
	}
}

func (r *Room) rosterLocked() []RosterEntry {
	roster := make([]RosterEntry, len(r.Players))
	for i, p := range r.Players {
		roster[i] = RosterEntry{ID: p.ID, Name: p.Name, IsHost: i == 0}
	}
	return roster
}

func (r *Room) isHostLocked(playerID string) bool {
	return len(r.Players) > 0 && r.Players[0].ID == playerID
}

// Join adds a named player to the room. The first player to join is the host.
func (r *Room) Join(name string) (*models.Player, error) {
	name = strings.TrimSpace(name)
	if len(name) < 1 || len(name) > 20 {
		return nil, ErrInvalidName
	}

	r.Mu.Lock()
	for _, p := range r.Players {
		if strings.EqualFold(p.Name, name) {
			r.Mu.Unlock()
			return nil, ErrNameTaken
		}
	}
	if len(r.Players) >= r.Settings.MaxPlayers {
		r.Mu.Unlock()
		return nil, ErrRoomFull
	}

	player := &models.Player{
		ID:        uuid.NewString(),
		Name:      name,
		Connected: true,
		JoinedAt:  time.Now(),
	}
	r.Players = append(r.Players, player)
	// Mid-game joiners enter the standings at zero.
	if r.CumulativeScores != nil {
		if _, ok := r.CumulativeScores[name]; !ok {
			r.CumulativeScores[name] = 0
		}
	}
	ev := PlayerJoined{
		Player:  RosterEntry{ID: player.ID, Name: player.Name, IsHost: len(r.Players) == 1},
		Players: r.rosterLocked(),
		Phase:   r.Phase,
	}
	r.Mu.Unlock()

	r.persist("player join", func(ctx context.Context) error {
		return r.Store.AddPlayer(ctx, r.Code, player.ID, player.Name)
	})
	r.emit(ev)
	r.log().WithField("player", name).Info("player joined")
	return player, nil
}

// Leave removes a player and reports whether the room is now empty. The
// caller that observes empty==true must drop the room from the registry.
// If the departure satisfies the all-submitted condition for a live round,
// the round ends immediately.
func (r *Room) Leave(playerID string) (empty bool) {
	r.Mu.Lock()
	idx := -1
	for i, p := range r.Players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		r.Mu.Unlock()
		return false
	}
	name := r.Players[idx].Name
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)

	var evs []Event
	if len(r.Players) == 0 {
		r.cancelTimerLocked()
		r.Mu.Unlock()
		r.persist("room delete", func(ctx context.Context) error {
			return r.Store.DeleteRoom(ctx, r.Code)
		})
		r.log().WithField("player", name).Info("last player left, room discarded")
		return true
	}

	evs = append(evs, PlayerLeft{PlayerID: playerID, PlayerName: name, Players: r.rosterLocked()})

	// The departing player may have been the last holdout.
	if rd := r.CurrentRound; rd != nil && !rd.Ended && r.countSubmittedLocked(rd) >= len(r.Players) {
		evs = append(evs, r.endRoundLocked(rd, time.Now())...)
	}
	r.Mu.Unlock()

	r.persist("player leave", func(ctx context.Context) error {
		return r.Store.RemovePlayer(ctx, r.Code, playerID)
	})
	r.emit(evs...)
	r.log().WithField("player", name).Info("player left")
	return false
}

// cancelTimerLocked stops any armed round timer. Stopping after fire is a
// safe no-op; the fired callback still hits the Ended guard.
func (r *Room) cancelTimerLocked() {
	if r.CurrentRound != nil && r.CurrentRound.timer != nil {
		r.CurrentRound.timer.Stop()
		r.CurrentRound.timer = nil
	}
}

// StartGame resets standings and begins the first round. Host only. With
// force set, a stale in-flight round is ended through the normal idempotent
// path before the new game starts.
func (r *Room) StartGame(playerID string, settings models.RoomSettings, force bool) error {
	r.Mu.Lock()
	if !r.isHostLocked(playerID) {
		r.Mu.Unlock()
		return ErrNotHost
	}
	var evs []Event
	if r.Phase == models.PhasePlaying {
		if !force {
			r.Mu.Unlock()
			return ErrGameInProgress
		}
		if rd := r.CurrentRound; rd != nil {
			evs = append(evs, r.endRoundLocked(rd, time.Now())...)
		}
	}
	if len(r.Players) < 2 {
		r.Mu.Unlock()
		r.emit(evs...)
		return ErrNotEnoughPlayers
	}

	r.Settings = settings.Normalize()
	r.RoundsPlayed = 0
	r.FinalSummary = nil
	r.Phase = models.PhaseWaiting
	r.CumulativeScores = make(map[string]int, len(r.Players))
	for _, p := range r.Players {
		r.CumulativeScores[p.Name] = 0
	}

	startEvs, arm, err := r.beginRoundLocked()
	r.Mu.Unlock()
	if err != nil {
		r.emit(evs...)
		return err
	}
	r.emit(append(evs, startEvs...)...)
	arm()
	return nil
}

// NextRound starts the next round of the running game. Host only, valid only
// while waiting between rounds.
func (r *Room) NextRound(playerID string) error {
	r.Mu.Lock()
	if !r.isHostLocked(playerID) {
		r.Mu.Unlock()
		return ErrNotHost
	}
	if r.Phase != models.PhaseWaiting || r.RoundsPlayed == 0 {
		r.Mu.Unlock()
		return ErrWrongPhase
	}
	if r.RoundsPlayed >= r.Settings.Rounds {
		r.Mu.Unlock()
		return ErrNoRoundsRemaining
	}
	if len(r.Players) < 2 {
		r.Mu.Unlock()
		return ErrNotEnoughPlayers
	}
	evs, arm, err := r.beginRoundLocked()
	r.Mu.Unlock()
	if err != nil {
		return err
	}
	r.emit(evs...)
	arm()
	return nil
}

// beginRoundLocked creates and starts a round. Nothing is mutated if the
// challenge source fails, so a dataset error leaves the room unchanged.
// The returned arm func must be called after the round-started broadcast;
// the timeout timer is never armed before clients have seen the round.
func (r *Room) beginRoundLocked() ([]Event, func(), error) {
	ch, err := r.Challenge.NextChallenge()
	if err != nil {
		return nil, nil, fmt.Errorf("select challenge: %w", err)
	}

	rd := &Round{
		ID:           newRoundID(),
		RoomCode:     r.Code,
		TargetText:   ch.TargetText,
		ImagePath:    ch.ImagePath,
		TimeLimitSec: r.Settings.TimeLimitSec,
		Difficulty:   ch.Difficulty,
		Meta:         ch.Meta,
		StartedAt:    time.Now(),
		Submissions:  make(map[string]models.Submission),
	}
	r.RoundsPlayed++
	rd.Number = r.RoundsPlayed
	r.Phase = models.PhasePlaying
	r.CurrentRound = rd

	rec := models.RoundRecord{
		ID:           rd.ID,
		RoomCode:     rd.RoomCode,
		TargetText:   rd.TargetText,
		ImagePath:    rd.ImagePath,
		TimeLimitSec: rd.TimeLimitSec,
		Difficulty:   rd.Difficulty,
		CreatedAt:    rd.StartedAt,
	}
	r.persist("round create", func(ctx context.Context) error {
		return r.Store.CreateRound(ctx, rec)
	})

	ev := RoundStarted{
		RoundID:      rd.ID,
		ImagePath:    rd.ImagePath,
		TimeLimitSec: rd.TimeLimitSec,
		RoundNumber:  rd.Number,
		TotalRounds:  r.Settings.Rounds,
		Difficulty:   rd.Difficulty,
	}

	roundID := rd.ID
	arm := func() {
		r.Mu.Lock()
		defer r.Mu.Unlock()
		if r.CurrentRound != rd || rd.Ended {
			return
		}
		d := time.Duration(rd.TimeLimitSec) * r.TimeScale
		rd.timer = time.AfterFunc(d, func() {
			r.EndRoundByTimeout(roundID)
		})
	}

	r.log().WithFields(logrus.Fields{
		"round":      rd.ID,
		"number":     rd.Number,
		"difficulty": rd.Difficulty,
	}).Info("round started")
	return []Event{ev}, arm, nil
}

// Submit records or replaces a player's guess for the live round. When the
// last outstanding player submits, the round ends immediately.
func (r *Room) Submit(roundID, playerName, text string) error {
	text = strings.TrimSpace(text)

	r.Mu.Lock()
	rd := r.CurrentRound
	if rd == nil || rd.ID != roundID {
		r.Mu.Unlock()
		return ErrRoundNotFound
	}
	if rd.Ended {
		r.Mu.Unlock()
		return ErrRoundEnded
	}
	if len(text) < 1 || len(text) > r.Settings.CharacterLimit {
		r.Mu.Unlock()
		return ErrInvalidSubmission
	}
	if !r.hasPlayerNameLocked(playerName) {
		r.Mu.Unlock()
		return ErrRoomNotFound
	}

	sub := models.Submission{
		RoundID:     roundID,
		PlayerName:  playerName,
		Text:        text,
		SubmittedAt: time.Now(),
	}
	rd.Submissions[playerName] = sub

	evs := []Event{PromptSubmitted{RoundID: roundID, PlayerName: playerName}}
	if r.countSubmittedLocked(rd) >= len(r.Players) {
		evs = append(evs, r.endRoundLocked(rd, time.Now())...)
	}
	r.Mu.Unlock()

	r.persist("submission", func(ctx context.Context) error {
		return r.Store.SaveSubmission(ctx, sub)
	})
	r.emit(evs...)
	return nil
}

// Unsubmit withdraws a player's guess so it can be rewritten, permitted only
// while the round is live.
func (r *Room) Unsubmit(roundID, playerName string) error {
	r.Mu.Lock()
	rd := r.CurrentRound
	if rd == nil || rd.ID != roundID {
		r.Mu.Unlock()
		return ErrRoundNotFound
	}
	if rd.Ended {
		r.Mu.Unlock()
		return ErrRoundEnded
	}
	if _, ok := rd.Submissions[playerName]; !ok {
		r.Mu.Unlock()
		return ErrRoundNotFound
	}
	delete(rd.Submissions, playerName)
	ev := PromptUnsubmitted{RoundID: roundID, PlayerName: playerName}
	r.Mu.Unlock()

	r.persist("unsubmit", func(ctx context.Context) error {
		return r.Store.DeleteSubmission(ctx, roundID, playerName)
	})
	r.emit(ev)
	return nil
}

// EndRoundByTimeout is the timer trigger. A stale callback for a detached or
// already ended round is a no-op.
func (r *Room) EndRoundByTimeout(roundID string) {
	r.Mu.Lock()
	rd := r.CurrentRound
	if rd == nil || rd.ID != roundID || rd.Ended {
		r.Mu.Unlock()
		return
	}
	evs := r.endRoundLocked(rd, time.Now())
	r.Mu.Unlock()
	r.emit(evs...)
}

func (r *Room) hasPlayerNameLocked(name string) bool {
	for _, p := range r.Players {
		if p.Name == name {
			return true
		}
	}
	return false
}

// countSubmittedLocked counts distinct current players with a live
// submission. Submissions left behind by departed players don't count.
func (r *Room) countSubmittedLocked(rd *Round) int {
	n := 0
	for _, p := range r.Players {
		if _, ok := rd.Submissions[p.Name]; ok {
			n++
		}
	}
	return n
}

// endRoundLocked is the single authoritative round termination. The caller
// holds the lock. The first caller to observe Ended==false does all the work;
// every later caller is a no-op, which is what makes the timeout/all-submitted
// race safe. Returns the events to emit after the lock is released.
func (r *Room) endRoundLocked(rd *Round, now time.Time) []Event {
	if rd.Ended {
		return nil
	}
	rd.Ended = true
	if rd.timer != nil {
		rd.timer.Stop()
		rd.timer = nil
	}
	rd.EndedAt = now

	// Every current player is scored; a player who never submitted is scored
	// against the empty string and lands at zero.
	results := make([]models.Result, 0, len(r.Players))
	for _, p := range r.Players {
		text := ""
		submittedAt := now
		if sub, ok := rd.Submissions[p.Name]; ok {
			text = sub.Text
			submittedAt = sub.SubmittedAt
		}
		sr := scoring.Score(rd.TargetText, text, rd.Difficulty, rd.Meta)
		results = append(results, models.Result{
			RoundID:           rd.ID,
			PlayerName:        p.Name,
			Text:              text,
			AccuracyScore:     sr.AccuracyScore,
			LeaderboardPoints: sr.LeaderboardPoints,
			MatchedWords:      sr.Matched,
			MissedWords:       sr.Missed,
			Bonuses:           sr.Bonuses,
			Explanation:       sr.Explanation,
			SubmittedAt:       submittedAt,
		})
		r.CumulativeScores[p.Name] += sr.LeaderboardPoints
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].LeaderboardPoints != results[j].LeaderboardPoints {
			return results[i].LeaderboardPoints > results[j].LeaderboardPoints
		}
		if !results[i].SubmittedAt.Equal(results[j].SubmittedAt) {
			return results[i].SubmittedAt.Before(results[j].SubmittedAt)
		}
		return results[i].PlayerName < results[j].PlayerName
	})

	isLast := r.RoundsPlayed >= r.Settings.Rounds
	scores := make(map[string]int, len(r.CumulativeScores))
	for name, pts := range r.CumulativeScores {
		scores[name] = pts
	}

	evs := []Event{RoundEnded{
		RoundID:          rd.ID,
		TargetText:       rd.TargetText,
		Results:          results,
		CumulativeScores: scores,
		RoundNumber:      rd.Number,
		TotalRounds:      r.Settings.Rounds,
		IsLastRound:      isLast,
	}}

	if isLast {
		r.Phase = models.PhaseFinished
		r.FinalSummary = rankingsFromScores(scores)
		evs = append(evs, GameCompleted{FinalRankings: r.FinalSummary})
	} else {
		r.Phase = models.PhaseWaiting
	}
	r.CurrentRound = nil

	r.persist("round close", func(ctx context.Context) error {
		return r.Store.CloseRound(ctx, rd.ID, now)
	})
	for _, res := range results {
		res := res
		r.persist("result", func(ctx context.Context) error {
			return r.Store.SaveResult(ctx, res)
		})
	}
	if r.Journal != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.Journal.RoundEnded(ctx, r.Code, rd.ID, results, scores); err != nil {
				r.log().WithError(err).Warn("round journal write failed")
			}
		}()
	}

	r.log().WithFields(logrus.Fields{
		"round":   rd.ID,
		"results": len(results),
		"last":    isLast,
	}).Info("round ended")
	return evs
}

// rankingsFromScores sorts cumulative standings by points descending, names
// ascending on ties.
func rankingsFromScores(scores map[string]int) []models.RankingEntry {
	out := make([]models.RankingEntry, 0, len(scores))
	for name, pts := range scores {
		out = append(out, models.RankingEntry{PlayerName: name, Score: pts})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].PlayerName < out[j].PlayerName
	})
	return out
}
