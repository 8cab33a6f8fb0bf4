// Package handlers wires the HTTP API and the WebSocket transport to the
// room engine. Handlers translate between wire messages and engine calls;
// all game rules live in the game package.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/promptduel/server/internal/game"
	"github.com/promptduel/server/internal/models"
	"github.com/promptduel/server/internal/store"
)

// Server holds the shared state behind every handler.
type Server struct {
	Registry *game.Registry
	Store    store.Store
	Journal  game.Journal
	Dataset  game.ChallengeSource
	Defaults models.RoomSettings
	ImageDir string
	Logger   *logrus.Logger
}

// NewServer builds a handler set over the given collaborators. Store and
// Journal may be nil; rooms then run purely in memory.
func NewServer(reg *game.Registry, st store.Store, jr game.Journal, ds game.ChallengeSource, defaults models.RoomSettings, imageDir string, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		Registry: reg,
		Store:    st,
		Journal:  jr,
		Dataset:  ds,
		Defaults: defaults,
		ImageDir: imageDir,
		Logger:   logger,
	}
}

// Routes returns the full route table.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms/{code}", s.handleGetRoom)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/images/{filename}", s.handleImage)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

type createRoomRequest struct {
	Settings *models.RoomSettings `json:"settings,omitempty"`
}

type createRoomResponse struct {
	RoomCode string              `json:"roomCode"`
	Settings models.RoomSettings `json:"settings"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	// An empty body creates a room with default settings.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	settings := s.Defaults
	if req.Settings != nil {
		settings = req.Settings.Normalize()
	}

	var room *game.Room
	for attempt := 0; attempt < 5; attempt++ {
		candidate := game.NewRoom(game.NewRoomCode(), settings)
		candidate.Store = s.Store
		candidate.Challenge = s.Dataset
		candidate.Journal = s.Journal
		candidate.Logger = s.Logger.WithField("room", candidate.Code)
		candidate.BroadcastFn = s.broadcastFunc(candidate)
		if err := s.Registry.Add(candidate); err == nil {
			room = candidate
			break
		}
	}
	if room == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "could not allocate a room code")
		return
	}

	if s.Store != nil {
		if err := s.Store.CreateRoom(r.Context(), room.Code, settings); err != nil {
			s.Logger.WithError(err).WithField("room", room.Code).Warn("persist room create failed")
		}
	}

	s.Logger.WithField("room", room.Code).Info("room created")
	writeJSON(w, http.StatusCreated, createRoomResponse{RoomCode: room.Code, Settings: settings})
}

type roomInfoResponse struct {
	RoomCode string              `json:"roomCode"`
	Phase    models.Phase        `json:"phase"`
	Players  []game.RosterEntry  `json:"players"`
	Settings models.RoomSettings `json:"settings"`
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(r.PathValue("code"))
	if !game.ValidRoomCode(code) {
		writeJSONError(w, http.StatusBadRequest, game.ErrInvalidRoomCode.Error())
		return
	}
	room, ok := s.Registry.Get(code)
	if !ok {
		writeJSONError(w, http.StatusNotFound, game.ErrRoomNotFound.Error())
		return
	}

	room.Mu.Lock()
	resp := roomInfoResponse{
		RoomCode: room.Code,
		Phase:    room.Phase,
		Settings: room.Settings,
	}
	for i, p := range room.Players {
		resp.Players = append(resp.Players, game.RosterEntry{ID: p.ID, Name: p.Name, IsHost: i == 0})
	}
	room.Mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"rooms":  s.Registry.Len(),
	})
}

// handleImage serves challenge images by bare filename; anything that looks
// like a path is rejected.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		writeJSONError(w, http.StatusBadRequest, "invalid image name")
		return
	}
	http.ServeFile(w, r, filepath.Join(s.ImageDir, name))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// dropRoomIfEmpty removes the room from the registry when the engine reports
// it empty.
func (s *Server) dropRoomIfEmpty(room *game.Room, empty bool) {
	if !empty {
		return
	}
	s.Registry.Remove(room.Code)
	s.Logger.WithField("room", room.Code).Info("room removed")
}

// userMessage maps an engine error to text safe for clients.
func userMessage(err error) string {
	if game.UserFacing(err) {
		return err.Error()
	}
	return "internal error"
}
