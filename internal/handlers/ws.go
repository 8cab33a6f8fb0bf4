package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/promptduel/server/internal/game"
	"github.com/promptduel/server/internal/models"
)

// handleWS upgrades the connection and runs the session. The first message
// must be join-room; everything else is rejected until the client is in a
// room. When the read loop exits the player is removed from their room.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.Logger.WithError(err).Warn("websocket accept failed")
		return
	}
	defer c.Close(websocket.StatusInternalError, "session ended")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	room, player, err := s.awaitJoin(ctx, c)
	if err != nil {
		c.Close(websocket.StatusPolicyViolation, "join failed")
		return
	}

	log := s.Logger.WithFields(logrus.Fields{"room": room.Code, "player": player.Name})
	log.Info("websocket session joined")

	s.readLoop(ctx, c, room, player, log)

	s.dropRoomIfEmpty(room, room.Leave(player.ID))
	log.Info("websocket session ended")
	c.Close(websocket.StatusNormalClosure, "bye")
}

// awaitJoin reads messages until a valid join-room arrives, attaches the
// connection to the player, and confirms with a joined snapshot.
func (s *Server) awaitJoin(ctx context.Context, c *websocket.Conn) (*game.Room, *models.Player, error) {
	for {
		msg, err := readMessage(ctx, c)
		if err != nil {
			return nil, nil, err
		}
		if msg.Type != msgJoinRoom {
			sendError(ctx, c, s.Logger, "join a room first")
			continue
		}

		code := strings.ToUpper(strings.TrimSpace(msg.RoomCode))
		if !game.ValidRoomCode(code) {
			sendError(ctx, c, s.Logger, game.ErrInvalidRoomCode.Error())
			continue
		}
		room, ok := s.Registry.Get(code)
		if !ok {
			sendError(ctx, c, s.Logger, game.ErrRoomNotFound.Error())
			continue
		}

		player, err := room.Join(msg.PlayerName)
		if err != nil {
			sendError(ctx, c, s.Logger, userMessage(err))
			continue
		}

		room.Mu.Lock()
		player.Conn = c
		joined := joinedMessage{
			Type:     "joined",
			PlayerID: player.ID,
			RoomCode: room.Code,
			Phase:    room.Phase,
			Settings: room.Settings,
		}
		for i, p := range room.Players {
			joined.Players = append(joined.Players, game.RosterEntry{ID: p.ID, Name: p.Name, IsHost: i == 0})
		}
		room.Mu.Unlock()

		sendMessage(ctx, c, s.Logger, joined)
		return room, player, nil
	}
}

func (s *Server) readLoop(ctx context.Context, c *websocket.Conn, room *game.Room, player *models.Player, log logrus.FieldLogger) {
	for {
		msg, err := readMessage(ctx, c)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway &&
				!strings.Contains(err.Error(), "context canceled") {
				log.WithError(err).Debug("websocket read ended")
			}
			return
		}

		switch msg.Type {
		case msgLeaveRoom:
			return

		case msgStartGame:
			settings := room.CurrentSettings()
			if msg.Settings != nil {
				settings = msg.Settings.Normalize()
			}
			if err := room.StartGame(player.ID, settings, msg.Force); err != nil {
				sendError(ctx, c, log, userMessage(err))
			}

		case msgSubmitPrompt:
			if err := room.Submit(msg.RoundID, player.Name, msg.Text); err != nil {
				sendError(ctx, c, log, userMessage(err))
			}

		case msgUnsubmitPrompt:
			if err := room.Unsubmit(msg.RoundID, player.Name); err != nil {
				sendError(ctx, c, log, userMessage(err))
			}

		case msgNextRound:
			if err := room.NextRound(player.ID); err != nil {
				sendError(ctx, c, log, userMessage(err))
			}

		case msgPing:
			sendMessage(ctx, c, log, map[string]string{"type": "pong"})

		case msgJoinRoom:
			sendError(ctx, c, log, "already in a room")

		default:
			sendError(ctx, c, log, "unknown message type: "+msg.Type)
		}
	}
}

// broadcastFunc builds the room's fan-out. It snapshots the connected
// players under the room lock, then writes outside it with per-write
// timeouts so one slow client cannot stall the engine.
func (s *Server) broadcastFunc(room *game.Room) game.BroadcastFunc {
	return func(ev game.Event) {
		room.Mu.Lock()
		conns := make([]*websocket.Conn, 0, len(room.Players))
		for _, p := range room.Players {
			if p.Conn != nil {
				conns = append(conns, p.Conn)
			}
		}
		room.Mu.Unlock()

		data, err := json.Marshal(envelope{Type: ev.Kind(), Data: ev})
		if err != nil {
			s.Logger.WithError(err).WithField("event", ev.Kind()).Error("marshal event failed")
			return
		}

		// Writes stay in the emitting goroutine so every client sees events
		// in emission order; the per-write timeout bounds slow clients.
		for _, conn := range conns {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				s.Logger.WithError(err).WithField("room", room.Code).Debug("broadcast write failed")
			}
			cancel()
		}
	}
}

func readMessage(ctx context.Context, c *websocket.Conn) (clientMessage, error) {
	var msg clientMessage
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			return msg, err
		}
		if msgType != websocket.MessageText {
			continue
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			msg = clientMessage{Type: "invalid"}
			return msg, nil
		}
		return msg, nil
	}
}

func sendMessage(ctx context.Context, c *websocket.Conn, log logrus.FieldLogger, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("marshal outbound message failed")
		return
	}
	writeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Write(writeCtx, websocket.MessageText, data); err != nil {
		log.WithError(err).Debug("websocket write failed")
	}
}

func sendError(ctx context.Context, c *websocket.Conn, log logrus.FieldLogger, message string) {
	sendMessage(ctx, c, log, errorMessage{Type: "error", Message: message})
}
