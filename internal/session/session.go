// Package session owns one websocket connection per connected client. It
// translates wire messages into registry/room calls and drains the outbox the
// broadcasters write to. It never holds room or registry state of its own
// beyond which room the player is currently in.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codenames-party/codenames-backend/internal/game"
	"github.com/codenames-party/codenames-backend/internal/protocol"
	"github.com/codenames-party/codenames-backend/internal/registry"
	"github.com/codenames-party/codenames-backend/internal/room"
)

const (
	writeTimeout = 3 * time.Second
	outboxSize   = 16
)

func Handler(reg *registry.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		s := &session{
			conn: conn,
			reg:  reg,
			log:  log,
		}
		s.run(r.Context())
	}
}

type session struct {
	conn *websocket.Conn
	reg  *registry.Registry
	log  *zap.Logger

	playerID string
	name     string
	outbox   chan protocol.ServerMessage
	cur      *room.Room // nil while in the lobby
}

func (s *session) run(ctx context.Context) {
	// First message must be join_lobby; nothing else is routable before the
	// player exists in the directory.
	cm, err := s.read(ctx)
	if err != nil {
		return
	}
	if cm.Type != protocol.MsgJoinLobby || cm.Name == "" {
		s.writeError(ctx, fmt.Errorf("%w: expected join_lobby first", game.ErrInvalidAction))
		return
	}

	s.playerID = uuid.NewString()
	s.name = cm.Name
	s.outbox = make(chan protocol.ServerMessage, outboxSize)

	reply := make(chan error, 1)
	s.reg.Inbox() <- registry.Register{Client: s.client(), Reply: reply}
	if err := <-reply; err != nil {
		s.writeError(ctx, err)
		return
	}

	s.log.Info("session started", zap.String("player", s.playerID), zap.String("name", s.name))

	writeCtx, writeCancel := context.WithCancel(ctx)
	defer writeCancel()
	go s.writeLoop(writeCtx)

	defer s.cleanup()

	for {
		cm, err := s.read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				s.log.Info("connection lost", zap.String("player", s.playerID), zap.Error(err))
			}
			return
		}
		s.dispatch(ctx, cm)
	}
}

// cleanup runs the disconnect policy: forfeit the player's team if they were
// mid-game, then drop them from the directory.
func (s *session) cleanup() {
	if s.cur != nil {
		s.toRoom(room.Leave{PlayerID: s.playerID, Disconnected: true})
		s.cur = nil
	}
	s.reg.Inbox() <- registry.Unregister{PlayerID: s.playerID}
}

func (s *session) client() registry.Client {
	return registry.Client{ID: s.playerID, Name: s.name, Outbox: s.outbox}
}

func (s *session) dispatch(ctx context.Context, cm protocol.ClientMessage) {
	switch cm.Type {
	case protocol.MsgJoinLobby:
		s.writeError(ctx, fmt.Errorf("%w: already joined", game.ErrInvalidAction))

	case protocol.MsgCreateRoom:
		if s.cur != nil {
			s.writeError(ctx, fmt.Errorf("%w: leave your room first", game.ErrInvalidAction))
			return
		}
		reply := make(chan registry.RoomReply, 1)
		s.reg.Inbox() <- registry.CreateRoom{Client: s.client(), Name: cm.Name, Team: game.Team(cm.Team), Reply: reply}
		s.finishRoomMove(ctx, <-reply)

	case protocol.MsgJoinRoom:
		if s.cur != nil {
			s.writeError(ctx, fmt.Errorf("%w: leave your room first", game.ErrInvalidAction))
			return
		}
		reply := make(chan registry.RoomReply, 1)
		s.reg.Inbox() <- registry.JoinRoom{Client: s.client(), RoomID: cm.RoomID, Team: game.Team(cm.Team), Reply: reply}
		s.finishRoomMove(ctx, <-reply)

	case protocol.MsgLeaveRoom:
		if s.cur == nil {
			s.writeError(ctx, protocol.ErrNotInRoom)
			return
		}
		s.leaveRoom()

	case protocol.MsgSetTeam:
		s.roomCall(ctx, func(reply chan error) room.Msg {
			return room.SetTeam{PlayerID: s.playerID, Team: game.Team(cm.Team), Reply: reply}
		})

	case protocol.MsgSetRole:
		s.roomCall(ctx, func(reply chan error) room.Msg {
			return room.SetRole{PlayerID: s.playerID, Spymaster: cm.Spymaster, Reply: reply}
		})

	case protocol.MsgStartGame:
		s.roomCall(ctx, func(reply chan error) room.Msg {
			return room.StartGame{PlayerID: s.playerID, Reply: reply}
		})

	case protocol.MsgSubmitClue:
		s.roomCall(ctx, func(reply chan error) room.Msg {
			return room.Act{PlayerID: s.playerID, Cmd: game.CmdGiveClue, Word: cm.Word, Count: cm.Count, Reply: reply}
		})

	case protocol.MsgSubmitGuess:
		s.roomCall(ctx, func(reply chan error) room.Msg {
			return room.Act{PlayerID: s.playerID, Cmd: game.CmdRevealCard, CardIndex: cm.CardIndex, Reply: reply}
		})

	case protocol.MsgEndTurn:
		s.roomCall(ctx, func(reply chan error) room.Msg {
			return room.Act{PlayerID: s.playerID, Cmd: game.CmdEndTurn, Reply: reply}
		})

	case protocol.MsgChat:
		if s.cur != nil {
			s.toRoom(room.Chat{PlayerID: s.playerID, Text: cm.Text})
		} else {
			s.reg.Inbox() <- registry.Chat{PlayerID: s.playerID, Text: cm.Text}
		}

	default:
		s.writeError(ctx, fmt.Errorf("%w: unknown message type %q", game.ErrInvalidAction, cm.Type))
	}
}

// leaveRoom exits the current room. The player only re-enters the lobby when
// the room confirms they were still seated; if a broadcaster dropped them
// first, the outbox is already closed and belongs to nobody, and the closed
// connection tears the session down through the normal disconnect path.
func (s *session) leaveRoom() {
	reply := make(chan bool, 1)
	seated := false
	if s.toRoom(room.Leave{PlayerID: s.playerID, Reply: reply}) {
		select {
		case seated = <-reply:
		case <-s.cur.Done():
		}
	}
	s.cur = nil
	if seated {
		s.reg.Inbox() <- registry.ReturnToLobby{Client: s.client()}
	}
}

func (s *session) finishRoomMove(ctx context.Context, res registry.RoomReply) {
	if res.Err != nil {
		s.writeError(ctx, res.Err)
		return
	}
	s.cur = res.Room
}

// roomCall sends one replying message to the current room and reports a
// rejection back to this connection only.
func (s *session) roomCall(ctx context.Context, build func(chan error) room.Msg) {
	if s.cur == nil {
		s.writeError(ctx, protocol.ErrNotInRoom)
		return
	}
	reply := make(chan error, 1)
	if !s.toRoom(build(reply)) {
		s.writeError(ctx, protocol.ErrRoomNotFound)
		return
	}
	select {
	case err := <-reply:
		if err != nil {
			s.writeError(ctx, err)
		}
	case <-s.cur.Done():
		s.writeError(ctx, protocol.ErrRoomNotFound)
	}
}

// toRoom delivers a message to the current room unless it has already shut
// down.
func (s *session) toRoom(m room.Msg) bool {
	select {
	case s.cur.Inbox() <- m:
		return true
	case <-s.cur.Done():
		return false
	}
}

func (s *session) read(ctx context.Context) (protocol.ClientMessage, error) {
	// Blocks until the client sends something; holding no locks here is what
	// keeps one idle connection from stalling anyone else.
	var cm protocol.ClientMessage
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			return cm, err
		}
		if err := json.Unmarshal(data, &cm); err != nil {
			s.writeError(ctx, fmt.Errorf("%w: bad json", game.ErrInvalidAction))
			continue
		}
		return cm, nil
	}
}

func (s *session) writeLoop(ctx context.Context) {
	for msg := range s.outbox {
		payload, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		_ = s.conn.Write(wctx, websocket.MessageText, payload)
		cancel()
	}
	// Outbox closed: a broadcaster dropped us. Closing the connection makes
	// the read loop run the normal disconnect path.
	s.conn.Close(websocket.StatusPolicyViolation, "too slow")
}

func (s *session) writeError(ctx context.Context, err error) {
	payload, merr := json.Marshal(protocol.ErrorMessage(err))
	if merr != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = s.conn.Write(wctx, websocket.MessageText, payload)
}
