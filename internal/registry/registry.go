// Package registry is the process-wide directory of online roomless players
// and active rooms. A single loop serializes every mutation and snapshot, so
// a player id is never in the lobby set and a room roster at the same time.
package registry

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/codenames-party/codenames-backend/internal/game"
	"github.com/codenames-party/codenames-backend/internal/protocol"
	"github.com/codenames-party/codenames-backend/internal/room"
	"github.com/codenames-party/codenames-backend/internal/store"
)

const chatCap = 50

type Msg interface{ isRegistryMsg() }

// Client is a connected player currently in the lobby.
type Client struct {
	ID     string
	Name   string
	Outbox chan protocol.ServerMessage
}

type Register struct {
	Client Client
	Reply  chan error
}

type Unregister struct{ PlayerID string }

type CreateRoom struct {
	Client Client
	Name   string
	Team   game.Team
	Reply  chan RoomReply
}

type JoinRoom struct {
	Client Client
	RoomID string
	Team   game.Team
	Reply  chan RoomReply
}

type RoomReply struct {
	Room *room.Room
	Err  error
}

// ReturnToLobby moves a player back into the lobby set after they left their
// room. Idempotent, like Unregister.
type ReturnToLobby struct{ Client Client }

type Chat struct {
	PlayerID string
	Text     string
}

type ListRooms struct {
	Reply chan []protocol.RoomSummary
}

type ListPlayers struct {
	Reply chan []string
}

type Shutdown struct{}

func (Register) isRegistryMsg()      {}
func (Unregister) isRegistryMsg()    {}
func (CreateRoom) isRegistryMsg()    {}
func (JoinRoom) isRegistryMsg()      {}
func (ReturnToLobby) isRegistryMsg() {}
func (Chat) isRegistryMsg()          {}
func (ListRooms) isRegistryMsg()     {}
func (ListPlayers) isRegistryMsg()   {}
func (Shutdown) isRegistryMsg()      {}

type Config struct {
	Words     []string
	TurnTimer time.Duration
	Recorder  store.Recorder
	Logger    *zap.Logger
}

type Registry struct {
	inbox   chan Msg
	updates chan room.Update

	players   map[string]Client // online and roomless
	names     map[string]string // display name -> player id, all online players
	inRoom    map[string]string // player id -> room id
	rooms     map[string]*room.Room
	summaries map[string]protocol.RoomSummary
	chat      []protocol.ChatLine

	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRegistry(parent context.Context, cfg Config) *Registry {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Recorder == nil {
		cfg.Recorder = store.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	g := &Registry{
		inbox:     make(chan Msg, 64),
		updates:   make(chan room.Update, 64),
		players:   make(map[string]Client),
		names:     make(map[string]string),
		inRoom:    make(map[string]string),
		rooms:     make(map[string]*room.Room),
		summaries: make(map[string]protocol.RoomSummary),
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}

	go g.loop()
	return g
}

func (g *Registry) Inbox() chan<- Msg { return g.inbox }

func (g *Registry) loop() {
	for {
		select {
		case <-g.ctx.Done():
			g.shutdown()
			return

		case u := <-g.updates:
			g.handleUpdate(u)

		case m := <-g.inbox:
			switch msg := m.(type) {
			case Register:
				msg.Reply <- g.handleRegister(msg.Client)

			case Unregister:
				g.handleUnregister(msg.PlayerID)

			case CreateRoom:
				msg.Reply <- g.handleCreateRoom(msg)

			case JoinRoom:
				msg.Reply <- g.handleJoinRoom(msg)

			case ReturnToLobby:
				g.handleReturn(msg.Client)

			case Chat:
				g.handleChat(msg)

			case ListRooms:
				msg.Reply <- g.roomList()

			case ListPlayers:
				msg.Reply <- g.playerList()

			case Shutdown:
				g.shutdown()
				return
			}
		}
	}
}

func (g *Registry) handleRegister(c Client) error {
	if other, taken := g.names[c.Name]; taken && other != c.ID {
		return fmt.Errorf("%w: name %q is taken", protocol.ErrDuplicateName, c.Name)
	}
	g.players[c.ID] = c
	g.names[c.Name] = c.ID
	g.cfg.Logger.Info("player joined lobby", zap.String("player", c.ID), zap.String("name", c.Name))
	g.systemChat(fmt.Sprintf("%s joined the lobby", c.Name))
	g.broadcastLobbyState()
	return nil
}

func (g *Registry) handleUnregister(playerID string) {
	c, ok := g.players[playerID]
	if !ok {
		// Player may still be listed as in a room if the session dropped
		// before sending the room a Leave; the room's own disconnect path
		// handles the roster, we only clear the directory entry.
		delete(g.inRoom, playerID)
		g.pruneName(playerID)
		return
	}
	delete(g.players, playerID)
	g.pruneName(playerID)
	close(c.Outbox)
	g.cfg.Logger.Info("player left lobby", zap.String("player", playerID))
	g.systemChat(fmt.Sprintf("%s disconnected", c.Name))
	g.broadcastLobbyState()
}

func (g *Registry) pruneName(playerID string) {
	for name, id := range g.names {
		if id == playerID {
			delete(g.names, name)
			return
		}
	}
}

func (g *Registry) handleCreateRoom(msg CreateRoom) RoomReply {
	if _, ok := g.players[msg.Client.ID]; !ok {
		return RoomReply{Err: fmt.Errorf("%w: not in the lobby", game.ErrInvalidAction)}
	}
	if msg.Name == "" {
		return RoomReply{Err: fmt.Errorf("%w: room needs a name", game.ErrInvalidAction)}
	}
	for _, summary := range g.summaries {
		if summary.Name == msg.Name {
			return RoomReply{Err: fmt.Errorf("%w: room %q already exists", protocol.ErrDuplicateName, msg.Name)}
		}
	}

	id, err := g.newRoomID()
	if err != nil {
		return RoomReply{Err: fmt.Errorf("generate room id: %w", err)}
	}

	rm := room.NewRoom(g.ctx, id, msg.Name, room.Config{
		Words:     g.cfg.Words,
		Rng:       mrand.New(mrand.NewSource(time.Now().UnixNano())),
		TurnTimer: g.cfg.TurnTimer,
		Recorder:  g.cfg.Recorder,
		Logger:    g.cfg.Logger,
		Updates:   g.updates,
	})
	g.rooms[id] = rm
	g.summaries[id] = protocol.RoomSummary{ID: id, Name: msg.Name}

	if err := g.moveIntoRoom(msg.Client, rm, msg.Team); err != nil {
		select {
		case rm.Inbox() <- room.Shutdown{}:
		case <-rm.Done():
		}
		delete(g.rooms, id)
		delete(g.summaries, id)
		return RoomReply{Err: err}
	}

	g.cfg.Logger.Info("room created", zap.String("room", id), zap.String("name", msg.Name))
	g.recordRoom(id, msg.Name)
	g.systemChat(fmt.Sprintf("%s created room %q", msg.Client.Name, msg.Name))
	g.broadcastLobbyState()
	return RoomReply{Room: rm}
}

func (g *Registry) handleJoinRoom(msg JoinRoom) RoomReply {
	if _, ok := g.players[msg.Client.ID]; !ok {
		return RoomReply{Err: fmt.Errorf("%w: not in the lobby", game.ErrInvalidAction)}
	}
	rm, ok := g.rooms[msg.RoomID]
	if !ok {
		return RoomReply{Err: fmt.Errorf("%w: %s", protocol.ErrRoomNotFound, msg.RoomID)}
	}

	if err := g.moveIntoRoom(msg.Client, rm, msg.Team); err != nil {
		return RoomReply{Err: err}
	}
	g.broadcastLobbyState()
	return RoomReply{Room: rm}
}

// moveIntoRoom hands the player to the room and, only on acceptance, takes
// them out of the lobby set. Rejections leave the registry unchanged.
func (g *Registry) moveIntoRoom(c Client, rm *room.Room, team game.Team) error {
	reply := make(chan error, 1)
	select {
	case rm.Inbox() <- room.Join{Member: room.Member{ID: c.ID, Name: c.Name, Outbox: c.Outbox}, Team: team, Reply: reply}:
	case <-rm.Done():
		return fmt.Errorf("%w: room is closed", protocol.ErrRoomNotFound)
	}

	select {
	case err := <-reply:
		if err != nil {
			return err
		}
	case <-rm.Done():
		return fmt.Errorf("%w: room is closed", protocol.ErrRoomNotFound)
	}

	delete(g.players, c.ID)
	g.inRoom[c.ID] = rm.ID()
	return nil
}

func (g *Registry) handleReturn(c Client) {
	if _, ok := g.inRoom[c.ID]; !ok {
		if _, already := g.players[c.ID]; already {
			return
		}
	}
	delete(g.inRoom, c.ID)
	g.players[c.ID] = c
	g.broadcastLobbyState()
}

func (g *Registry) handleChat(msg Chat) {
	c, ok := g.players[msg.PlayerID]
	if !ok || msg.Text == "" {
		return
	}
	line := protocol.ChatLine{Sender: c.Name, Text: msg.Text, TS: time.Now()}
	g.appendChat(line)
	g.broadcastChat(line)
}

func (g *Registry) handleUpdate(u room.Update) {
	if u.Closed {
		delete(g.rooms, u.Summary.ID)
		delete(g.summaries, u.Summary.ID)
		g.cfg.Logger.Info("room closed", zap.String("room", u.Summary.ID))
	} else {
		g.summaries[u.Summary.ID] = u.Summary
	}
	g.broadcastLobbyState()
}

func (g *Registry) systemChat(text string) {
	line := protocol.ChatLine{Text: text, TS: time.Now()}
	g.appendChat(line)
	g.broadcastChat(line)
}

func (g *Registry) appendChat(line protocol.ChatLine) {
	g.chat = append(g.chat, line)
	if len(g.chat) > chatCap {
		g.chat = g.chat[len(g.chat)-chatCap:]
	}
}

func (g *Registry) roomList() []protocol.RoomSummary {
	list := make([]protocol.RoomSummary, 0, len(g.summaries))
	for _, s := range g.summaries {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func (g *Registry) playerList() []string {
	list := make([]string, 0, len(g.players))
	for _, c := range g.players {
		list = append(list, c.Name)
	}
	sort.Strings(list)
	return list
}

func (g *Registry) lobbyState() *protocol.LobbyState {
	return &protocol.LobbyState{Players: g.playerList(), Rooms: g.roomList()}
}

// broadcastLobbyState fans the directory snapshot out to every lobby member.
// Like the rooms, a member with a full outbox is dropped rather than blocked
// on.
func (g *Registry) broadcastLobbyState() {
	state := g.lobbyState()
	g.broadcast(protocol.ServerMessage{Type: protocol.MsgLobbyState, Lobby: state})
}

func (g *Registry) broadcastChat(line protocol.ChatLine) {
	g.broadcast(protocol.ServerMessage{
		Type: protocol.MsgChatEvent,
		Chat: &protocol.ChatEvent{Sender: line.Sender, Text: line.Text, TS: line.TS},
	})
}

func (g *Registry) broadcast(msg protocol.ServerMessage) {
	for id, c := range g.players {
		select {
		case c.Outbox <- msg:
		default:
			close(c.Outbox)
			delete(g.players, id)
			g.pruneName(id)
			g.cfg.Logger.Warn("dropping slow lobby member", zap.String("player", id))
		}
	}
}

func (g *Registry) recordRoom(id, name string) {
	rec := g.cfg.Recorder
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rec.RoomCreated(ctx, id, name); err != nil {
			g.cfg.Logger.Warn("room record failed", zap.String("room", id), zap.Error(err))
		}
	}()
}

func (g *Registry) newRoomID() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	for {
		code := make([]byte, 6)
		for i := range code {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
			if err != nil {
				return "", err
			}
			code[i] = charset[n.Int64()]
		}
		if _, exists := g.rooms[string(code)]; !exists {
			return string(code), nil
		}
	}
}

func (g *Registry) shutdown() {
	for _, rm := range g.rooms {
		select {
		case rm.Inbox() <- room.Shutdown{}:
		case <-rm.Done():
		}
	}
	clear(g.rooms)
	clear(g.summaries)
	for id, c := range g.players {
		close(c.Outbox)
		delete(g.players, id)
	}
	clear(g.names)
	clear(g.inRoom)
	g.cancel()
}
