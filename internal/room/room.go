// Package room runs one goroutine per room. All game and chat actions from a
// room's members funnel through its inbox, so they apply to the game state one
// at a time in arrival order.
package room

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/codenames-party/codenames-backend/internal/game"
	"github.com/codenames-party/codenames-backend/internal/protocol"
	"github.com/codenames-party/codenames-backend/internal/store"
)

const chatCap = 50

type seat struct {
	member    Member
	team      game.Team
	spymaster bool
}

func (s *seat) role() game.Role {
	if s.spymaster {
		return game.RoleSpymaster
	}
	return game.RoleOperative
}

type Config struct {
	Words     []string
	Rng       *rand.Rand
	TurnTimer time.Duration // zero disables the guess-phase timer
	Recorder  store.Recorder
	Logger    *zap.Logger
	Updates   chan<- Update
}

type Room struct {
	id    string
	name  string
	inbox chan Msg

	seats      []*seat // join order
	everJoined bool
	chat       []protocol.ChatLine
	state      game.State
	started    bool

	timerGen int

	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRoom(parent context.Context, id, name string, cfg Config) *Room {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Rng == nil {
		cfg.Rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Recorder == nil {
		cfg.Recorder = store.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := &Room{
		id:     id,
		name:   name,
		inbox:  make(chan Msg, 64),
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	go r.loop()
	return r
}

func (r *Room) ID() string { return r.id }

func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Done is closed once the room has shut down; senders use it to avoid waiting
// on a reply that will never come.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)

			case Leave:
				r.handleLeave(msg)

			case SetTeam:
				msg.Reply <- r.handleSetTeam(msg)

			case SetRole:
				msg.Reply <- r.handleSetRole(msg)

			case StartGame:
				msg.Reply <- r.handleStart(msg)

			case Act:
				msg.Reply <- r.handleAct(msg)

			case Chat:
				r.handleChat(msg)

			case timerFired:
				r.handleTimer(msg.gen)

			case GetState:
				msg.Reply <- View{
					Roster:     r.roster(),
					ChatLen:    len(r.chat),
					InProgress: r.inProgress(),
					State:      r.state,
					NumMembers: len(r.seats),
				}

			case Shutdown:
				r.shutdown()
				return
			}

			if r.everJoined && len(r.seats) == 0 {
				r.close()
				return
			}
		}
	}
}

func (r *Room) inProgress() bool {
	return r.started && r.state.Phase != game.PhaseOver
}

func (r *Room) find(playerID string) *seat {
	for _, s := range r.seats {
		if s.member.ID == playerID {
			return s
		}
	}
	return nil
}

// handleJoin acks the join before broadcasting, so the registry waiting on
// the reply is never stuck behind this room's own update channel.
func (r *Room) handleJoin(msg Join) {
	if r.inProgress() {
		msg.Reply <- fmt.Errorf("%w: game in progress", game.ErrInvalidAction)
		return
	}
	if r.find(msg.Member.ID) != nil {
		msg.Reply <- fmt.Errorf("%w: already in room", game.ErrInvalidAction)
		return
	}

	team := msg.Team
	if team != game.TeamRed && team != game.TeamBlue {
		team = r.smallerTeam()
	}
	r.seats = append(r.seats, &seat{member: msg.Member, team: team})
	r.everJoined = true
	msg.Reply <- nil

	r.systemChat(fmt.Sprintf("%s joined the room", msg.Member.Name))
	r.broadcastRoomState()
	r.reportUpdate()
}

func (r *Room) smallerTeam() game.Team {
	red, blue := 0, 0
	for _, s := range r.seats {
		if s.team == game.TeamRed {
			red++
		} else {
			blue++
		}
	}
	if blue < red {
		return game.TeamBlue
	}
	return game.TeamRed
}

// handleLeave removes a member; it is idempotent. A member leaving mid-game,
// by choice or by disconnect, forfeits their team.
func (r *Room) handleLeave(msg Leave) {
	s := r.find(msg.PlayerID)
	if msg.Reply != nil {
		msg.Reply <- s != nil
	}
	if s == nil {
		return
	}
	r.removeSeat(s)
	if msg.Disconnected {
		close(s.member.Outbox)
	}
	r.afterDeparture(s, msg.Disconnected)
}

func (r *Room) removeSeat(s *seat) {
	for i, cur := range r.seats {
		if cur == s {
			r.seats = append(r.seats[:i], r.seats[i+1:]...)
			return
		}
	}
}

func (r *Room) afterDeparture(s *seat, disconnected bool) {
	forfeited := false
	if r.inProgress() {
		winner := s.team.Other()
		r.state.Phase = game.PhaseOver
		r.state.Winner = winner
		r.state.GuessesLeft = 0
		r.timerGen++
		forfeited = true
		r.systemChat(fmt.Sprintf("%s forfeits, %s wins", s.team, winner))
		r.cfg.Logger.Info("team forfeited",
			zap.String("room", r.id),
			zap.String("player", s.member.ID),
			zap.String("winner", string(winner)))
	}

	if disconnected {
		r.systemChat(fmt.Sprintf("%s disconnected", s.member.Name))
	} else {
		r.systemChat(fmt.Sprintf("%s left the room", s.member.Name))
	}

	if forfeited {
		r.broadcastGameState()
		r.broadcastGameOver()
		r.record(r.cfg.Recorder.GameFinished)
	}
	r.broadcastRoomState()
	r.reportUpdate()
}

func (r *Room) handleSetTeam(msg SetTeam) error {
	if r.inProgress() {
		return fmt.Errorf("%w: cannot switch teams mid-game", game.ErrInvalidAction)
	}
	s := r.find(msg.PlayerID)
	if s == nil {
		return fmt.Errorf("%w: not a member", game.ErrInvalidAction)
	}
	if msg.Team != game.TeamRed && msg.Team != game.TeamBlue {
		return fmt.Errorf("%w: unknown team %q", game.ErrInvalidAction, msg.Team)
	}
	s.team = msg.Team
	s.spymaster = false // spymaster status does not follow across teams
	r.broadcastRoomState()
	return nil
}

func (r *Room) handleSetRole(msg SetRole) error {
	if r.inProgress() {
		return fmt.Errorf("%w: cannot change roles mid-game", game.ErrInvalidAction)
	}
	s := r.find(msg.PlayerID)
	if s == nil {
		return fmt.Errorf("%w: not a member", game.ErrInvalidAction)
	}
	if msg.Spymaster {
		// At most one spymaster per team.
		for _, cur := range r.seats {
			if cur != s && cur.team == s.team && cur.spymaster {
				cur.spymaster = false
			}
		}
	}
	s.spymaster = msg.Spymaster
	r.broadcastRoomState()
	return nil
}

func (r *Room) handleStart(msg StartGame) error {
	if r.find(msg.PlayerID) == nil {
		return fmt.Errorf("%w: not a member", game.ErrInvalidAction)
	}
	if r.inProgress() {
		return fmt.Errorf("%w: game already in progress", protocol.ErrRoomNotReady)
	}
	if err := r.checkReady(); err != nil {
		return err
	}

	starting := game.TeamRed
	if r.cfg.Rng.Intn(2) == 1 {
		starting = game.TeamBlue
	}
	board, err := game.Generate(r.cfg.Words, starting, r.cfg.Rng)
	if err != nil {
		return err
	}

	r.state = game.NewState(board, starting)
	r.started = true
	r.timerGen++

	r.systemChat(fmt.Sprintf("a new game has started, %s goes first", starting))
	r.cfg.Logger.Info("game started", zap.String("room", r.id), zap.String("starting", string(starting)))
	r.record(r.cfg.Recorder.GameStarted)

	r.broadcastGameState()
	r.reportUpdate()
	return nil
}

func (r *Room) checkReady() error {
	if len(r.seats) < 2 {
		return fmt.Errorf("%w: need at least 2 players", protocol.ErrRoomNotReady)
	}
	spymasters := map[game.Team]int{}
	operatives := map[game.Team]int{}
	for _, s := range r.seats {
		if s.spymaster {
			spymasters[s.team]++
		} else {
			operatives[s.team]++
		}
	}
	for _, team := range []game.Team{game.TeamRed, game.TeamBlue} {
		if spymasters[team]+operatives[team] == 0 {
			return fmt.Errorf("%w: team %s has no players", protocol.ErrRoomNotReady, team)
		}
		if spymasters[team] != 1 {
			return fmt.Errorf("%w: team %s needs exactly one spymaster", protocol.ErrRoomNotReady, team)
		}
		if operatives[team] == 0 {
			return fmt.Errorf("%w: team %s needs at least one operative", protocol.ErrRoomNotReady, team)
		}
	}
	return nil
}

func (r *Room) handleAct(msg Act) error {
	s := r.find(msg.PlayerID)
	if s == nil {
		return fmt.Errorf("%w: not a member", game.ErrInvalidAction)
	}
	if !r.started {
		return fmt.Errorf("%w: no game in progress", game.ErrInvalidAction)
	}

	cmd := game.Command{
		Type:      msg.Cmd,
		Team:      s.team,
		Role:      s.role(),
		Word:      msg.Word,
		Count:     msg.Count,
		CardIndex: msg.CardIndex,
	}
	events, newState, err := game.Apply(r.state, cmd)
	if err != nil {
		return err
	}

	r.state = newState
	r.applyEvents(s, events)
	return nil
}

func (r *Room) applyEvents(actor *seat, events []game.Event) {
	r.timerGen++

	for _, event := range events {
		switch event.Type {
		case game.EvtClueGiven:
			r.systemChat(fmt.Sprintf("%s gave clue %q (%d)", actor.member.Name, event.Clue.Word, event.Clue.Count))
		case game.EvtCardRevealed:
			r.systemChat(fmt.Sprintf("%s revealed %q (%s)", actor.member.Name, r.state.Board[event.CardIndex].Word, event.Owner))
		case game.EvtTurnPassed:
			r.systemChat(fmt.Sprintf("turn passes to %s", event.Team))
		case game.EvtGameCompleted:
			r.systemChat(fmt.Sprintf("game over: %s wins", event.Winner))
			r.cfg.Logger.Info("game finished", zap.String("room", r.id), zap.String("winner", string(event.Winner)))
			r.record(r.cfg.Recorder.GameFinished)
		}
	}

	r.broadcastGameState()
	if r.state.Phase == game.PhaseOver {
		r.broadcastGameOver()
		r.reportUpdate()
	} else if r.state.Phase == game.PhaseAwaitingGuess {
		r.armTimer()
	}
}

func (r *Room) armTimer() {
	if r.cfg.TurnTimer <= 0 {
		return
	}
	gen := r.timerGen
	time.AfterFunc(r.cfg.TurnTimer, func() {
		select {
		case r.inbox <- timerFired{gen: gen}:
		case <-r.ctx.Done():
		}
	})
}

// handleTimer passes the turn when a guess-phase timer expires. Stale fires,
// armed for an earlier turn, are dropped by the generation check.
func (r *Room) handleTimer(gen int) {
	if gen != r.timerGen || !r.inProgress() || r.state.Phase != game.PhaseAwaitingGuess {
		return
	}
	cmd := game.Command{Type: game.CmdEndTurn, Team: r.state.ActiveTeam, Role: game.RoleOperative}
	_, newState, err := game.Apply(r.state, cmd)
	if err != nil {
		return
	}
	r.state = newState
	r.timerGen++
	r.systemChat(fmt.Sprintf("time is up, turn passes to %s", r.state.ActiveTeam))
	r.broadcastGameState()
}

func (r *Room) handleChat(msg Chat) {
	s := r.find(msg.PlayerID)
	if s == nil || msg.Text == "" {
		return
	}
	line := protocol.ChatLine{Sender: s.member.Name, Text: msg.Text, TS: time.Now()}
	r.appendChat(line)
	r.broadcastChat(line)
}

func (r *Room) systemChat(text string) {
	line := protocol.ChatLine{Text: text, TS: time.Now()}
	r.appendChat(line)
	r.broadcastChat(line)
}

func (r *Room) appendChat(line protocol.ChatLine) {
	r.chat = append(r.chat, line)
	if len(r.chat) > chatCap {
		r.chat = r.chat[len(r.chat)-chatCap:]
	}
}

func (r *Room) roster() []protocol.Seat {
	roster := make([]protocol.Seat, len(r.seats))
	for i, s := range r.seats {
		roster[i] = protocol.Seat{
			PlayerID:  s.member.ID,
			Name:      s.member.Name,
			Team:      string(s.team),
			Spymaster: s.spymaster,
		}
	}
	return roster
}

func (r *Room) summary() protocol.RoomSummary {
	return protocol.RoomSummary{
		ID:         r.id,
		Name:       r.name,
		Players:    len(r.seats),
		InProgress: r.inProgress(),
	}
}

func (r *Room) reportUpdate() {
	if r.cfg.Updates == nil {
		return
	}
	select {
	case r.cfg.Updates <- Update{Summary: r.summary()}:
	case <-r.ctx.Done():
	}
}

func (r *Room) broadcastRoomState() {
	state := &protocol.RoomState{
		RoomID:   r.id,
		Name:     r.name,
		Roster:   r.roster(),
		ChatTail: append([]protocol.ChatLine(nil), r.chat...),
	}
	r.broadcast(func(*seat) protocol.ServerMessage {
		return protocol.ServerMessage{Type: protocol.MsgRoomState, Room: state}
	})
}

// broadcastGameState sends each member their own view of the board: full
// owners for spymasters, revealed-only for everyone else.
func (r *Room) broadcastGameState() {
	r.broadcast(func(s *seat) protocol.ServerMessage {
		return protocol.ServerMessage{
			Type: protocol.MsgGameState,
			Game: protocol.GameStateView(r.state, s.spymaster),
		}
	})
}

func (r *Room) broadcastGameOver() {
	msg := protocol.ServerMessage{
		Type: protocol.MsgGameOver,
		Over: &protocol.GameOver{Winner: string(r.state.Winner)},
	}
	r.broadcast(func(*seat) protocol.ServerMessage { return msg })
}

func (r *Room) broadcastChat(line protocol.ChatLine) {
	msg := protocol.ServerMessage{
		Type: protocol.MsgChatEvent,
		Chat: &protocol.ChatEvent{Sender: line.Sender, Text: line.Text, TS: line.TS},
	}
	r.broadcast(func(*seat) protocol.ServerMessage { return msg })
}

// broadcast delivers one message per member. A member whose outbox is full is
// dropped and handled like a disconnect, without blocking delivery to others.
func (r *Room) broadcast(build func(*seat) protocol.ServerMessage) {
	var dropped []*seat
	for _, s := range append([]*seat(nil), r.seats...) {
		select {
		case s.member.Outbox <- build(s):
		default:
			close(s.member.Outbox)
			r.removeSeat(s)
			dropped = append(dropped, s)
		}
	}
	for _, s := range dropped {
		r.cfg.Logger.Warn("dropping slow member", zap.String("room", r.id), zap.String("player", s.member.ID))
		r.afterDeparture(s, true)
	}
}

func (r *Room) record(fn func(context.Context, string, game.State) error) {
	state := r.state
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fn(ctx, r.id, state); err != nil {
			r.cfg.Logger.Warn("snapshot record failed", zap.String("room", r.id), zap.Error(err))
		}
	}()
}

// close tears the room down after its last member left.
func (r *Room) close() {
	r.cfg.Logger.Info("room emptied", zap.String("room", r.id))
	if r.cfg.Updates != nil {
		select {
		case r.cfg.Updates <- Update{Summary: r.summary(), Closed: true}:
		case <-r.ctx.Done():
		}
	}
	r.cancel()
}

func (r *Room) shutdown() {
	for _, s := range r.seats {
		close(s.member.Outbox)
	}
	r.seats = nil
	r.cancel()
}
