// Package protocol defines the tagged JSON messages exchanged over a session's
// websocket. One message is one client intent or one server event.
package protocol

import (
	"time"

	"github.com/codenames-party/codenames-backend/internal/game"
)

// Client -> server message types. This is a closed set; anything else is
// answered with an error message.
const (
	MsgJoinLobby   = "join_lobby"
	MsgCreateRoom  = "create_room"
	MsgJoinRoom    = "join_room"
	MsgLeaveRoom   = "leave_room"
	MsgSetTeam     = "set_team"
	MsgSetRole     = "set_role"
	MsgStartGame   = "start_game"
	MsgSubmitClue  = "submit_clue"
	MsgSubmitGuess = "submit_guess"
	MsgEndTurn     = "end_turn"
	MsgChat        = "chat"
)

// Server -> client message types.
const (
	MsgLobbyState = "lobby_state"
	MsgRoomState  = "room_state"
	MsgGameState  = "game_state"
	MsgGameOver   = "game_over"
	MsgChatEvent  = "chat_event"
	MsgError      = "error"
)

type ClientMessage struct {
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`
	RoomID    string `json:"room_id,omitempty"`
	Team      string `json:"team,omitempty"`
	Spymaster bool   `json:"spymaster,omitempty"`
	Word      string `json:"word,omitempty"`
	Count     int    `json:"count,omitempty"`
	CardIndex int    `json:"card_index,omitempty"`
	Text      string `json:"text,omitempty"`
}

type ServerMessage struct {
	Type  string      `json:"type"`
	Lobby *LobbyState `json:"lobby,omitempty"`
	Room  *RoomState  `json:"room,omitempty"`
	Game  *GameState  `json:"game,omitempty"`
	Over  *GameOver   `json:"over,omitempty"`
	Chat  *ChatEvent  `json:"chat,omitempty"`
	Error *Error      `json:"error,omitempty"`
}

type RoomSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Players    int    `json:"players"`
	InProgress bool   `json:"in_progress"`
}

type LobbyState struct {
	Players []string      `json:"players"`
	Rooms   []RoomSummary `json:"rooms"`
}

type Seat struct {
	PlayerID  string `json:"player_id"`
	Name      string `json:"name"`
	Team      string `json:"team,omitempty"`
	Spymaster bool   `json:"spymaster,omitempty"`
}

type ChatLine struct {
	Sender string    `json:"sender"` // empty for system lines
	Text   string    `json:"text"`
	TS     time.Time `json:"ts"`
}

type RoomState struct {
	RoomID   string     `json:"room_id"`
	Name     string     `json:"name"`
	Roster   []Seat     `json:"roster"`
	ChatTail []ChatLine `json:"chat_tail,omitempty"`
}

// CardView is a board card as a particular member is allowed to see it. Owner
// is empty on every unrevealed card unless the recipient is a spymaster.
type CardView struct {
	Word     string `json:"word"`
	Owner    string `json:"owner,omitempty"`
	Revealed bool   `json:"revealed"`
}

type ClueView struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

type GameState struct {
	Board            []CardView `json:"board"`
	Phase            string     `json:"phase"`
	ActiveTeam       string     `json:"active_team"`
	Clue             *ClueView  `json:"clue,omitempty"`
	GuessesRemaining int        `json:"guesses_remaining"`
}

type GameOver struct {
	Winner string `json:"winner"`
}

type ChatEvent struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	TS     time.Time `json:"ts"`
}

type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// BoardView renders a board for one recipient, applying the redaction rule
// for non-spymasters.
func BoardView(board game.Board, spymaster bool) []CardView {
	if !spymaster {
		board = board.Redacted()
	}
	view := make([]CardView, len(board))
	for i, c := range board {
		view[i] = CardView{Word: c.Word, Owner: string(c.Owner), Revealed: c.Revealed}
	}
	return view
}

// GameStateView renders the full per-member game snapshot.
func GameStateView(s game.State, spymaster bool) *GameState {
	gs := &GameState{
		Board:            BoardView(s.Board, spymaster),
		Phase:            string(s.Phase),
		ActiveTeam:       string(s.ActiveTeam),
		GuessesRemaining: s.GuessesLeft,
	}
	if s.Phase == game.PhaseAwaitingGuess {
		gs.Clue = &ClueView{Word: s.Clue.Word, Count: s.Clue.Count}
	}
	return gs
}
