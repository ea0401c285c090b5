package game

import (
	"errors"
	"slices"
)

var ErrInvalidAction = errors.New("invalid action")
var ErrGameAlreadyOver = errors.New("game already over")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Team string

const (
	TeamRed  Team = "red"
	TeamBlue Team = "blue"
)

func (t Team) Other() Team {
	if t == TeamRed {
		return TeamBlue
	}
	return TeamRed
}

func (t Team) Owner() CardOwner { return CardOwner(t) }

type Role string

const (
	RoleSpymaster Role = "spymaster"
	RoleOperative Role = "operative"
)

type Phase string

const (
	PhaseAwaitingClue  Phase = "awaiting_clue"
	PhaseAwaitingGuess Phase = "awaiting_guess"
	PhaseOver          Phase = "over"
)

type Clue struct {
	Word  string
	Count int
}

const maxClueCount = 9

// State is one room's authoritative game state. Values are cheap to copy;
// Apply never mutates its input, so a rejected command leaves the caller's
// state untouched.
type State struct {
	Board       Board
	ActiveTeam  Team
	Phase       Phase
	Clue        Clue
	GuessesLeft int
	Winner      Team // empty until the game is decided
}

func NewState(board Board, starting Team) State {
	return State{
		Board:      board,
		ActiveTeam: starting,
		Phase:      PhaseAwaitingClue,
	}
}

type CommandType string

const (
	CmdGiveClue   CommandType = "GiveClue"
	CmdRevealCard CommandType = "RevealCard"
	CmdEndTurn    CommandType = "EndTurn"
)

// Command carries the acting player's team and role; the room resolves those
// from its roster before calling Apply.
type Command struct {
	Type      CommandType
	Team      Team
	Role      Role
	Word      string
	Count     int
	CardIndex int
}

type EventType string

const (
	EvtClueGiven     EventType = "ClueGiven"
	EvtCardRevealed  EventType = "CardRevealed"
	EvtTurnPassed    EventType = "TurnPassed"
	EvtGameCompleted EventType = "GameCompleted"
)

type Event struct {
	Type      EventType
	Team      Team
	Clue      Clue
	CardIndex int
	Owner     CardOwner
	Winner    Team
}

// Apply runs one command against the state and returns the events it caused
// plus the successor state. The win check happens on every reveal, so once a
// GameCompleted event has been emitted every later command fails with
// ErrGameAlreadyOver.
func Apply(s State, cmd Command) ([]Event, State, error) {
	if s.Phase == PhaseOver {
		return nil, s, ErrGameAlreadyOver
	}

	switch cmd.Type {
	case CmdGiveClue:
		if s.Phase != PhaseAwaitingClue || cmd.Team != s.ActiveTeam || cmd.Role != RoleSpymaster {
			return nil, s, ErrInvalidAction
		}
		if cmd.Word == "" || cmd.Count < 0 || cmd.Count > maxClueCount {
			return nil, s, ErrInvalidAction
		}

		newState := s
		newState.Clue = Clue{Word: cmd.Word, Count: cmd.Count}
		newState.GuessesLeft = cmd.Count + 1 // one bonus guess
		newState.Phase = PhaseAwaitingGuess

		events := []Event{{Type: EvtClueGiven, Team: cmd.Team, Clue: newState.Clue}}
		return events, newState, nil

	case CmdRevealCard:
		if s.Phase != PhaseAwaitingGuess || cmd.Team != s.ActiveTeam || cmd.Role != RoleOperative {
			return nil, s, ErrInvalidAction
		}
		if cmd.CardIndex < 0 || cmd.CardIndex >= len(s.Board) {
			return nil, s, ErrInvalidAction
		}
		if s.Board[cmd.CardIndex].Revealed {
			return nil, s, ErrInvalidAction
		}

		newState := s
		newState.Board = slices.Clone(s.Board)
		newState.Board[cmd.CardIndex].Revealed = true
		owner := newState.Board[cmd.CardIndex].Owner

		events := []Event{{Type: EvtCardRevealed, Team: cmd.Team, CardIndex: cmd.CardIndex, Owner: owner}}

		switch owner {
		case OwnerAssassin:
			return append(events, complete(&newState, s.ActiveTeam.Other())), newState, nil

		case s.ActiveTeam.Owner():
			newState.GuessesLeft--
			if newState.Board.Unrevealed(s.ActiveTeam.Owner()) == 0 {
				return append(events, complete(&newState, s.ActiveTeam)), newState, nil
			}
			if newState.GuessesLeft == 0 {
				return append(events, passTurn(&newState)), newState, nil
			}
			return events, newState, nil

		default:
			// Neutral or the other team's card: the turn ends no matter how
			// many guesses were left, and revealing the opponent's last card
			// hands them the win.
			other := s.ActiveTeam.Other()
			if owner == other.Owner() && newState.Board.Unrevealed(other.Owner()) == 0 {
				return append(events, complete(&newState, other)), newState, nil
			}
			return append(events, passTurn(&newState)), newState, nil
		}

	case CmdEndTurn:
		if s.Phase != PhaseAwaitingGuess || cmd.Team != s.ActiveTeam || cmd.Role != RoleOperative {
			return nil, s, ErrInvalidAction
		}
		newState := s
		return []Event{passTurn(&newState)}, newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func passTurn(s *State) Event {
	s.ActiveTeam = s.ActiveTeam.Other()
	s.Phase = PhaseAwaitingClue
	s.Clue = Clue{}
	s.GuessesLeft = 0
	return Event{Type: EvtTurnPassed, Team: s.ActiveTeam}
}

func complete(s *State, winner Team) Event {
	s.Phase = PhaseOver
	s.Winner = winner
	s.GuessesLeft = 0
	return Event{Type: EvtGameCompleted, Winner: winner}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
