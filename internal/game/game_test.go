package game

import (
	"errors"
	"fmt"
	"testing"
)

// fixedBoard lays cards out deterministically: 9 for the starting team,
// then 8 for the other, 7 neutral, and the assassin at index 24.
func fixedBoard(starting Team) Board {
	board := make(Board, 0, BoardSize)
	for i := 0; i < 9; i++ {
		board = append(board, Card{Word: fmt.Sprintf("own%d", i), Owner: starting.Owner()})
	}
	for i := 0; i < 8; i++ {
		board = append(board, Card{Word: fmt.Sprintf("opp%d", i), Owner: starting.Other().Owner()})
	}
	for i := 0; i < 7; i++ {
		board = append(board, Card{Word: fmt.Sprintf("bystander%d", i), Owner: OwnerNeutral})
	}
	board = append(board, Card{Word: "assassin", Owner: OwnerAssassin})
	return board
}

func inGuessPhase(starting Team, guesses int) State {
	s := NewState(fixedBoard(starting), starting)
	s.Phase = PhaseAwaitingGuess
	s.Clue = Clue{Word: "ocean", Count: guesses - 1}
	s.GuessesLeft = guesses
	return s
}

func TestGiveClue(t *testing.T) {
	cases := []struct {
		name    string
		state   State
		cmd     Command
		wantErr error
	}{
		{
			name:  "spymaster of active team in clue phase",
			state: NewState(fixedBoard(TeamRed), TeamRed),
			cmd:   Command{Type: CmdGiveClue, Team: TeamRed, Role: RoleSpymaster, Word: "ocean", Count: 2},
		},
		{
			name:    "wrong team",
			state:   NewState(fixedBoard(TeamRed), TeamRed),
			cmd:     Command{Type: CmdGiveClue, Team: TeamBlue, Role: RoleSpymaster, Word: "ocean", Count: 2},
			wantErr: ErrInvalidAction,
		},
		{
			name:    "operative cannot give clues",
			state:   NewState(fixedBoard(TeamRed), TeamRed),
			cmd:     Command{Type: CmdGiveClue, Team: TeamRed, Role: RoleOperative, Word: "ocean", Count: 2},
			wantErr: ErrInvalidAction,
		},
		{
			name:    "negative count",
			state:   NewState(fixedBoard(TeamRed), TeamRed),
			cmd:     Command{Type: CmdGiveClue, Team: TeamRed, Role: RoleSpymaster, Word: "ocean", Count: -1},
			wantErr: ErrInvalidAction,
		},
		{
			name:    "wrong phase",
			state:   inGuessPhase(TeamRed, 2),
			cmd:     Command{Type: CmdGiveClue, Team: TeamRed, Role: RoleSpymaster, Word: "ocean", Count: 2},
			wantErr: ErrInvalidAction,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events, next, err := Apply(tc.state, tc.cmd)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				if next.Phase != tc.state.Phase {
					t.Fatalf("rejected command changed phase: %v -> %v", tc.state.Phase, next.Phase)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if next.Phase != PhaseAwaitingGuess {
				t.Fatalf("want AwaitingGuess, got %v", next.Phase)
			}
			if next.GuessesLeft != tc.cmd.Count+1 {
				t.Fatalf("want %d guesses (count+1), got %d", tc.cmd.Count+1, next.GuessesLeft)
			}
			if !ContainsEvent(events, EvtClueGiven) {
				t.Fatalf("expected EvtClueGiven")
			}
		})
	}
}

func TestRevealOwnCard_DecrementsAndMayKeepTurn(t *testing.T) {
	s := inGuessPhase(TeamRed, 3)

	events, next, err := Apply(s, Command{Type: CmdRevealCard, Team: TeamRed, Role: RoleOperative, CardIndex: 0})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !next.Board[0].Revealed {
		t.Fatalf("card 0 should be revealed")
	}
	if next.GuessesLeft != 2 {
		t.Fatalf("want 2 guesses left, got %d", next.GuessesLeft)
	}
	if next.Phase != PhaseAwaitingGuess || next.ActiveTeam != TeamRed {
		t.Fatalf("turn should continue for red, got phase=%v team=%v", next.Phase, next.ActiveTeam)
	}
	if ContainsEvent(events, EvtTurnPassed) {
		t.Fatalf("turn must not pass while guesses remain")
	}

	// The input state must not have been mutated.
	if s.Board[0].Revealed {
		t.Fatalf("Apply mutated input board")
	}
}

func TestRevealOwnCard_LastGuessPassesTurn(t *testing.T) {
	s := inGuessPhase(TeamRed, 1)

	events, next, err := Apply(s, Command{Type: CmdRevealCard, Team: TeamRed, Role: RoleOperative, CardIndex: 0})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !ContainsEvent(events, EvtTurnPassed) {
		t.Fatalf("expected EvtTurnPassed on last guess")
	}
	if next.ActiveTeam != TeamBlue || next.Phase != PhaseAwaitingClue {
		t.Fatalf("want blue AwaitingClue, got %v %v", next.ActiveTeam, next.Phase)
	}
	if next.Clue != (Clue{}) {
		t.Fatalf("clue should be cleared on turn pass, got %+v", next.Clue)
	}
}

func TestRevealOpponentCard_PassesTurnImmediately(t *testing.T) {
	s := inGuessPhase(TeamRed, 3) // clue "ocean" 2, guesses 3

	events, next, err := Apply(s, Command{Type: CmdRevealCard, Team: TeamRed, Role: RoleOperative, CardIndex: 9})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !ContainsEvent(events, EvtTurnPassed) {
		t.Fatalf("expected immediate turn pass on opponent card")
	}
	if next.ActiveTeam != TeamBlue || next.Phase != PhaseAwaitingClue {
		t.Fatalf("want blue AwaitingClue, got %v %v", next.ActiveTeam, next.Phase)
	}
	if next.GuessesLeft != 0 {
		t.Fatalf("guesses should reset on pass, got %d", next.GuessesLeft)
	}
}

func TestRevealNeutralCard_PassesTurn(t *testing.T) {
	s := inGuessPhase(TeamRed, 3)

	events, next, err := Apply(s, Command{Type: CmdRevealCard, Team: TeamRed, Role: RoleOperative, CardIndex: 17})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !ContainsEvent(events, EvtTurnPassed) || next.ActiveTeam != TeamBlue {
		t.Fatalf("neutral reveal should pass turn to blue")
	}
}

func TestRevealAssassin_OpponentWinsRegardlessOfGuesses(t *testing.T) {
	for _, guesses := range []int{1, 5} {
		s := inGuessPhase(TeamRed, guesses)

		events, next, err := Apply(s, Command{Type: CmdRevealCard, Team: TeamRed, Role: RoleOperative, CardIndex: 24})
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if !ContainsEvent(events, EvtGameCompleted) {
			t.Fatalf("expected EvtGameCompleted")
		}
		if next.Winner != TeamBlue || next.Phase != PhaseOver {
			t.Fatalf("assassin should hand blue the win, got winner=%v phase=%v", next.Winner, next.Phase)
		}
	}
}

func TestWinDetectedMidStreak(t *testing.T) {
	s := inGuessPhase(TeamRed, 5)
	for i := 0; i < 8; i++ {
		s.Board[i].Revealed = true
	}

	// Red reveals its last own card with guesses to spare.
	events, next, err := Apply(s, Command{Type: CmdRevealCard, Team: TeamRed, Role: RoleOperative, CardIndex: 8})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !ContainsEvent(events, EvtGameCompleted) {
		t.Fatalf("win must be detected the instant the last card is revealed")
	}
	if next.Winner != TeamRed {
		t.Fatalf("want red winner, got %v", next.Winner)
	}
}

func TestRevealOpponentsLastCard_OpponentWins(t *testing.T) {
	s := inGuessPhase(TeamRed, 3)
	for i := 9; i < 16; i++ {
		s.Board[i].Revealed = true
	}

	// Red reveals blue's final card: blue wins instead of a plain turn pass.
	events, next, err := Apply(s, Command{Type: CmdRevealCard, Team: TeamRed, Role: RoleOperative, CardIndex: 16})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !ContainsEvent(events, EvtGameCompleted) || next.Winner != TeamBlue {
		t.Fatalf("want blue win on their last card, got winner=%v", next.Winner)
	}
}

func TestRevealCard_Rejections(t *testing.T) {
	revealed := inGuessPhase(TeamRed, 3)
	revealed.Board[3].Revealed = true

	cases := []struct {
		name  string
		state State
		cmd   Command
	}{
		{
			name:  "out of range index",
			state: inGuessPhase(TeamRed, 3),
			cmd:   Command{Type: CmdRevealCard, Team: TeamRed, Role: RoleOperative, CardIndex: 25},
		},
		{
			name:  "negative index",
			state: inGuessPhase(TeamRed, 3),
			cmd:   Command{Type: CmdRevealCard, Team: TeamRed, Role: RoleOperative, CardIndex: -1},
		},
		{
			name:  "already revealed card",
			state: revealed,
			cmd:   Command{Type: CmdRevealCard, Team: TeamRed, Role: RoleOperative, CardIndex: 3},
		},
		{
			name:  "inactive team",
			state: inGuessPhase(TeamRed, 3),
			cmd:   Command{Type: CmdRevealCard, Team: TeamBlue, Role: RoleOperative, CardIndex: 0},
		},
		{
			name:  "spymaster cannot guess",
			state: inGuessPhase(TeamRed, 3),
			cmd:   Command{Type: CmdRevealCard, Team: TeamRed, Role: RoleSpymaster, CardIndex: 0},
		},
		{
			name:  "guessing during clue phase",
			state: NewState(fixedBoard(TeamRed), TeamRed),
			cmd:   Command{Type: CmdRevealCard, Team: TeamRed, Role: RoleOperative, CardIndex: 0},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, next, err := Apply(tc.state, tc.cmd)
			if !errors.Is(err, ErrInvalidAction) {
				t.Fatalf("want ErrInvalidAction, got %v", err)
			}
			for i := range next.Board {
				if next.Board[i].Revealed != tc.state.Board[i].Revealed {
					t.Fatalf("rejected guess changed revealed state at %d", i)
				}
			}
		})
	}
}

func TestEndTurn(t *testing.T) {
	s := inGuessPhase(TeamRed, 3)

	events, next, err := Apply(s, Command{Type: CmdEndTurn, Team: TeamRed, Role: RoleOperative})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !ContainsEvent(events, EvtTurnPassed) || next.ActiveTeam != TeamBlue {
		t.Fatalf("end_turn should pass to blue")
	}

	// Only active-team operatives may pass, and only mid-guess.
	if _, _, err := Apply(s, Command{Type: CmdEndTurn, Team: TeamBlue, Role: RoleOperative}); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("want ErrInvalidAction for inactive team, got %v", err)
	}
	if _, _, err := Apply(s, Command{Type: CmdEndTurn, Team: TeamRed, Role: RoleSpymaster}); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("want ErrInvalidAction for spymaster, got %v", err)
	}
	clue := NewState(fixedBoard(TeamRed), TeamRed)
	if _, _, err := Apply(clue, Command{Type: CmdEndTurn, Team: TeamRed, Role: RoleOperative}); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("want ErrInvalidAction during clue phase, got %v", err)
	}
}

func TestFinishedGameRejectsEverything(t *testing.T) {
	s := inGuessPhase(TeamRed, 3)
	_, over, err := Apply(s, Command{Type: CmdRevealCard, Team: TeamRed, Role: RoleOperative, CardIndex: 24})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	cmds := []Command{
		{Type: CmdGiveClue, Team: TeamBlue, Role: RoleSpymaster, Word: "x", Count: 1},
		{Type: CmdRevealCard, Team: TeamBlue, Role: RoleOperative, CardIndex: 9},
		{Type: CmdEndTurn, Team: TeamBlue, Role: RoleOperative},
	}
	for _, cmd := range cmds {
		_, next, err := Apply(over, cmd)
		if !errors.Is(err, ErrGameAlreadyOver) {
			t.Fatalf("%s: want ErrGameAlreadyOver, got %v", cmd.Type, err)
		}
		for i := range next.Board {
			if next.Board[i].Revealed != over.Board[i].Revealed {
				t.Fatalf("terminal state mutated by %s", cmd.Type)
			}
		}
	}
}

func TestScenario_ClueThenOpponentCardPassesTurn(t *testing.T) {
	// Red spymaster gives "ocean"/2, red gets 3 guesses, then a blue-owned
	// reveal hands the turn to blue with the budget cleared.
	s := NewState(fixedBoard(TeamRed), TeamRed)

	_, s, err := Apply(s, Command{Type: CmdGiveClue, Team: TeamRed, Role: RoleSpymaster, Word: "ocean", Count: 2})
	if err != nil {
		t.Fatalf("clue: %v", err)
	}
	if s.GuessesLeft != 3 {
		t.Fatalf("want 3 guesses after ocean/2, got %d", s.GuessesLeft)
	}

	_, s, err = Apply(s, Command{Type: CmdRevealCard, Team: TeamRed, Role: RoleOperative, CardIndex: 9})
	if err != nil {
		t.Fatalf("guess: %v", err)
	}
	if s.ActiveTeam != TeamBlue || s.Phase != PhaseAwaitingClue || s.GuessesLeft != 0 {
		t.Fatalf("want blue AwaitingClue with no guesses, got %v %v %d", s.ActiveTeam, s.Phase, s.GuessesLeft)
	}
}
