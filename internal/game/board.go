package game

import (
	"errors"
	"fmt"
	"math/rand"
)

var ErrConfiguration = errors.New("bad word pool")

const (
	BoardSize = 25

	startingTeamCards = 9
	otherTeamCards    = 8
	neutralCards      = 7
	assassinCards     = 1
)

type CardOwner string

const (
	OwnerRed      CardOwner = "red"
	OwnerBlue     CardOwner = "blue"
	OwnerNeutral  CardOwner = "neutral"
	OwnerAssassin CardOwner = "assassin"
)

type Card struct {
	Word     string
	Owner    CardOwner
	Revealed bool
}

type Board []Card

// Generate samples 25 distinct words from pool and deals out the standard
// split: 9 for the starting team, 8 for the other, 7 neutral, 1 assassin.
// Word and owner assignment never change after this; only Revealed does.
func Generate(pool []string, starting Team, rng *rand.Rand) (Board, error) {
	seen := make(map[string]bool, len(pool))
	words := make([]string, 0, len(pool))
	for _, w := range pool {
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	if len(words) < BoardSize {
		return nil, fmt.Errorf("%w: need %d distinct words, have %d", ErrConfiguration, BoardSize, len(words))
	}

	rng.Shuffle(len(words), func(i, j int) { words[i], words[j] = words[j], words[i] })

	owners := make([]CardOwner, 0, BoardSize)
	for i := 0; i < startingTeamCards; i++ {
		owners = append(owners, starting.Owner())
	}
	for i := 0; i < otherTeamCards; i++ {
		owners = append(owners, starting.Other().Owner())
	}
	for i := 0; i < neutralCards; i++ {
		owners = append(owners, OwnerNeutral)
	}
	for i := 0; i < assassinCards; i++ {
		owners = append(owners, OwnerAssassin)
	}
	rng.Shuffle(len(owners), func(i, j int) { owners[i], owners[j] = owners[j], owners[i] })

	board := make(Board, BoardSize)
	for i := range board {
		board[i] = Card{Word: words[i], Owner: owners[i]}
	}
	return board, nil
}

// Unrevealed counts the cards still hidden for the given owner.
func (b Board) Unrevealed(owner CardOwner) int {
	n := 0
	for _, c := range b {
		if c.Owner == owner && !c.Revealed {
			n++
		}
	}
	return n
}

// Redacted returns a copy of the board with unrevealed owners blanked out.
// This is the only board shape an operative may ever see.
func (b Board) Redacted() Board {
	out := make(Board, len(b))
	for i, c := range b {
		if !c.Revealed {
			c.Owner = ""
		}
		out[i] = c
	}
	return out
}
