package protocol

import (
	"errors"

	"github.com/codenames-party/codenames-backend/internal/game"
)

// Room and registry level rejections. Engine-level kinds come from the game
// package sentinels.
var ErrRoomNotReady = errors.New("room not ready")
var ErrDuplicateName = errors.New("duplicate name")
var ErrNotInRoom = errors.New("not in a room")
var ErrRoomNotFound = errors.New("room not found")

// Error kinds carried in ERROR messages.
const (
	KindInvalidAction = "invalid_action"
	KindRoomNotReady  = "room_not_ready"
	KindGameOver      = "game_already_over"
	KindDuplicateName = "duplicate_name"
	KindConfiguration = "configuration"
	KindInternal      = "internal"
)

// KindOf maps a rejection to its wire kind.
func KindOf(err error) string {
	switch {
	case errors.Is(err, game.ErrGameAlreadyOver):
		return KindGameOver
	case errors.Is(err, game.ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrRoomNotReady):
		return KindRoomNotReady
	case errors.Is(err, ErrDuplicateName):
		return KindDuplicateName
	case errors.Is(err, game.ErrInvalidAction),
		errors.Is(err, ErrNotInRoom),
		errors.Is(err, ErrRoomNotFound):
		return KindInvalidAction
	default:
		return KindInternal
	}
}

// ErrorMessage builds the ERROR event for a rejected action.
func ErrorMessage(err error) ServerMessage {
	return ServerMessage{Type: MsgError, Error: &Error{Kind: KindOf(err), Message: err.Error()}}
}
