package room

import (
	"github.com/codenames-party/codenames-backend/internal/game"
	"github.com/codenames-party/codenames-backend/internal/protocol"
)

type Msg interface{ isRoomMsg() }

// Member is a connected player as the room sees it: identity plus the outbox
// the session layer drains. The room never reads from the connection.
type Member struct {
	ID     string
	Name   string
	Outbox chan protocol.ServerMessage
}

type Join struct {
	Member Member
	Team   game.Team // empty means auto-assign to the smaller team
	Reply  chan error
}

// Leave removes a player. Reply, when set, reports whether the player was
// still seated: a member the room already dropped for falling behind had their
// outbox closed here, so the leave must not be confirmed or the session would
// hand that dead channel back to the lobby.
type Leave struct {
	PlayerID     string
	Disconnected bool
	Reply        chan bool
}

type SetTeam struct {
	PlayerID string
	Team     game.Team
	Reply    chan error
}

type SetRole struct {
	PlayerID  string
	Spymaster bool
	Reply     chan error
}

type StartGame struct {
	PlayerID string
	Reply    chan error
}

// Act is one in-game action. The room resolves the actor's team and role from
// its roster before handing the command to the engine.
type Act struct {
	PlayerID  string
	Cmd       game.CommandType
	Word      string
	Count     int
	CardIndex int
	Reply     chan error
}

type Chat struct {
	PlayerID string
	Text     string
}

// GetState reflects internal state without data races; test-only.
type GetState struct {
	Reply chan View
}

type Shutdown struct{}

type timerFired struct{ gen int }

func (Join) isRoomMsg()       {}
func (Leave) isRoomMsg()      {}
func (SetTeam) isRoomMsg()    {}
func (SetRole) isRoomMsg()    {}
func (StartGame) isRoomMsg()  {}
func (Act) isRoomMsg()        {}
func (Chat) isRoomMsg()       {}
func (GetState) isRoomMsg()   {}
func (Shutdown) isRoomMsg()   {}
func (timerFired) isRoomMsg() {}

type View struct {
	Roster     []protocol.Seat
	ChatLen    int
	InProgress bool
	State      game.State
	NumMembers int
}

// Update is what the room reports back to the registry whenever its occupancy
// or progress flag changes. Closed marks the room's final update.
type Update struct {
	Summary protocol.RoomSummary
	Closed  bool
}
