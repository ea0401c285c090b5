package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/codenames-party/codenames-backend/internal/protocol"
	"github.com/codenames-party/codenames-backend/internal/registry"
)

// ListRooms exposes the registry's room directory for ops and debugging; game
// clients get the same data pushed as lobby_state events.
func ListRooms(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan []protocol.RoomSummary, 1)
		reg.Inbox() <- registry.ListRooms{Reply: reply}

		select {
		case rooms := <-reply:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(struct {
				Rooms []protocol.RoomSummary `json:"rooms"`
			}{Rooms: rooms})
		case <-r.Context().Done():
			http.Error(w, "timeout", http.StatusServiceUnavailable)
		}
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
