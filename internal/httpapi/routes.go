package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/codenames-party/codenames-backend/internal/registry"
	"github.com/codenames-party/codenames-backend/internal/session"
)

func SetupRoutes(reg *registry.Registry, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/rooms", ListRooms(reg))
	r.Get("/ws", session.Handler(reg, log))
	return r
}
