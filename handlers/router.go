package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/luisclicio/fastzap-chat-app-tech-test/repository"
	"github.com/luisclicio/fastzap-chat-app-tech-test/services"
	"github.com/luisclicio/fastzap-chat-app-tech-test/ws"
)

type RouterDeps struct {
	AuthService    *services.AuthService
	RoomService    *services.RoomService
	MessageService *services.MessageService
	Users          repository.UserRepository
	Hub            *ws.Hub
	Log            *zap.Logger
}

// NewRouter assembles the HTTP surface: the thin CRUD boundary under
// /api and the live connection endpoint at /rooms/{roomID}.
func NewRouter(deps RouterDeps) chi.Router {
	authH := NewAuthHandler(deps.AuthService)
	roomH := NewRoomHandler(deps.RoomService)
	msgH := NewMessageHandler(deps.MessageService)
	wsH := NewWSHandler(deps.Hub, deps.AuthService, deps.Log)

	r := chi.NewRouter()
	r.Use(RequestLogger(deps.Log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondWithSuccess(w, map[string]string{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", authH.Register)
		r.Post("/login", authH.Login)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(deps.AuthService, deps.Users))
			r.Get("/rooms", roomH.List)
			r.Post("/rooms", roomH.Create)
			r.Delete("/rooms/{roomID}", roomH.Delete)
			r.Post("/rooms/{roomID}/members", roomH.AddMember)
			r.Get("/rooms/{roomID}/messages", msgH.List)
		})
	})

	// Live connection endpoint; credential arrives out-of-band of the
	// CRUD API, as a handshake query parameter.
	r.Get("/rooms/{roomID}", wsH.Serve)

	return r
}
