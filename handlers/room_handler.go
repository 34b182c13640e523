package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/luisclicio/fastzap-chat-app-tech-test/repository"
	"github.com/luisclicio/fastzap-chat-app-tech-test/services"
)

type RoomHandler struct {
	svc *services.RoomService
}

func NewRoomHandler(s *services.RoomService) *RoomHandler { return &RoomHandler{svc: s} }

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.svc.ListRooms(CurrentUser(r))
	if err != nil {
		respondWithError(w, "Internal error", "Failed to list rooms", http.StatusInternalServerError)
		return
	}
	respondWithSuccess(w, rooms)
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		IsPrivate   bool   `json:"is_private"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, "Invalid JSON", "Bad request format", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		respondWithError(w, "Missing name", "Room name is required", http.StatusBadRequest)
		return
	}

	room, err := h.svc.CreateRoom(req.Name, req.Description, req.IsPrivate, CurrentUser(r))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrForbidden):
			respondWithError(w, "Forbidden", "Only staff can create rooms", http.StatusForbidden)
		case errors.Is(err, repository.ErrDuplicate):
			respondWithError(w, "Room creation failed", "Room name already exists", http.StatusConflict)
		default:
			respondWithError(w, "Room creation failed", err.Error(), http.StatusBadRequest)
		}
		return
	}
	respondWithSuccess(w, room)
}

func (h *RoomHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDParam(r)
	if err != nil {
		respondWithError(w, "Invalid parameter", "roomID must be a valid number", http.StatusBadRequest)
		return
	}

	var req struct {
		UserID int `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, "Invalid JSON", "Bad request format", http.StatusBadRequest)
		return
	}

	if err := h.svc.AddMember(roomID, req.UserID, CurrentUser(r)); err != nil {
		switch {
		case errors.Is(err, services.ErrForbidden):
			respondWithError(w, "Forbidden", "Only staff can manage members", http.StatusForbidden)
		case errors.Is(err, repository.ErrNotFound):
			respondWithError(w, "Not found", "Room or user not found", http.StatusNotFound)
		default:
			respondWithError(w, "Internal error", "Failed to add member", http.StatusInternalServerError)
		}
		return
	}
	respondWithSuccess(w, map[string]any{"room_id": roomID, "user_id": req.UserID})
}

func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDParam(r)
	if err != nil {
		respondWithError(w, "Invalid parameter", "roomID must be a valid number", http.StatusBadRequest)
		return
	}

	if err := h.svc.DeleteRoom(roomID, CurrentUser(r)); err != nil {
		switch {
		case errors.Is(err, services.ErrForbidden):
			respondWithError(w, "Forbidden", "Only staff can delete rooms", http.StatusForbidden)
		case errors.Is(err, repository.ErrNotFound):
			respondWithError(w, "Not found", "Room not found", http.StatusNotFound)
		default:
			respondWithError(w, "Internal error", "Failed to delete room", http.StatusInternalServerError)
		}
		return
	}
	respondWithSuccess(w, map[string]any{"deleted": roomID})
}

func roomIDParam(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "roomID"))
}
