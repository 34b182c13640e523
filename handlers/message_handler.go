package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/luisclicio/fastzap-chat-app-tech-test/repository"
	"github.com/luisclicio/fastzap-chat-app-tech-test/services"
)

type MessageHandler struct {
	svc *services.MessageService
}

func NewMessageHandler(s *services.MessageService) *MessageHandler {
	return &MessageHandler{svc: s}
}

// List returns a room's approved messages, oldest first. Members only.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDParam(r)
	if err != nil {
		respondWithError(w, "Invalid parameter", "roomID must be a valid number", http.StatusBadRequest)
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	messages, err := h.svc.ListApproved(roomID, limit, CurrentUser(r))
	if err != nil {
		if errors.Is(err, repository.ErrNotAMember) {
			respondWithError(w, "Forbidden", "Only room members can list messages", http.StatusForbidden)
			return
		}
		respondWithError(w, "Internal error", "Failed to list messages", http.StatusInternalServerError)
		return
	}
	respondWithSuccess(w, messages)
}
