package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/luisclicio/fastzap-chat-app-tech-test/repository"
	"github.com/luisclicio/fastzap-chat-app-tech-test/services"
)

type AuthHandler struct {
	svc *services.AuthService
}

func NewAuthHandler(s *services.AuthService) *AuthHandler { return &AuthHandler{svc: s} }

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, "Invalid JSON", "Bad request format", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		respondWithError(w, "Missing fields", "Username and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.svc.Register(req.Username, req.Password)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, repository.ErrDuplicate) {
			status = http.StatusConflict
		}
		respondWithError(w, "Registration failed", err.Error(), status)
		return
	}

	token, err := h.svc.CreateToken(user.ID, user.Username)
	if err != nil {
		respondWithError(w, "Token creation failed", "Could not create authentication token", http.StatusInternalServerError)
		return
	}

	respondWithSuccess(w, map[string]any{
		"token": token,
		"user":  user,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, "Invalid JSON", "Bad request format", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		respondWithError(w, "Missing fields", "Username and password are required", http.StatusBadRequest)
		return
	}

	token, user, err := h.svc.Login(req.Username, req.Password)
	if err != nil {
		respondWithError(w, "Authentication failed", "Invalid credentials", http.StatusUnauthorized)
		return
	}

	respondWithSuccess(w, map[string]any{
		"token": token,
		"user":  user,
	})
}
