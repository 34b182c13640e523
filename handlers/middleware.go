package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/luisclicio/fastzap-chat-app-tech-test/models"
	"github.com/luisclicio/fastzap-chat-app-tech-test/repository"
	"github.com/luisclicio/fastzap-chat-app-tech-test/services"
)

type contextKey int

const userContextKey contextKey = iota

// CurrentUser returns the authenticated user stored by RequireAuth, or
// nil outside an authenticated request.
func CurrentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(userContextKey).(*models.User)
	return user
}

// RequireAuth resolves the bearer token to a user and stores it on the
// request context. Requests without a verifiable identity get 401.
func RequireAuth(authSvc *services.AuthService, users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" {
				respondWithError(w, "Unauthorized", "Missing Authorization header", http.StatusUnauthorized)
				return
			}
			userID, _, err := authSvc.ParseToken(token)
			if err != nil {
				respondWithError(w, "Unauthorized", "Invalid token", http.StatusUnauthorized)
				return
			}
			user, err := users.FindByID(userID)
			if err != nil {
				respondWithError(w, "Unauthorized", "Unknown user", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger logs method, path, and timing per request.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
