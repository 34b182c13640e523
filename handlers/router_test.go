package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luisclicio/fastzap-chat-app-tech-test/broker"
	"github.com/luisclicio/fastzap-chat-app-tech-test/config"
	"github.com/luisclicio/fastzap-chat-app-tech-test/handlers"
	"github.com/luisclicio/fastzap-chat-app-tech-test/models"
	"github.com/luisclicio/fastzap-chat-app-tech-test/repository"
	"github.com/luisclicio/fastzap-chat-app-tech-test/services"
	"github.com/luisclicio/fastzap-chat-app-tech-test/ws"
)

// testApp wires the full server against in-memory stores, the in-process
// broker, and a scripted classifier, exposed through httptest.
type testApp struct {
	ts          *httptest.Server
	hub         *ws.Hub
	authSvc     *services.AuthService
	users       *repository.InMemoryUserRepo
	rooms       *repository.InMemoryRoomRepo
	memberships *repository.InMemoryMembershipRepo
	messages    *repository.InMemoryMessageRepo
}

type scriptedClassifier struct {
	fn func(content string) (bool, error)
}

func (c scriptedClassifier) Classify(_ context.Context, content string) (bool, error) {
	return c.fn(content)
}

func newTestApp(t *testing.T, classify func(content string) (bool, error)) *testApp {
	t.Helper()

	users := repository.NewInMemoryUserRepo()
	rooms := repository.NewInMemoryRoomRepo()
	memberships := repository.NewInMemoryMembershipRepo(users)
	messages := repository.NewInMemoryMessageRepo()
	b := broker.NewMemoryBroker()
	log := zap.NewNop()

	moderation := services.NewModerationService(messages, users, b, scriptedClassifier{fn: classify}, services.ModerationConfig{
		Backoff: time.Millisecond,
		Timeout: time.Second,
	}, log)

	hub := ws.NewHub(b, memberships, moderation, ws.Options{AllowedOrigins: []string{"*"}}, log)
	go hub.Run()

	cfg := &config.Config{JWTSecret: "test-secret", JWTExpiry: 1}
	authSvc := services.NewAuthService(users, cfg)
	roomSvc := services.NewRoomService(rooms, memberships, users)
	msgSvc := services.NewMessageService(messages, memberships, users)

	ts := httptest.NewServer(handlers.NewRouter(handlers.RouterDeps{
		AuthService:    authSvc,
		RoomService:    roomSvc,
		MessageService: msgSvc,
		Users:          users,
		Hub:            hub,
		Log:            log,
	}))

	t.Cleanup(func() {
		ts.Close()
		hub.Shutdown(2 * time.Second)
		moderation.Close()
		b.Close()
	})

	return &testApp{
		ts:          ts,
		hub:         hub,
		authSvc:     authSvc,
		users:       users,
		rooms:       rooms,
		memberships: memberships,
		messages:    messages,
	}
}

func (a *testApp) createUser(t *testing.T, username string, isStaff bool) (*models.User, string) {
	t.Helper()
	user, err := a.users.Create(username, "irrelevant-hash", isStaff)
	require.NoError(t, err)
	token, err := a.authSvc.CreateToken(user.ID, user.Username)
	require.NoError(t, err)
	return user, token
}

func (a *testApp) request(t *testing.T, method, path, token string, body any) (*http.Response, json.RawMessage) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.ts.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	json.NewDecoder(resp.Body).Decode(&envelope)
	return resp, envelope.Data
}

func TestAPI_RegisterAndLogin(t *testing.T) {
	app := newTestApp(t, func(string) (bool, error) { return true, nil })

	resp, data := app.request(t, http.MethodPost, "/api/register", "", map[string]string{
		"username": "alice",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var registered struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(data, &registered))
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "alice", registered.User.Username)

	// Duplicate username.
	resp, _ = app.request(t, http.MethodPost, "/api/register", "", map[string]string{
		"username": "alice",
		"password": "password123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = app.request(t, http.MethodPost, "/api/login", "", map[string]string{
		"username": "alice",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, data = app.request(t, http.MethodPost, "/api/login", "", map[string]string{
		"username": "alice",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &registered))
	assert.NotEmpty(t, registered.Token)
}

func TestAPI_RoomLifecycle(t *testing.T) {
	app := newTestApp(t, func(string) (bool, error) { return true, nil })
	_, staffToken := app.createUser(t, "admin", true)
	alice, aliceToken := app.createUser(t, "alice", false)

	resp, _ := app.request(t, http.MethodGet, "/api/rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = app.request(t, http.MethodPost, "/api/rooms", aliceToken, map[string]any{"name": "general"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "room creation is staff only")

	resp, data := app.request(t, http.MethodPost, "/api/rooms", staffToken, map[string]any{
		"name":        "general",
		"description": "town square",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var room models.Room
	require.NoError(t, json.Unmarshal(data, &room))

	resp, _ = app.request(t, http.MethodPost, fmt.Sprintf("/api/rooms/%d/members", room.ID), aliceToken,
		map[string]any{"user_id": alice.ID})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "membership grants are staff only")

	resp, _ = app.request(t, http.MethodPost, fmt.Sprintf("/api/rooms/%d/members", room.ID), staffToken,
		map[string]any{"user_id": alice.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data = app.request(t, http.MethodGet, "/api/rooms", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var visible []models.Room
	require.NoError(t, json.Unmarshal(data, &visible))
	require.Len(t, visible, 1)
	assert.Equal(t, "general", visible[0].Name)

	resp, _ = app.request(t, http.MethodDelete, fmt.Sprintf("/api/rooms/%d", room.ID), aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = app.request(t, http.MethodDelete, fmt.Sprintf("/api/rooms/%d", room.ID), staffToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	isMember, err := app.memberships.IsMember(room.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, isMember, "deletion cascades to memberships")
}

func TestAPI_MessageHistory(t *testing.T) {
	app := newTestApp(t, func(string) (bool, error) { return true, nil })
	alice, aliceToken := app.createUser(t, "alice", false)
	_, bobToken := app.createUser(t, "bob", false)

	room, err := app.rooms.Create("general", "", false, alice.ID)
	require.NoError(t, err)
	require.NoError(t, app.memberships.AddMember(room.ID, alice.ID))

	approved, err := app.messages.CreatePending(room.ID, alice.ID, "hello")
	require.NoError(t, err)
	require.NoError(t, app.messages.SetStatus(approved.ID, models.MessageStatusApproved))
	_, err = app.messages.CreatePending(room.ID, alice.ID, "held back")
	require.NoError(t, err)

	resp, _ := app.request(t, http.MethodGet, fmt.Sprintf("/api/rooms/%d/messages", room.ID), bobToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "history is member only")

	resp, data := app.request(t, http.MethodGet, fmt.Sprintf("/api/rooms/%d/messages", room.ID), aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var views []services.MessageView
	require.NoError(t, json.Unmarshal(data, &views))
	require.Len(t, views, 1, "only approved messages are listed")
	assert.Equal(t, "hello", views[0].Content)
	assert.Equal(t, "alice", views[0].Author.Username)
}

func TestAPI_Health(t *testing.T) {
	app := newTestApp(t, func(string) (bool, error) { return true, nil })

	resp, data := app.request(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]string
	require.NoError(t, json.Unmarshal(data, &health))
	assert.Equal(t, "ok", health["status"])
}
