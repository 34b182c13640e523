// Package ws holds the connection hub and per-connection room sessions.
// The hub owns the room-keyed registry of live connections and fans
// broker-delivered events out to them; sessions drive one user's
// lifecycle within one room.
package ws

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/luisclicio/fastzap-chat-app-tech-test/broker"
	"github.com/luisclicio/fastzap-chat-app-tech-test/events"
)

// MembershipStore is the slice of the membership repository a session
// needs: authorization, presence, and the online-member snapshot.
type MembershipStore interface {
	IsMember(roomID, userID int) (bool, error)
	SetOnline(roomID, userID int, online bool) error
	ListOnlineMembers(roomID int) ([]string, error)
}

// MessagePipeline accepts chat text for persistence and asynchronous
// moderation. Implemented by services.ModerationService; declared here to
// keep services importable from ws without a cycle.
type MessagePipeline interface {
	SubmitText(roomID, authorID int, content string) error
}

type Options struct {
	AllowedOrigins   []string
	MaxFrameSize     int64
	MaxMessageLength int
}

type Hub struct {
	broker      broker.Broker
	memberships MembershipStore
	pipeline    MessagePipeline
	opts        Options
	log         *zap.Logger
	upgrader    websocket.Upgrader

	// rooms and subs are mutated only by the Run loop; mu makes them
	// readable from other goroutines (counts, shutdown).
	mu    sync.RWMutex
	rooms map[int]map[*Client]bool
	subs  map[int]broker.Subscription

	register   chan registration
	unregister chan *Client
	deliver    chan delivery

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

type delivery struct {
	roomID  int
	payload []byte
}

// registration is acknowledged so a session only proceeds to its presence
// broadcast once the room group and its broker subscription exist.
type registration struct {
	client *Client
	done   chan error
}

func NewHub(b broker.Broker, memberships MembershipStore, pipeline MessagePipeline, opts Options, log *zap.Logger) *Hub {
	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = 1 << 16
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 1000
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		broker:      b,
		memberships: memberships,
		pipeline:    pipeline,
		opts:        opts,
		log:         log,
		rooms:       make(map[int]map[*Client]bool),
		subs:        make(map[int]broker.Subscription),
		register:    make(chan registration),
		unregister:  make(chan *Client),
		deliver:     make(chan delivery, 256),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin(),
	}
	return h
}

// Run drives registration, unregistration, and event fan-out. Call it in
// its own goroutine; it exits when Shutdown cancels the hub context.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.closeAllClients()
			return
		case reg := <-h.register:
			reg.done <- h.addClient(reg.client)
		case c := <-h.unregister:
			h.removeClient(c)
		case d := <-h.deliver:
			h.fanout(d)
		}
	}
}

// Publish routes an already-marshaled event to every hub instance
// subscribed to the room, this one included.
func (h *Hub) Publish(ctx context.Context, roomID int, payload []byte) error {
	return h.broker.Publish(ctx, roomID, payload)
}

func (h *Hub) PublishEvent(ctx context.Context, roomID int, event any) error {
	payload, err := events.Marshal(event)
	if err != nil {
		return err
	}
	return h.Publish(ctx, roomID, payload)
}

// ServeWS upgrades the request and starts a session for an authenticated
// user. Authorization against the membership store happens inside the
// session, after the transport is established.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, roomID, userID int, username string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed",
			zap.Int("room_id", roomID), zap.Int("user_id", userID), zap.Error(err))
		return
	}
	client := newClient(h, conn, roomID, userID, username)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		client.run()
	}()
}

// RejectUnauthenticated accepts the handshake and immediately closes it.
// Bad credentials terminate the transport without leaking anything.
func (h *Hub) RejectUnauthenticated(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	deadline := time.Now().Add(writeWait)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""), deadline)
	conn.Close()
}

// RoomCount reports the number of live connections in a room.
func (h *Hub) RoomCount(roomID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Shutdown stops the Run loop, closes every connection, and waits for
// session goroutines to drain, up to timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	<-h.done

	drained := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}

func (h *Hub) addClient(c *Client) error {
	h.mu.Lock()
	first := h.rooms[c.roomID] == nil
	if first {
		h.rooms[c.roomID] = make(map[*Client]bool)
	}
	h.rooms[c.roomID][c] = true
	count := len(h.rooms[c.roomID])
	h.mu.Unlock()

	if first {
		if err := h.subscribeRoom(c.roomID); err != nil {
			h.log.Error("room subscription failed", zap.Int("room_id", c.roomID), zap.Error(err))
			h.mu.Lock()
			delete(h.rooms[c.roomID], c)
			if len(h.rooms[c.roomID]) == 0 {
				delete(h.rooms, c.roomID)
			}
			h.mu.Unlock()
			return err
		}
	}
	h.log.Debug("client joined room",
		zap.String("username", c.username), zap.Int("room_id", c.roomID), zap.Int("room_size", count))
	return nil
}

func (h *Hub) removeClient(c *Client) {
	var sub broker.Subscription

	h.mu.Lock()
	if clients, ok := h.rooms[c.roomID]; ok {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			h.closeSendLocked(c)
			h.log.Debug("client left room",
				zap.String("username", c.username), zap.Int("room_id", c.roomID), zap.Int("room_size", len(clients)))
		}
		if len(clients) == 0 {
			delete(h.rooms, c.roomID)
			sub = h.subs[c.roomID]
			delete(h.subs, c.roomID)
		}
	}
	h.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

func (h *Hub) fanout(d delivery) {
	var emptied bool

	h.mu.Lock()
	clients := h.rooms[d.roomID]
	for client := range clients {
		select {
		case client.send <- d.payload:
		default:
			// A session that cannot drain its buffer is dropped; its own
			// close path finishes the cleanup.
			delete(clients, client)
			h.closeSendLocked(client)
			h.log.Warn("dropping slow client",
				zap.String("username", client.username), zap.Int("room_id", d.roomID))
		}
	}
	var sub broker.Subscription
	if clients != nil && len(clients) == 0 {
		delete(h.rooms, d.roomID)
		sub = h.subs[d.roomID]
		delete(h.subs, d.roomID)
		emptied = true
	}
	h.mu.Unlock()

	if emptied && sub != nil {
		sub.Close()
	}
}

func (h *Hub) subscribeRoom(roomID int) error {
	sub, err := h.broker.Subscribe(h.ctx, roomID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.subs[roomID] = sub
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for payload := range sub.C() {
			select {
			case h.deliver <- delivery{roomID: roomID, payload: payload}:
			case <-h.ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (h *Hub) closeSendLocked(c *Client) {
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	var clients []*Client
	var subs []broker.Subscription
	for roomID, roomClients := range h.rooms {
		for client := range roomClients {
			clients = append(clients, client)
			h.closeSendLocked(client)
		}
		delete(h.rooms, roomID)
		if sub := h.subs[roomID]; sub != nil {
			subs = append(subs, sub)
		}
		delete(h.subs, roomID)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	for _, client := range clients {
		if client.conn != nil {
			client.conn.Close()
		}
	}
	h.log.Info("closed all client connections", zap.Int("count", len(clients)))
}

func (h *Hub) checkOrigin() func(r *http.Request) bool {
	allowAll := false
	allowed := make(map[string]struct{})
	for _, origin := range h.opts.AllowedOrigins {
		if origin == "*" {
			allowAll = true
			continue
		}
		if normalized, ok := normalizeOrigin(origin); ok {
			allowed[normalized] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin header.
			return true
		}
		normalized, ok := normalizeOrigin(origin)
		if !ok {
			return false
		}
		_, ok = allowed[normalized]
		return ok
	}
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme + "://" + parsed.Host), true
}
