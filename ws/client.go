package ws

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/luisclicio/fastzap-chat-app-tech-test/events"
	"github.com/luisclicio/fastzap-chat-app-tech-test/repository"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

type sessionState int32

const (
	stateConnecting sessionState = iota
	stateAuthorizing
	stateActive
	stateClosed
)

// Client is one user's live session within one room. It owns the
// websocket connection and walks connecting -> authorizing -> active ->
// closed; closed is terminal and closing twice is a no-op.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	roomID   int
	userID   int
	username string
	log      *zap.Logger

	state     atomic.Int32
	closeOnce sync.Once

	// sendClosed belongs to the hub loop, guarded by hub.mu.
	sendClosed bool
}

func newClient(h *Hub, conn *websocket.Conn, roomID, userID int, username string) *Client {
	return &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		roomID:   roomID,
		userID:   userID,
		username: username,
		log: h.log.With(
			zap.Int("room_id", roomID),
			zap.Int("user_id", userID),
			zap.String("username", username),
		),
	}
}

func (c *Client) run() {
	c.state.Store(int32(stateAuthorizing))

	isMember, err := c.hub.memberships.IsMember(c.roomID, c.userID)
	if err != nil {
		c.log.Error("membership check failed", zap.Error(err))
		c.state.Store(int32(stateClosed))
		c.conn.Close()
		return
	}
	if !isMember {
		c.log.Debug("user is not a member of the room, closing connection")
		c.refuseNotMember()
		return
	}

	reg := registration{client: c, done: make(chan error, 1)}
	select {
	case c.hub.register <- reg:
	case <-c.hub.ctx.Done():
		c.state.Store(int32(stateClosed))
		c.conn.Close()
		return
	}
	if err := <-reg.done; err != nil {
		c.state.Store(int32(stateClosed))
		c.conn.Close()
		return
	}

	// The online write and its broadcast finish before the pumps start.
	// Once readPump runs, a disconnect can drive Close concurrently, and
	// the offline write must always come after the online one.
	if err := c.hub.memberships.SetOnline(c.roomID, c.userID, true); err != nil {
		c.log.Error("presence update failed", zap.Error(err))
		c.Close()
		return
	}
	c.state.Store(int32(stateActive))
	c.broadcastMembers()

	c.hub.wg.Add(2)
	go func() {
		defer c.hub.wg.Done()
		c.writePump()
	}()
	go func() {
		defer c.hub.wg.Done()
		c.readPump()
	}()
	c.log.Debug("user connected to room")
}

// refuseNotMember sends the single user_not_member event and terminates
// the transport. The session never joins the room group.
func (c *Client) refuseNotMember() {
	c.state.Store(int32(stateClosed))

	payload, err := events.Marshal(events.NewUserNotMember())
	if err == nil {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		c.conn.WriteMessage(websocket.TextMessage, payload)
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.conn.Close()
}

// Close drives the session to its terminal state: unregister from the
// hub, flip presence off if the session had reached active, and
// re-broadcast the member list. Safe to call from any goroutine, any
// number of times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		prev := sessionState(c.state.Swap(int32(stateClosed)))

		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()

		if prev != stateActive {
			return
		}
		if err := c.hub.memberships.SetOnline(c.roomID, c.userID, false); err != nil {
			if !errors.Is(err, repository.ErrNotAMember) {
				c.log.Error("presence update failed", zap.Error(err))
			}
		}
		c.broadcastMembers()
		c.log.Debug("user disconnected from room")
	})
}

func (c *Client) broadcastMembers() {
	members, err := c.hub.memberships.ListOnlineMembers(c.roomID)
	if err != nil {
		c.log.Error("online members lookup failed", zap.Error(err))
		return
	}
	if err := c.hub.PublishEvent(c.hub.ctx, c.roomID, events.NewUpdateMembers(members)); err != nil {
		c.log.Error("member list broadcast failed", zap.Error(err))
	}
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(c.hub.opts.MaxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("read error", zap.Error(err))
			}
			return
		}

		var in events.Inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			c.log.Warn("malformed inbound event", zap.Error(err))
			continue
		}
		content := strings.TrimSpace(in.Message)
		if content == "" {
			continue
		}
		if len(content) > c.hub.opts.MaxMessageLength {
			c.log.Warn("message over length limit", zap.Int("length", len(content)))
			continue
		}
		if sessionState(c.state.Load()) != stateActive {
			return
		}

		// Hand-off only: the moderation outcome arrives later through the
		// broker as a chat_message event, or not at all.
		if err := c.hub.pipeline.SubmitText(c.roomID, c.userID, content); err != nil {
			c.log.Error("message submission failed", zap.Error(err))
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
