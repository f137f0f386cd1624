package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nekogravitycat/marketplace-backend/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// SendBuffer is how many outbound frames a connection may queue before
	// it counts as a slow consumer and is dropped.
	SendBuffer = 32
)

// Client is one websocket connection. Its reader goroutine changes rooms;
// the writer goroutine is the only one writing to conn.
type Client struct {
	id        string
	principal auth.Principal
	conn      *websocket.Conn
	send      chan []byte

	done      chan struct{}
	closeOnce sync.Once

	roomsMu sync.Mutex
	rooms   map[string]struct{}
}

func newClient(conn *websocket.Conn, principal auth.Principal) *Client {
	return &Client{
		id:        uuid.NewString(),
		principal: principal,
		conn:      conn,
		send:      make(chan []byte, SendBuffer),
		done:      make(chan struct{}),
		rooms:     make(map[string]struct{}),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) setRoom(providerID string, in bool) {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	if in {
		c.rooms[providerID] = struct{}{}
	} else {
		delete(c.rooms, providerID)
	}
}

func (c *Client) joined() []string {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	return out
}

// Send queues frame without blocking. A full queue closes the connection
// and Send reports false.
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		log.Printf("[realtime] %s is not keeping up, dropping connection", c.id)
		c.close()
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) emit(event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		log.Printf("[realtime] encode %s: %v", event, err)
		return
	}
	c.Send(frame)
}

func (c *Client) emitError(message string) {
	c.emit(EventError, ErrorPayload{Message: message})
}

func (c *Client) emitFailure(err error) {
	msg := failureMessage(err)
	if msg == "internal server error" {
		log.Printf("[realtime] %s: %v", c.id, err)
	}
	c.emitError(msg)
}

// Serve runs conn until either side closes it. It blocks on the reader and
// starts the writer in its own goroutine.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, principal auth.Principal) {
	c := newClient(conn, principal)
	h.register(c)
	log.Printf("[realtime] %s connected user=%s role=%s", c.id, principal.UserID, principal.Role)

	go c.writeLoop()
	c.readLoop(ctx, h)

	// Membership cleanup must survive the request context.
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.unregister(cleanupCtx, c)
	log.Printf("[realtime] %s disconnected", c.id)
}

func (c *Client) readLoop(ctx context.Context, h *Hub) {
	defer func() {
		c.close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[realtime] %s read: %v", c.id, err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			c.emitError("malformed frame")
			continue
		}
		h.handle(ctx, c, env)
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
