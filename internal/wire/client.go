package wire

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/matthewbaird/mllabeler/internal/types"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

// client is one connected viewer. It is also a viewport of the host.
type client struct {
	id        string
	conn      *websocket.Conn
	out       chan ServerMessage
	createdAt time.Time

	mu           sync.Mutex
	frustum      types.Frustum
	lastActiveAt time.Time
}

func newClient(conn *websocket.Conn) *client {
	now := time.Now()
	return &client{
		id:           uuid.New().String(),
		conn:         conn,
		out:          make(chan ServerMessage, sendBuffer),
		createdAt:    now,
		lastActiveAt: now,
	}
}

func (c *client) touch() {
	c.mu.Lock()
	c.lastActiveAt = time.Now()
	c.mu.Unlock()
}

// enqueue never blocks; a viewer that cannot keep up loses messages.
func (c *client) enqueue(msg ServerMessage) bool {
	select {
	case c.out <- msg:
		return true
	default:
		log.Printf("wire: client %s send buffer full, dropping %s", c.id, msg.Type)
		return false
	}
}

func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case msg := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.conn, msg)
			cancel()
			if err != nil {
				log.Printf("wire: write error for client %s: %v", c.id, err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *client) ID() string { return c.id }

func (c *client) Frustum() types.Frustum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frustum
}

func (c *client) setFrustum(f types.Frustum) {
	c.mu.Lock()
	c.frustum = f
	c.mu.Unlock()
}

func (c *client) SetupFromFrustum(f types.Frustum) {
	c.setFrustum(f)
	c.enqueue(ServerMessage{Type: "setup_frustum", Data: FrustumData{Frustum: f}})
}

func (c *client) ZoomToElements(ids []string) {
	c.enqueue(ServerMessage{Type: "zoom_to_elements", Data: SelectionData{IDs: ids}})
}
