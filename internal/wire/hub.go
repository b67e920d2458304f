package wire

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/goccy/go-json"

	"github.com/matthewbaird/mllabeler/internal/cycle"
	"github.com/matthewbaird/mllabeler/internal/overlay"
)

// SelectionFunc handles a selection reported by a viewer.
type SelectionFunc func(ctx context.Context, ids []string) error

// Hub tracks connected viewers. It pushes overlay diffs and selection
// requests to all of them and exposes them as viewports.
type Hub struct {
	tracker *overlay.Tracker

	mu          sync.RWMutex
	clients     map[string]*client
	onSelection SelectionFunc
}

// NewHub creates a hub. New viewers receive tracker's full snapshot.
func NewHub(tracker *overlay.Tracker) *Hub {
	return &Hub{tracker: tracker, clients: make(map[string]*client)}
}

// OnSelection sets the handler for inbound selection changes.
func (h *Hub) OnSelection(fn SelectionFunc) {
	h.mu.Lock()
	h.onSelection = fn
	h.mu.Unlock()
}

// Len returns the number of connected viewers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) sorted() []*client {
	h.mu.RLock()
	out := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].createdAt.Before(out[j].createdAt) })
	return out
}

// Viewports returns the connected viewers in connection order.
func (h *Hub) Viewports() []cycle.Viewport {
	clients := h.sorted()
	out := make([]cycle.Viewport, len(clients))
	for i, c := range clients {
		out[i] = c
	}
	return out
}

func (h *Hub) broadcast(msg ServerMessage) {
	for _, c := range h.sorted() {
		c.enqueue(msg)
	}
}

// PushOverlay sends an overlay diff to every viewer.
func (h *Hub) PushOverlay(_ context.Context, d overlay.Diff) error {
	h.broadcast(ServerMessage{Type: "overlay", Data: d})
	return nil
}

// ReplaceSelection asks every viewer to select ids.
func (h *Hub) ReplaceSelection(_ context.Context, ids []string) error {
	h.broadcast(ServerMessage{Type: "replace_selection", Data: SelectionData{IDs: ids}})
	return nil
}

// ServeHTTP upgrades to WebSocket and runs the message loop.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("wire: websocket accept: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := newClient(conn)
	c.enqueue(ServerMessage{Type: "session", Data: SessionData{SessionID: c.id}})

	// Register before taking the snapshot: a diff broadcast in between is
	// superseded by the full snapshot that follows it.
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	c.enqueue(ServerMessage{Type: "overlay", Data: h.tracker.Snapshot()})
	go c.writeLoop(ctx)
	log.Printf("wire: client %s connected", c.id)
	defer func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()
		log.Printf("wire: client %s disconnected", c.id)
	}()

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("wire: connection closed: %v", websocket.CloseStatus(err))
			}
			return
		}
		c.touch()

		switch msg.Type {
		case "selection_changed":
			h.handleSelection(ctx, c, msg)
		case "frustum":
			var data FrustumData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				c.sendError(msg.ID, "invalid_data", "invalid frustum data")
				continue
			}
			c.setFrustum(data.Frustum)
			c.enqueue(ServerMessage{Type: "ack", RequestID: msg.ID})
		case "ping":
			c.enqueue(ServerMessage{Type: "pong", RequestID: msg.ID})
		default:
			c.sendError(msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type))
		}
	}
}

func (h *Hub) handleSelection(ctx context.Context, c *client, msg ClientMessage) {
	var data SelectionData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.sendError(msg.ID, "invalid_data", "invalid selection data")
		return
	}
	h.mu.RLock()
	fn := h.onSelection
	h.mu.RUnlock()
	if fn != nil {
		if err := fn(ctx, data.IDs); err != nil {
			c.sendError(msg.ID, "selection_error", err.Error())
			return
		}
	}
	c.enqueue(ServerMessage{Type: "ack", RequestID: msg.ID})
}

func (c *client) sendError(requestID, code, message string) {
	c.enqueue(ServerMessage{
		Type:      "error",
		RequestID: requestID,
		Data:      ErrorData{Code: code, Message: message},
	})
}
