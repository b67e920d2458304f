package wire

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/mllabeler/internal/overlay"
	"github.com/matthewbaird/mllabeler/internal/types"
)

type received struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

func dial(t *testing.T, h *Hub) (*websocket.Conn, context.Context) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func read(t *testing.T, ctx context.Context, conn *websocket.Conn) received {
	t.Helper()
	var msg received
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestHubHandshake(t *testing.T) {
	tracker := overlay.NewTracker()
	red := types.RGB(255, 0, 0)
	tracker.Update([]types.ElementOverride{{ElementID: "0x1", IsVisible: true, Color: &red}})

	h := NewHub(tracker)
	conn, ctx := dial(t, h)

	msg := read(t, ctx, conn)
	assert.Equal(t, "session", msg.Type)
	var sess SessionData
	require.NoError(t, json.Unmarshal(msg.Data, &sess))
	assert.NotEmpty(t, sess.SessionID)

	msg = read(t, ctx, conn)
	assert.Equal(t, "overlay", msg.Type)
	var snap overlay.Diff
	require.NoError(t, json.Unmarshal(msg.Data, &snap))
	assert.True(t, snap.Full)
	require.Len(t, snap.Set, 1)
	assert.Equal(t, "0x1", snap.Set[0].ElementID)

	waitFor(t, func() bool { return h.Len() == 1 })
	assert.Equal(t, sess.SessionID, h.Viewports()[0].ID())
}

func TestHubInboundSelection(t *testing.T) {
	h := NewHub(overlay.NewTracker())
	var mu sync.Mutex
	var got []string
	h.OnSelection(func(_ context.Context, ids []string) error {
		mu.Lock()
		defer mu.Unlock()
		got = ids
		if len(ids) == 0 {
			return errors.New("empty selection")
		}
		return nil
	})

	conn, ctx := dial(t, h)
	read(t, ctx, conn)
	read(t, ctx, conn)

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{
		Type: "selection_changed", ID: "r1", Data: json.RawMessage(`{"ids":["0x1","0x2"]}`),
	}))
	msg := read(t, ctx, conn)
	assert.Equal(t, "ack", msg.Type)
	assert.Equal(t, "r1", msg.RequestID)
	mu.Lock()
	assert.Equal(t, []string{"0x1", "0x2"}, got)
	mu.Unlock()

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{
		Type: "selection_changed", ID: "r2", Data: json.RawMessage(`{"ids":[]}`),
	}))
	msg = read(t, ctx, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "r2", msg.RequestID)

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: "bogus", ID: "r3"}))
	msg = read(t, ctx, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, string(msg.Data), "unknown_type")
}

func TestHubOutbound(t *testing.T) {
	h := NewHub(overlay.NewTracker())
	conn, ctx := dial(t, h)
	read(t, ctx, conn)
	read(t, ctx, conn)
	waitFor(t, func() bool { return h.Len() == 1 })

	require.NoError(t, h.ReplaceSelection(ctx, []string{"0x9"}))
	msg := read(t, ctx, conn)
	assert.Equal(t, "replace_selection", msg.Type)
	assert.JSONEq(t, `{"ids":["0x9"]}`, string(msg.Data))

	require.NoError(t, h.PushOverlay(ctx, overlay.Diff{Seq: 7, Cleared: []string{"0x1"}}))
	msg = read(t, ctx, conn)
	assert.Equal(t, "overlay", msg.Type)
	assert.Contains(t, string(msg.Data), `"seq":7`)

	vp := h.Viewports()[0]
	vp.ZoomToElements([]string{"0x3"})
	msg = read(t, ctx, conn)
	assert.Equal(t, "zoom_to_elements", msg.Type)

	f := types.Frustum{Points: [8]types.Point3d{{X: 1, Y: 2, Z: 3}}}
	vp.SetupFromFrustum(f)
	msg = read(t, ctx, conn)
	assert.Equal(t, "setup_frustum", msg.Type)
	assert.Equal(t, f, vp.Frustum())
}

func TestHubFrustumReport(t *testing.T) {
	h := NewHub(overlay.NewTracker())
	conn, ctx := dial(t, h)
	read(t, ctx, conn)
	read(t, ctx, conn)

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{
		Type: "frustum", ID: "f1", Data: json.RawMessage(`{"frustum":{"points":[{"x":4,"y":5,"z":6}]}}`),
	}))
	msg := read(t, ctx, conn)
	assert.Equal(t, "ack", msg.Type)
	assert.Equal(t, 4.0, h.Viewports()[0].Frustum().Points[0].X)
}
