package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmorrow/taskhub-api/internal/api/shared"
	"github.com/cmorrow/taskhub-api/internal/broadcast"
)

// newWSTestServer serves the activity feed handler as an already-authenticated
// user, the way the auth middleware would.
func newWSTestServer(t *testing.T, hub *broadcast.Hub, userID uuid.UUID) *httptest.Server {
	t.Helper()

	handler := NewActivityWSHandler(hub, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), shared.UserIDContextKey, userID)
		handler.Serve(w, r.WithContext(ctx))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) broadcast.Message {
	t.Helper()

	readCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, data, err := conn.Read(readCtx)
	require.NoError(t, err)

	var msg broadcast.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestActivityWSDeliversPublishedMessages(t *testing.T) {
	hub := broadcast.NewHub(4, nil)
	srv := newWSTestServer(t, hub, uuid.New())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	waitForSubscribers(t, hub, 1)

	hub.Publish(broadcast.TopicRecentActivity, broadcast.Message{
		Message: "Alice created a task on Fix login bug",
	})

	msg := readFrame(t, ctx, conn)
	assert.Equal(t, "Alice created a task on Fix login bug", msg.Message)
}

func TestActivityWSRepublishesClientMessages(t *testing.T) {
	hub := broadcast.NewHub(4, nil)
	srv := newWSTestServer(t, hub, uuid.New())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	require.NoError(t, err)
	defer sender.CloseNow()

	viewer, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	require.NoError(t, err)
	defer viewer.CloseNow()

	waitForSubscribers(t, hub, 2)

	data, err := json.Marshal(broadcast.Message{Message: "standup starting"})
	require.NoError(t, err)
	require.NoError(t, sender.Write(ctx, websocket.MessageText, data))

	// Both connections are joined to the topic, so both see the message.
	assert.Equal(t, "standup starting", readFrame(t, ctx, viewer).Message)
	assert.Equal(t, "standup starting", readFrame(t, ctx, sender).Message)
}

func TestActivityWSIgnoresMalformedFrames(t *testing.T) {
	hub := broadcast.NewHub(4, nil)
	srv := newWSTestServer(t, hub, uuid.New())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	waitForSubscribers(t, hub, 1)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("not json")))
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"message":""}`)))

	// The connection stays up and still receives published messages.
	hub.Publish(broadcast.TopicRecentActivity, broadcast.Message{Message: "still alive"})
	assert.Equal(t, "still alive", readFrame(t, ctx, conn).Message)
}

func TestActivityWSLeavesTopicOnDisconnect(t *testing.T) {
	hub := broadcast.NewHub(4, nil)
	srv := newWSTestServer(t, hub, uuid.New())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	require.NoError(t, err)

	waitForSubscribers(t, hub, 1)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))

	waitForSubscribers(t, hub, 0)
}

func TestActivityWSAllowsMultipleConnectionsPerUser(t *testing.T) {
	hub := broadcast.NewHub(4, nil)
	userID := uuid.New()
	srv := newWSTestServer(t, hub, userID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn1, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	require.NoError(t, err)
	defer conn1.CloseNow()

	conn2, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	require.NoError(t, err)
	defer conn2.CloseNow()

	// Distinct subscriber IDs: neither connection replaced the other.
	waitForSubscribers(t, hub, 2)

	hub.Publish(broadcast.TopicRecentActivity, broadcast.Message{Message: "for both"})
	assert.Equal(t, "for both", readFrame(t, ctx, conn1).Message)
	assert.Equal(t, "for both", readFrame(t, ctx, conn2).Message)
}

// waitForSubscribers blocks until the hub's activity topic has n subscribers,
// failing the test after a short deadline.
func waitForSubscribers(t *testing.T, hub *broadcast.Hub, n int) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount(broadcast.TopicRecentActivity) == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("topic never reached %d subscribers (have %d)",
		n, hub.SubscriberCount(broadcast.TopicRecentActivity))
}
