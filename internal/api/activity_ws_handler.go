package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/cmorrow/taskhub-api/internal/broadcast"
)

// How long a single websocket write may take before the connection is
// considered dead.
const wsWriteTimeout = 5 * time.Second

// ActivityWSHandler upgrades requests to websocket connections subscribed to
// the live activity feed. Each connection joins the shared activity topic on
// connect and leaves it on disconnect. Messages a client sends on the socket
// are published back to the topic unchanged, so every connected viewer sees
// them.
type ActivityWSHandler struct {
	broadcaster broadcast.Broadcaster
	logger      *slog.Logger
	nextConnID  atomic.Int64
}

// NewActivityWSHandler creates a new ActivityWSHandler with the given
// dependencies.
func NewActivityWSHandler(broadcaster broadcast.Broadcaster, log *slog.Logger) *ActivityWSHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ActivityWSHandler{
		broadcaster: broadcaster,
		logger:      log.With(slog.String("component", "activity_ws")),
	}
}

// Serve handles an activity feed websocket connection. The caller must have
// authenticated the request already; the user ID only namespaces the
// subscriber ID so one user may hold several connections.
func (h *ActivityWSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Debug("websocket accept failed", "error", err, "user_id", userID)
		return
	}
	defer conn.CloseNow()

	subscriberID := fmt.Sprintf("%s-%d", userID, h.nextConnID.Add(1))
	messages := h.broadcaster.Join(broadcast.TopicRecentActivity, subscriberID)
	defer h.broadcaster.Leave(broadcast.TopicRecentActivity, subscriberID)

	h.logger.Debug("activity feed viewer connected", "subscriber_id", subscriberID)
	defer h.logger.Debug("activity feed viewer disconnected", "subscriber_id", subscriberID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: republish inbound frames to the topic; any read error means the
	// client went away.
	go func() {
		defer cancel()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}

			var msg broadcast.Message
			if err := json.Unmarshal(data, &msg); err != nil || msg.Message == "" {
				continue
			}

			h.broadcaster.Publish(broadcast.TopicRecentActivity, msg)
		}
	}()

	// Writer: drain the subscription until the connection or context dies.
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				// Subscription replaced or hub shut down.
				conn.Close(websocket.StatusGoingAway, "subscription closed")
				return
			}
			if err := h.writeMessage(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}

func (h *ActivityWSHandler) writeMessage(
	ctx context.Context,
	conn *websocket.Conn,
	msg broadcast.Message,
) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
