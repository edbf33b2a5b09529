// Package broadcast provides best-effort fan-out of activity messages to
// currently-connected live viewers. Subscriptions live for the process
// lifetime at most; nothing is persisted, replayed, or acknowledged.
// Durability belongs to the activity store.
package broadcast

import (
	"log/slog"
	"sync"
)

// TopicRecentActivity is the single shared topic all dashboard viewers join.
const TopicRecentActivity = "recent_activity"

// DefaultSubscriberBuffer is the per-subscriber channel buffer used when the
// configured buffer is not positive.
const DefaultSubscriberBuffer = 16

// Message is the frame delivered to subscribers: a single pre-formatted
// human-readable line. The broadcaster performs no interpretation of content.
type Message struct {
	Message string `json:"message"`
}

// Broadcaster defines publish/subscribe fan-out over named topics.
type Broadcaster interface {
	// Join subscribes the given subscriber ID to a topic and returns the
	// channel its messages arrive on. Joining again with the same ID
	// replaces the previous subscription (its channel is closed).
	Join(topic, subscriberID string) <-chan Message

	// Leave removes the subscription and closes its channel.
	// Leaving a topic the subscriber is not joined to is a no-op.
	Leave(topic, subscriberID string)

	// Publish delivers the message to every subscriber currently joined to
	// the topic. Delivery is best-effort: a subscriber whose buffer is full
	// has the message dropped, without delaying the publisher or the other
	// subscribers. Publish never returns an error to the caller.
	Publish(topic string, msg Message)
}

// Hub is an in-memory Broadcaster backed by a mutex-guarded registry of
// per-subscriber buffered channels. It is safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[string]chan Message
	buffer int
	logger *slog.Logger
}

// Ensure Hub implements the Broadcaster interface
var _ Broadcaster = (*Hub)(nil)

// NewHub creates a new Hub whose subscriber channels buffer up to buffer
// messages each. If logger is nil, the default logger is used.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		topics: make(map[string]map[string]chan Message),
		buffer: buffer,
		logger: logger.With(slog.String("component", "broadcast_hub")),
	}
}

// Join implements Broadcaster.Join.
func (h *Hub) Join(topic, subscriberID string) <-chan Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[string]chan Message)
		h.topics[topic] = subs
	}

	if old, ok := subs[subscriberID]; ok {
		close(old)
	}

	ch := make(chan Message, h.buffer)
	subs[subscriberID] = ch

	h.logger.Debug("subscriber joined topic",
		slog.String("topic", topic),
		slog.String("subscriber_id", subscriberID),
		slog.Int("subscriber_count", len(subs)))

	return ch
}

// Leave implements Broadcaster.Leave.
func (h *Hub) Leave(topic, subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[topic]
	if !ok {
		return
	}

	ch, ok := subs[subscriberID]
	if !ok {
		return
	}

	close(ch)
	delete(subs, subscriberID)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}

	h.logger.Debug("subscriber left topic",
		slog.String("topic", topic),
		slog.String("subscriber_id", subscriberID))
}

// Publish implements Broadcaster.Publish.
// Delivery happens under the read lock so no subscription can be closed
// mid-send; Join and Leave take the write lock.
func (h *Hub) Publish(topic string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := h.topics[topic]
	for id, ch := range subs {
		select {
		case ch <- msg:
		default:
			// Slow or stalled viewer: drop rather than block the publisher.
			h.logger.Warn("dropping message for slow subscriber",
				slog.String("topic", topic),
				slog.String("subscriber_id", id))
		}
	}
}

// SubscriberCount returns the number of subscribers currently joined to the
// topic. Used by tests and operational logging.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
