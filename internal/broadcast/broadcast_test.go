package broadcast

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllJoinedSubscribers(t *testing.T) {
	hub := NewHub(4, nil)

	first := hub.Join(TopicRecentActivity, "viewer-1")
	second := hub.Join(TopicRecentActivity, "viewer-2")

	hub.Publish(TopicRecentActivity, Message{Message: "alice created a task on Fix login bug"})

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, "alice created a task on Fix login bug", (<-first).Message)
	assert.Equal(t, "alice created a task on Fix login bug", (<-second).Message)
}

func TestLateJoinerMissesEarlierPublish(t *testing.T) {
	hub := NewHub(4, nil)

	early := hub.Join(TopicRecentActivity, "early")
	hub.Publish(TopicRecentActivity, Message{Message: "before"})

	late := hub.Join(TopicRecentActivity, "late")
	hub.Publish(TopicRecentActivity, Message{Message: "after"})

	assert.Len(t, early, 2, "early subscriber sees both messages")
	require.Len(t, late, 1, "late subscriber sees only the later message")
	assert.Equal(t, "after", (<-late).Message)
}

func TestPublishToEmptyTopicIsNoop(t *testing.T) {
	hub := NewHub(4, nil)

	// Must not panic or block.
	hub.Publish("nobody_home", Message{Message: "hello"})
	assert.Equal(t, 0, hub.SubscriberCount("nobody_home"))
}

func TestLeaveClosesChannelAndIsIdempotent(t *testing.T) {
	hub := NewHub(4, nil)

	ch := hub.Join(TopicRecentActivity, "viewer")
	hub.Leave(TopicRecentActivity, "viewer")

	_, open := <-ch
	assert.False(t, open, "channel should be closed after Leave")
	assert.Equal(t, 0, hub.SubscriberCount(TopicRecentActivity))

	// Leaving again, or leaving an unknown topic, is a no-op.
	hub.Leave(TopicRecentActivity, "viewer")
	hub.Leave("unknown_topic", "viewer")
}

func TestRejoinReplacesSubscription(t *testing.T) {
	hub := NewHub(4, nil)

	old := hub.Join(TopicRecentActivity, "viewer")
	fresh := hub.Join(TopicRecentActivity, "viewer")

	_, open := <-old
	assert.False(t, open, "old channel should be closed on rejoin")

	hub.Publish(TopicRecentActivity, Message{Message: "only once"})
	require.Len(t, fresh, 1)
	assert.Equal(t, 1, hub.SubscriberCount(TopicRecentActivity))
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	hub := NewHub(1, nil)

	slow := hub.Join(TopicRecentActivity, "slow")
	fast := hub.Join(TopicRecentActivity, "fast")

	// Fill the slow subscriber's buffer, then keep publishing. The slow
	// subscriber drops messages; the fast one keeps receiving and the
	// publisher is never blocked.
	hub.Publish(TopicRecentActivity, Message{Message: "one"})
	hub.Publish(TopicRecentActivity, Message{Message: "two"})
	hub.Publish(TopicRecentActivity, Message{Message: "three"})

	assert.Len(t, slow, 1, "slow subscriber holds only its buffered message")
	require.Len(t, fast, 1, "fast subscriber capped by its own buffer")

	// Drain fast and confirm it still receives new publishes.
	<-fast
	hub.Publish(TopicRecentActivity, Message{Message: "four"})
	assert.Equal(t, "four", (<-fast).Message)
}

func TestConcurrentJoinLeavePublish(t *testing.T) {
	hub := NewHub(8, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("viewer-%d", n)
			for j := 0; j < 50; j++ {
				ch := hub.Join(TopicRecentActivity, id)
				hub.Publish(TopicRecentActivity, Message{Message: "activity"})
				// Drain whatever made it into the buffer.
				for len(ch) > 0 {
					<-ch
				}
				hub.Leave(TopicRecentActivity, id)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.SubscriberCount(TopicRecentActivity))
}
