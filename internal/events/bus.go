// ABOUTME: In-memory fan-out bus for task mutation events
// ABOUTME: Publishes to all subscribers non-blocking; slow consumers drop events

package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/candlewick/taskgate/internal/store"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// TaskEvent describes one committed task mutation.
type TaskEvent struct {
	ID        string
	OwnerID   string
	Action    store.AuditAction
	TaskID    string
	Details   map[string]any
	Timestamp time.Time
}

// Bus provides in-memory pub/sub for task events. Publishing never blocks
// the caller: a turn must not stall because a consumer is slow, so events
// are dropped for subscribers whose channels are full.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan *TaskEvent // subID -> ch
	closed      bool
	logger      *slog.Logger
}

// NewBus creates a bus. Pass nil logger for default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[string]chan *TaskEvent),
		logger:      logger.With("component", "events"),
	}
}

// Subscribe registers a consumer and returns its event channel along with a
// subscription ID for later unsubscription. The channel is closed on
// Unsubscribe or bus Close.
func (b *Bus) Subscribe() (<-chan *TaskEvent, string) {
	subID := uuid.New().String()
	ch := make(chan *TaskEvent, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)
	return ch, subID
}

// Publish fans the event out to every subscriber. Missing ID and Timestamp
// fields are filled in.
func (b *Bus) Publish(event *TaskEvent) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	targets := make([]chan *TaskEvent, 0, len(b.subscribers))
	for _, ch := range b.subscribers {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"event_id", event.ID,
				"action", event.Action)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)
	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for subID, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, subID)
	}
}
