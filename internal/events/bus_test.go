// ABOUTME: Tests for the task event bus and its built-in consumers
// ABOUTME: Covers fan-out, slow-subscriber drops, shutdown and audit recording

package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candlewick/taskgate/internal/store"
)

func TestBus_FanOut(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ch1, _ := bus.Subscribe()
	ch2, _ := bus.Subscribe()

	bus.Publish(&TaskEvent{
		OwnerID: "alice",
		Action:  store.AuditTaskCreated,
		TaskID:  "task-1",
	})

	for _, ch := range []<-chan *TaskEvent{ch1, ch2} {
		select {
		case event := <-ch:
			assert.Equal(t, "task-1", event.TaskID)
			assert.NotEmpty(t, event.ID)
			assert.False(t, event.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	// Nobody drains this subscription.
	_, _ = bus.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBufferSize*2; i++ {
			bus.Publish(&TaskEvent{OwnerID: "alice", Action: store.AuditTaskCreated, TaskID: "t"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ch, subID := bus.Subscribe()
	bus.Unsubscribe(subID)

	_, open := <-ch
	assert.False(t, open)
}

func TestBus_CloseClosesAllSubscribers(t *testing.T) {
	bus := NewBus(nil)
	ch, _ := bus.Subscribe()
	bus.Close()

	_, open := <-ch
	assert.False(t, open)

	// Publishing after close is a no-op.
	bus.Publish(&TaskEvent{OwnerID: "alice", Action: store.AuditTaskDeleted, TaskID: "t"})
}

func TestAuditRecorder_WritesEntries(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	bus := NewBus(nil)
	ch, _ := bus.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		NewAuditRecorder(st, nil).Run(ctx, ch)
	}()

	bus.Publish(&TaskEvent{
		OwnerID: "alice",
		Action:  store.AuditTaskCompleted,
		TaskID:  "task-9",
		Details: map[string]any{"title": "ship it"},
	})
	bus.Close()
	<-done

	entries, err := st.ListAuditLog(ctx, store.AuditFilter{OwnerID: "alice"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "task", entries[0].EntityType)
	assert.Equal(t, "task-9", entries[0].EntityID)
	assert.Equal(t, store.AuditTaskCompleted, entries[0].Action)
	assert.Equal(t, "ship it", entries[0].Details["title"])
}

func TestNotifier_StopsOnClose(t *testing.T) {
	bus := NewBus(nil)
	ch, _ := bus.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		NewNotifier(nil).Run(context.Background(), ch)
	}()

	bus.Publish(&TaskEvent{OwnerID: "alice", Action: store.AuditTaskDeleted, TaskID: "t"})
	bus.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("notifier did not stop after bus close")
	}
}
