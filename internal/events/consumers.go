// ABOUTME: Built-in event consumers: durable audit trail and notification log
// ABOUTME: Each runs as a goroutine draining its bus subscription until shutdown

package events

import (
	"context"
	"log/slog"

	"github.com/candlewick/taskgate/internal/store"
)

// AuditRecorder consumes task events and writes them to the audit log.
type AuditRecorder struct {
	audit  store.AuditStore
	logger *slog.Logger
}

// NewAuditRecorder creates an audit consumer over the given store.
func NewAuditRecorder(audit store.AuditStore, logger *slog.Logger) *AuditRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditRecorder{
		audit:  audit,
		logger: logger.With("component", "audit"),
	}
}

// Run drains the channel until it closes or ctx is cancelled. A failed
// write is logged and skipped; the audit trail is best-effort and must
// never take the service down.
func (r *AuditRecorder) Run(ctx context.Context, ch <-chan *TaskEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			entry := &store.AuditEntry{
				EntityType: "task",
				EntityID:   event.TaskID,
				Action:     event.Action,
				OwnerID:    event.OwnerID,
				Timestamp:  event.Timestamp,
				Details:    event.Details,
			}
			if err := r.audit.AppendAuditLog(ctx, entry); err != nil {
				r.logger.Error("audit write failed",
					"event_id", event.ID,
					"action", event.Action,
					"error", err)
			}
		}
	}
}

// Notifier consumes task events and emits a notification log line for each.
// Stands in for an outbound notification channel (email, push).
type Notifier struct {
	logger *slog.Logger
}

// NewNotifier creates a notification consumer.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{logger: logger.With("component", "notify")}
}

// Run drains the channel until it closes or ctx is cancelled.
func (n *Notifier) Run(ctx context.Context, ch <-chan *TaskEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			n.logger.Info("task event",
				"action", event.Action,
				"task_id", event.TaskID,
				"owner_id", event.OwnerID)
		}
	}
}
