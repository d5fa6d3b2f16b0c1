// ABOUTME: Store interfaces and data types for taskgate persistence
// ABOUTME: Defines Task, Conversation, Message structs and the owner-scoped store contracts

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist or is not
// owned by the caller. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when trying to create a conversation
// with an id that already exists.
var ErrDuplicateConversation = errors.New("conversation already exists")

// Task status values.
const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
)

// Task recurrence values. Empty means no recurrence.
const (
	RecurrenceDaily  = "daily"
	RecurrenceWeekly = "weekly"
)

// Task represents a single task owned by one user.
type Task struct {
	ID          string
	OwnerID     string
	Title       string
	Description string // empty = none
	Status      string // pending, completed
	DueDate     *time.Time
	Recurrence  string // "", daily, weekly
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Conversation represents a chat thread owned by one user.
type Conversation struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single entry in a conversation. Messages are append-only and
// carry a monotonic per-conversation sequence number assigned at insert.
type Message struct {
	ID             string
	ConversationID string
	OwnerID        string
	Role           string // user, assistant, tool
	Content        string
	Seq            int64
	CreatedAt      time.Time
}

// TaskStore defines owner-scoped task persistence. Every method that takes an
// ownerID filters by it; an id that exists under a different owner behaves
// exactly like an id that does not exist.
type TaskStore interface {
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, ownerID, id string) (*Task, error)
	// ListTasks returns the owner's tasks ordered by creation time.
	// status is "all", "pending" or "completed".
	ListTasks(ctx context.Context, ownerID, status string) ([]*Task, error)
	UpdateTask(ctx context.Context, task *Task) error
	CompleteTask(ctx context.Context, ownerID, id string) (*Task, error)
	DeleteTask(ctx context.Context, ownerID, id string) error
}

// ConversationStore defines conversation and message persistence.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, ownerID, id string) (*Conversation, error)

	// AppendMessage persists the message, assigning Seq and CreatedAt.
	AppendMessage(ctx context.Context, msg *Message) error
	// GetConversationMessages returns the most recent `limit` messages in
	// ascending seq order. limit <= 0 returns all messages.
	GetConversationMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)
}

// Store is the full persistence contract implemented by SQLiteStore.
type Store interface {
	TaskStore
	ConversationStore
	AuditStore

	// Close releases any resources held by the store.
	Close() error
}
