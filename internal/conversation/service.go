// ABOUTME: Conversation service is the central layer for message persistence
// ABOUTME: All messages flow through here - history is the source of truth, not a side effect

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/candlewick/taskgate/internal/store"
)

// Resolution says how a requested conversation id was resolved.
type Resolution int

const (
	// ResolutionFound means the caller's existing conversation was reused.
	ResolutionFound Resolution = iota
	// ResolutionCreated means no id was supplied and a fresh conversation
	// was started.
	ResolutionCreated
	// ResolutionReplaced means the supplied id could not be used for this
	// caller and a fresh conversation was started in its place. An unknown
	// id and an id owned by someone else both resolve this way; the caller
	// cannot tell them apart.
	ResolutionReplaced
)

// String returns the resolution name for logging.
func (r Resolution) String() string {
	switch r {
	case ResolutionFound:
		return "found"
	case ResolutionCreated:
		return "created"
	case ResolutionReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Service manages conversation lifecycle and message persistence. Every
// read and write is scoped to the authenticated owner.
type Service struct {
	store  store.ConversationStore
	logger *slog.Logger
}

// New creates a conversation service. Pass nil logger for default.
func New(st store.ConversationStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		logger: logger.With("component", "conversation"),
	}
}

// ResolveOrCreate resolves conversationID for the given owner, creating a
// fresh conversation when the id is empty, unknown, or not theirs. The
// returned conversation always belongs to ownerID.
func (s *Service) ResolveOrCreate(ctx context.Context, ownerID, conversationID string) (*store.Conversation, Resolution, error) {
	if conversationID != "" {
		conv, err := s.store.GetConversation(ctx, ownerID, conversationID)
		if err == nil {
			return conv, ResolutionFound, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, 0, fmt.Errorf("resolving conversation: %w", err)
		}

		conv, err = s.create(ctx, ownerID)
		if err != nil {
			return nil, 0, err
		}
		s.logger.Info("conversation replaced",
			"requested_id", conversationID,
			"conversation_id", conv.ID)
		return conv, ResolutionReplaced, nil
	}

	conv, err := s.create(ctx, ownerID)
	if err != nil {
		return nil, 0, err
	}
	s.logger.Debug("conversation created", "conversation_id", conv.ID)
	return conv, ResolutionCreated, nil
}

func (s *Service) create(ctx context.Context, ownerID string) (*store.Conversation, error) {
	conv := &store.Conversation{
		ID:      uuid.New().String(),
		OwnerID: ownerID,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return conv, nil
}

// AppendMessage persists one message to the owner's conversation. The
// conversation must exist and belong to ownerID; the store assigns the
// message its position in the thread.
func (s *Service) AppendMessage(ctx context.Context, ownerID, conversationID, role, content string) (*store.Message, error) {
	// Re-check ownership at the write path so a message can never land in
	// someone else's thread, whatever the caller resolved earlier.
	if _, err := s.store.GetConversation(ctx, ownerID, conversationID); err != nil {
		return nil, fmt.Errorf("appending to conversation: %w", err)
	}

	msg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		OwnerID:        ownerID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("recording message: %w", err)
	}

	s.logger.Debug("message recorded",
		"conversation_id", conversationID,
		"message_id", msg.ID,
		"role", role,
		"seq", msg.Seq)
	return msg, nil
}

// History returns the owner's conversation messages in thread order. A
// positive limit returns only the most recent messages, still oldest first.
func (s *Service) History(ctx context.Context, ownerID, conversationID string, limit int) ([]*store.Message, error) {
	if _, err := s.store.GetConversation(ctx, ownerID, conversationID); err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	msgs, err := s.store.GetConversationMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return msgs, nil
}
