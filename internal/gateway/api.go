// ABOUTME: HTTP API handlers for the chat surface
// ABOUTME: POST /api/chat runs one turn; conversation history is read-only

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/candlewick/taskgate/internal/agent"
	"github.com/candlewick/taskgate/internal/auth"
	"github.com/candlewick/taskgate/internal/llm"
	"github.com/candlewick/taskgate/internal/store"
)

// ChatRequest is the JSON request body for POST /api/chat.
type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	RequestID      string `json:"request_id,omitempty"`
}

// ChatResponse is the JSON response for POST /api/chat.
type ChatResponse struct {
	ConversationID      string                 `json:"conversation_id"`
	Response            string                 `json:"response"`
	ToolCalls           []agent.ToolInvocation `json:"tool_calls"`
	ConversationCreated bool                   `json:"conversation_created"`
}

// MessageResponse is one message in a conversation history response.
type MessageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Seq       int64  `json:"seq"`
	CreatedAt string `json:"created_at"`
}

// ConversationMessagesResponse is the JSON response for
// GET /api/conversations/{id}/messages.
type ConversationMessagesResponse struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []MessageResponse `json:"messages"`
}

// handleChat handles POST /api/chat: one full conversational turn.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ownerID := auth.MustOwnerFromContext(r.Context())

	req, err := parseChatRequest(r.Body)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A retried request that already ran must not run the turn again.
	if req.RequestID != "" {
		if g.dedupe.CheckAndMark(ownerID + ":" + req.RequestID) {
			g.sendJSONError(w, http.StatusConflict, "duplicate request")
			return
		}
	}

	result, err := g.orchestrator.RunTurn(r.Context(), ownerID, req.ConversationID, req.Message)
	if err != nil {
		// Mutations committed before the failure still get their events.
		// A turn that failed before running any tool changed nothing, so
		// the retry key is released for a clean retry.
		if result != nil && len(result.Mutations) > 0 {
			g.publishMutations(ownerID, result.Mutations)
		} else if req.RequestID != "" {
			g.dedupe.Forget(ownerID + ":" + req.RequestID)
		}
		if errors.Is(err, llm.ErrProvider) {
			g.logger.Error("completion provider failed", "error", err)
			g.sendJSONError(w, http.StatusBadGateway, "assistant unavailable")
			return
		}
		g.logger.Error("turn failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.publishMutations(ownerID, result.Mutations)

	toolCalls := result.ToolCalls
	if toolCalls == nil {
		toolCalls = []agent.ToolInvocation{}
	}
	g.sendJSON(w, http.StatusOK, ChatResponse{
		ConversationID:      result.ConversationID,
		Response:            result.Response,
		ToolCalls:           toolCalls,
		ConversationCreated: result.Created,
	})
}

// handleConversationRoutes dispatches /api/conversations/{id}/messages.
func (g *Gateway) handleConversationRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "messages" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	g.handleConversationMessages(w, r, parts[0])
}

// handleConversationMessages handles GET /api/conversations/{id}/messages.
// Supports an optional ?limit=N query parameter for the most recent N
// messages, still in thread order.
func (g *Gateway) handleConversationMessages(w http.ResponseWriter, r *http.Request, conversationID string) {
	ownerID := auth.MustOwnerFromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			g.sendJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	if _, err := g.store.GetConversation(r.Context(), ownerID, conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
		g.logger.Error("conversation lookup failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	msgs, err := g.store.GetConversationMessages(r.Context(), conversationID, limit)
	if err != nil {
		g.logger.Error("history read failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := ConversationMessagesResponse{
		ConversationID: conversationID,
		Messages:       make([]MessageResponse, 0, len(msgs)),
	}
	for _, m := range msgs {
		response.Messages = append(response.Messages, MessageResponse{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			Seq:       m.Seq,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	g.sendJSON(w, http.StatusOK, response)
}

// parseChatRequest parses and validates a ChatRequest from the given reader.
func parseChatRequest(r io.Reader) (*ChatRequest, error) {
	var req ChatRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.New("message is required")
	}
	return &req, nil
}

// sendJSON writes a JSON response with the given status code.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		g.logger.Error("encoding response failed", "error", err)
	}
}

// sendJSONError writes a JSON error response with the given status code.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.sendJSON(w, status, map[string]string{"error": message})
}
