// ABOUTME: Turn orchestrator driving the resolve/persist/complete/dispatch cycle
// ABOUTME: Central coordinator between conversation storage, the tool catalog and the completion engine

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/candlewick/taskgate/internal/conversation"
	"github.com/candlewick/taskgate/internal/llm"
	"github.com/candlewick/taskgate/internal/store"
	"github.com/candlewick/taskgate/internal/tools"
)

const (
	// defaultHistoryLimit bounds how many stored messages are replayed into
	// the completion context each turn.
	defaultHistoryLimit = 50

	systemPersona = "You are a helpful task assistant. You manage tasks for the user using the available tools. Always check the current date if needed."
)

// ToolInvocation records one tool call executed during a turn.
type ToolInvocation struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
	Result    string `json:"result"`
}

// TurnResult is everything a caller learns from one completed turn.
type TurnResult struct {
	ConversationID string
	Response       string
	ToolCalls      []ToolInvocation
	Mutations      []*tools.Mutation
	Created        bool // true when the conversation did not exist before this turn
}

// Orchestrator drives one conversational turn end to end: resolve the
// conversation, persist the user message, run the two-phase completion with
// tool dispatch in between, and persist the assistant's answer.
type Orchestrator struct {
	conversations *conversation.Service
	registry      *tools.Registry
	executor      *tools.Executor
	client        llm.Client
	historyLimit  int
	locks         *conversationLocks
	logger        *slog.Logger
	now           func() time.Time
}

// Options tunes orchestrator behavior beyond its collaborators.
type Options struct {
	// HistoryLimit caps how many stored messages feed the completion
	// context. Zero means the default.
	HistoryLimit int
	Logger       *slog.Logger
}

// New creates an orchestrator over the given collaborators.
func New(conversations *conversation.Service, registry *tools.Registry, executor *tools.Executor, client llm.Client, opts Options) *Orchestrator {
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		conversations: conversations,
		registry:      registry,
		executor:      executor,
		client:        client,
		historyLimit:  limit,
		locks:         newConversationLocks(),
		logger:        logger.With("component", "agent"),
		now:           time.Now,
	}
}

// RunTurn executes one turn for the authenticated owner. conversationID may
// be empty to start a new conversation; an id that cannot be used for this
// owner is silently replaced with a fresh one.
//
// Storage and provider failures abort the turn and are returned; tool-level
// failures never do, they surface to the engine as result text. When a turn
// fails after tools have already run, the partial TurnResult is returned
// alongside the error so callers can account for the committed mutations.
func (o *Orchestrator) RunTurn(ctx context.Context, ownerID, conversationID, message string) (*TurnResult, error) {
	conv, resolution, err := o.conversations.ResolveOrCreate(ctx, ownerID, conversationID)
	if err != nil {
		return nil, err
	}

	// Turns on the same conversation serialize; turns on different
	// conversations proceed in parallel.
	unlock := o.locks.lock(conv.ID)
	defer unlock()

	if _, err := o.conversations.AppendMessage(ctx, ownerID, conv.ID, store.RoleUser, message); err != nil {
		return nil, err
	}

	transcript, err := o.buildContext(ctx, ownerID, conv.ID)
	if err != nil {
		return nil, err
	}

	first, err := o.client.Complete(ctx, transcript, o.registry.Definitions())
	if err != nil {
		return nil, fmt.Errorf("first completion: %w", err)
	}

	result := &TurnResult{
		ConversationID: conv.ID,
		Created:        resolution != conversation.ResolutionFound,
	}

	if !first.RequestedTools() {
		result.Response = first.Text
	} else {
		response, err := o.runToolRound(ctx, ownerID, transcript, first, result)
		if err != nil {
			// The tools already committed their mutations; hand the
			// partial result back with the failure.
			return result, err
		}
		result.Response = response
	}

	if _, err := o.conversations.AppendMessage(ctx, ownerID, conv.ID, store.RoleAssistant, result.Response); err != nil {
		return result, err
	}

	o.logger.Info("turn completed",
		"conversation_id", conv.ID,
		"resolution", resolution.String(),
		"tool_calls", len(result.ToolCalls))
	return result, nil
}

// buildContext assembles the completion context: the system persona with the
// current date, then the stored history in thread order. The just-persisted
// user message arrives as part of the history read.
func (o *Orchestrator) buildContext(ctx context.Context, ownerID, conversationID string) ([]llm.Message, error) {
	history, err := o.conversations.History(ctx, ownerID, conversationID, o.historyLimit)
	if err != nil {
		return nil, err
	}

	transcript := make([]llm.Message, 0, len(history)+1)
	transcript = append(transcript, llm.Message{
		Role:    llm.RoleSystem,
		Content: fmt.Sprintf("%s Today is %s.", systemPersona, o.now().UTC().Format(time.RFC3339)),
	})
	for _, m := range history {
		transcript = append(transcript, llm.Message{Role: m.Role, Content: m.Content})
	}
	return transcript, nil
}

// runToolRound dispatches the requested calls in order, appends the exchange
// to the in-memory transcript, and asks the engine for its final answer with
// no tools advertised.
func (o *Orchestrator) runToolRound(ctx context.Context, ownerID string, transcript []llm.Message, first *llm.Result, result *TurnResult) (string, error) {
	transcript = append(transcript, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   first.Text,
		ToolCalls: first.ToolCalls,
	})

	for _, call := range first.ToolCalls {
		dispatched := o.executor.Dispatch(ctx, ownerID, call)

		result.ToolCalls = append(result.ToolCalls, ToolInvocation{
			Name:      call.Name,
			Arguments: call.Arguments,
			Result:    dispatched.Text,
		})
		if dispatched.Mutation != nil {
			result.Mutations = append(result.Mutations, dispatched.Mutation)
		}

		transcript = append(transcript, llm.Message{
			Role:       llm.RoleTool,
			Content:    dispatched.Text,
			ToolCallID: call.ID,
			Name:       call.Name,
		})
	}

	// Second phase: no tools advertised, so the engine must answer in text.
	second, err := o.client.Complete(ctx, transcript, nil)
	if err != nil {
		return "", fmt.Errorf("second completion: %w", err)
	}
	return second.Text, nil
}
