// ABOUTME: Provider-agnostic completion client contract for the agent orchestrator
// ABOUTME: Defines the two-phase request shape: tools advertised, then omitted

package llm

import (
	"context"
	"errors"
)

// ErrProvider wraps any failure of the completion engine (network, quota,
// malformed response). Callers treat it as a retryable service failure.
var ErrProvider = errors.New("completion provider error")

// Message roles understood by the completion engine.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a provider-agnostic chat message.
type Message struct {
	Role       string     // system, user, assistant, tool
	Content    string     // text content
	ToolCalls  []ToolCall // tool calls requested by the assistant
	ToolCallID string     // set when Role == tool to correlate with a ToolCall
	Name       string     // tool name, set when Role == tool
}

// ToolCall represents a single tool invocation requested by the engine.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON object
}

// ToolDefinition is a provider-agnostic description of a tool that can be
// advertised to the engine during a completion request.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema object
}

// Result is the outcome of one completion request: either a terminal text
// answer, or an ordered list of requested tool calls.
type Result struct {
	Text      string
	ToolCalls []ToolCall
}

// RequestedTools reports whether the engine chose tool calls over a direct answer.
func (r *Result) RequestedTools() bool {
	return len(r.ToolCalls) > 0
}

// Client is a stateless completion engine abstraction. Passing a nil or empty
// tools slice omits the tool advertisement entirely, forcing a terminal text
// answer; this is how the orchestrator caps tool recursion at one round.
type Client interface {
	Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Result, error)
}
