// ABOUTME: Tool executor dispatching engine-requested calls against the registry
// ABOUTME: Never returns an error to the caller; every failure becomes result text

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/candlewick/taskgate/internal/llm"
)

// Result is the outcome of one dispatch. Text is always set and is what the
// completion engine sees; Mutation is set only when a task mutation committed.
type Result struct {
	Text     string
	Mutation *Mutation
}

// Executor dispatches named tool calls against a Registry. Dispatch converts
// every failure mode into result text so the completion engine can react to
// it within the same turn; it never raises.
type Executor struct {
	registry *Registry
	logger   *slog.Logger
}

// NewExecutor creates an Executor over the given registry.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{
		registry: registry,
		logger:   slog.Default().With("component", "tools"),
	}
}

// Dispatch executes one requested tool call for the authenticated owner.
// The ownerID always comes from the verified caller identity; any identity
// present inside the arguments is ignored.
func (e *Executor) Dispatch(ctx context.Context, ownerID string, call llm.ToolCall) Result {
	tool := e.registry.lookup(call.Name)
	if tool == nil {
		e.logger.Warn("unknown tool requested", "tool", call.Name)
		return Result{Text: fmt.Sprintf("Tool not found: %s.", call.Name)}
	}

	args := json.RawMessage(call.Arguments)
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	if msg := tool.validate(args); msg != "" {
		e.logger.Debug("tool arguments rejected", "tool", call.Name, "reason", msg)
		return Result{Text: fmt.Sprintf("Validation error: %s", msg)}
	}

	text, mutation, err := tool.invoke(ctx, ownerID, args)
	if err != nil {
		// Tool-level failures are isolated: render them as result text and
		// let the remaining calls in the turn proceed.
		e.logger.Error("tool execution failed", "tool", call.Name, "error", err)
		return Result{Text: fmt.Sprintf("Error executing %s: %v", call.Name, err)}
	}

	e.logger.Debug("tool dispatched", "tool", call.Name, "mutated", mutation != nil)
	return Result{Text: text, Mutation: mutation}
}
