// ABOUTME: Tests for the turn orchestrator using a scripted completion client
// ABOUTME: Covers the two-phase protocol, persistence ordering and failure abort paths

package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candlewick/taskgate/internal/conversation"
	"github.com/candlewick/taskgate/internal/llm"
	"github.com/candlewick/taskgate/internal/store"
	"github.com/candlewick/taskgate/internal/tools"
)

// scriptedClient replays canned results in order and records every request.
// Once the script runs out, err (when set) fails every further call.
type scriptedClient struct {
	mu        sync.Mutex
	responses []*llm.Result
	err       error
	requests  [][]llm.Message
	toolsSeen [][]llm.ToolDefinition
}

func (c *scriptedClient) Complete(_ context.Context, messages []llm.Message, defs []llm.ToolDefinition) (*llm.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, append([]llm.Message(nil), messages...))
	c.toolsSeen = append(c.toolsSeen, defs)

	if len(c.responses) > 0 {
		next := c.responses[0]
		c.responses = c.responses[1:]
		return next, nil
	}
	if c.err != nil {
		return nil, c.err
	}
	return &llm.Result{Text: "ok"}, nil
}

func newTestOrchestrator(t *testing.T, client llm.Client, opts Options) (*Orchestrator, store.Store) {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	registry, err := tools.NewRegistry(st)
	require.NoError(t, err)

	convs := conversation.New(st, nil)
	return New(convs, registry, tools.NewExecutor(registry), client, opts), st
}

func TestRunTurn_TextOnly(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Result{{Text: "Hello! How can I help?"}}}
	orch, st := newTestOrchestrator(t, client, Options{})
	ctx := context.Background()

	result, err := orch.RunTurn(ctx, "alice", "", "hi")
	require.NoError(t, err)

	assert.Equal(t, "Hello! How can I help?", result.Response)
	assert.True(t, result.Created)
	assert.Empty(t, result.ToolCalls)
	assert.Empty(t, result.Mutations)

	// Exactly one completion, with the tool catalog advertised.
	require.Len(t, client.requests, 1)
	require.Len(t, client.toolsSeen[0], 5)

	// Both sides of the exchange are persisted in order.
	msgs, err := st.GetConversationMessages(ctx, result.ConversationID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hello! How can I help?", msgs[1].Content)
}

func TestRunTurn_ToolRound(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Result{
		{ToolCalls: []llm.ToolCall{{
			ID:        "call_1",
			Name:      "create-task",
			Arguments: `{"title":"buy milk"}`,
		}}},
		{Text: "Done, I added 'buy milk' to your list."},
	}}
	orch, st := newTestOrchestrator(t, client, Options{})
	ctx := context.Background()

	result, err := orch.RunTurn(ctx, "alice", "", "add buy milk")
	require.NoError(t, err)

	assert.Equal(t, "Done, I added 'buy milk' to your list.", result.Response)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "create-task", result.ToolCalls[0].Name)
	assert.Contains(t, result.ToolCalls[0].Result, "Task created: ID=")
	require.Len(t, result.Mutations, 1)
	assert.Equal(t, store.AuditTaskCreated, result.Mutations[0].Action)

	// The task really exists for this owner.
	listed, err := st.ListTasks(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "buy milk", listed[0].Title)

	// Two completions: tools advertised first, withheld second.
	require.Len(t, client.requests, 2)
	assert.Len(t, client.toolsSeen[0], 5)
	assert.Empty(t, client.toolsSeen[1])

	// The second request carries the tool exchange in the transcript.
	second := client.requests[1]
	last := second[len(second)-1]
	assert.Equal(t, llm.RoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, "Task created: ID=")

	// Tool traffic is never persisted, only the user and assistant turns.
	msgs, err := st.GetConversationMessages(ctx, result.ConversationID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)
}

func TestRunTurn_SequentialToolCallsInOrder(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Result{
		{ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "create-task", Arguments: `{"title":"first"}`},
			{ID: "call_2", Name: "create-task", Arguments: `{"title":"second"}`},
			{ID: "call_3", Name: "list-tasks", Arguments: `{}`},
		}},
		{Text: "Both added."},
	}}
	orch, _ := newTestOrchestrator(t, client, Options{})

	result, err := orch.RunTurn(context.Background(), "alice", "", "add two tasks")
	require.NoError(t, err)

	require.Len(t, result.ToolCalls, 3)
	assert.Equal(t, "create-task", result.ToolCalls[0].Name)
	assert.Equal(t, "create-task", result.ToolCalls[1].Name)
	assert.Equal(t, "list-tasks", result.ToolCalls[2].Name)

	// The list call ran after both creates, so it sees them.
	assert.Contains(t, result.ToolCalls[2].Result, "first")
	assert.Contains(t, result.ToolCalls[2].Result, "second")
	assert.Len(t, result.Mutations, 2)
}

func TestRunTurn_ContinuesExistingConversation(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Result{
		{Text: "first answer"},
		{Text: "second answer"},
	}}
	orch, st := newTestOrchestrator(t, client, Options{})
	ctx := context.Background()

	first, err := orch.RunTurn(ctx, "alice", "", "hello")
	require.NoError(t, err)
	second, err := orch.RunTurn(ctx, "alice", first.ConversationID, "still there?")
	require.NoError(t, err)

	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.False(t, second.Created)

	// The second turn's context replays the first exchange.
	req := client.requests[1]
	require.GreaterOrEqual(t, len(req), 4)
	assert.Equal(t, llm.RoleSystem, req[0].Role)
	assert.Equal(t, "hello", req[1].Content)
	assert.Equal(t, "first answer", req[2].Content)
	assert.Equal(t, "still there?", req[3].Content)

	msgs, err := st.GetConversationMessages(ctx, first.ConversationID, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
}

func TestRunTurn_UnusableConversationIDStartsFresh(t *testing.T) {
	client := &scriptedClient{}
	orch, _ := newTestOrchestrator(t, client, Options{})

	result, err := orch.RunTurn(context.Background(), "alice", "not-a-real-id", "hi")
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.NotEqual(t, "not-a-real-id", result.ConversationID)
}

func TestRunTurn_HistoryLimitBoundsContext(t *testing.T) {
	client := &scriptedClient{}
	orch, _ := newTestOrchestrator(t, client, Options{HistoryLimit: 2})
	ctx := context.Background()

	first, err := orch.RunTurn(ctx, "alice", "", "one")
	require.NoError(t, err)
	for _, msg := range []string{"two", "three"} {
		_, err := orch.RunTurn(ctx, "alice", first.ConversationID, msg)
		require.NoError(t, err)
	}

	// System message plus at most 2 replayed messages per request.
	lastReq := client.requests[len(client.requests)-1]
	require.Len(t, lastReq, 3)
	assert.Equal(t, llm.RoleSystem, lastReq[0].Role)
	assert.Equal(t, "three", lastReq[2].Content)
}

func TestRunTurn_ProviderFailureAbortsTurn(t *testing.T) {
	client := &scriptedClient{err: fmt.Errorf("%w: upstream timeout", llm.ErrProvider)}
	orch, st := newTestOrchestrator(t, client, Options{})
	ctx := context.Background()

	convs := conversation.New(st, nil)
	conv, _, err := convs.ResolveOrCreate(ctx, "alice", "")
	require.NoError(t, err)

	_, err = orch.RunTurn(ctx, "alice", conv.ID, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrProvider)

	// The user message was persisted before the failure; no assistant
	// message was written.
	msgs, err := st.GetConversationMessages(ctx, conv.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
}

func TestRunTurn_SecondCompletionFailureReportsMutations(t *testing.T) {
	client := &scriptedClient{
		responses: []*llm.Result{
			{ToolCalls: []llm.ToolCall{{
				ID:        "call_1",
				Name:      "create-task",
				Arguments: `{"title":"buy milk"}`,
			}}},
		},
		err: fmt.Errorf("%w: upstream timeout", llm.ErrProvider),
	}
	orch, st := newTestOrchestrator(t, client, Options{})
	ctx := context.Background()

	result, err := orch.RunTurn(ctx, "alice", "", "add buy milk")
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrProvider)

	// The create committed before the second completion failed; the
	// partial result comes back so the caller can see the mutation.
	require.NotNil(t, result)
	require.Len(t, result.ToolCalls, 1)
	require.Len(t, result.Mutations, 1)
	assert.Equal(t, store.AuditTaskCreated, result.Mutations[0].Action)

	listed, err := st.ListTasks(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "buy milk", listed[0].Title)
}

func TestRunTurn_ToolFailureDoesNotAbort(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Result{
		{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "no-such-tool"}}},
		{Text: "Sorry, I could not do that."},
	}}
	orch, _ := newTestOrchestrator(t, client, Options{})

	result, err := orch.RunTurn(context.Background(), "alice", "", "do something odd")
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I could not do that.", result.Response)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "Tool not found: no-such-tool.", result.ToolCalls[0].Result)
	assert.Empty(t, result.Mutations)
}

func TestRunTurn_ConcurrentTurnsOnSameConversationSerialize(t *testing.T) {
	client := &scriptedClient{}
	orch, st := newTestOrchestrator(t, client, Options{})
	ctx := context.Background()

	seed, err := orch.RunTurn(ctx, "alice", "", "start")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = orch.RunTurn(ctx, "alice", seed.ConversationID, fmt.Sprintf("msg-%d", i))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	// 1 seed turn + 4 concurrent turns, two messages each, with gapless
	// strictly increasing sequence numbers.
	msgs, err := st.GetConversationMessages(ctx, seed.ConversationID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 10)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Seq)
	}
	// Each user message is immediately followed by its assistant reply.
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, store.RoleUser, msgs[i].Role)
		assert.Equal(t, store.RoleAssistant, msgs[i+1].Role)
	}
}

func TestRunTurn_OwnersIsolated(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Result{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "create-task", Arguments: `{"title":"alice secret"}`}}},
		{Text: "added"},
		{ToolCalls: []llm.ToolCall{{ID: "c2", Name: "list-tasks", Arguments: `{}`}}},
		{Text: "you have none"},
	}}
	orch, _ := newTestOrchestrator(t, client, Options{})
	ctx := context.Background()

	_, err := orch.RunTurn(ctx, "alice", "", "add my secret task")
	require.NoError(t, err)

	result, err := orch.RunTurn(ctx, "bob", "", "what are my tasks?")
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "No tasks found.", result.ToolCalls[0].Result)
}

func TestConversationLocks_DropIdleEntries(t *testing.T) {
	locks := newConversationLocks()

	unlock := locks.lock("conv-1")
	unlock()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.entries)
}
