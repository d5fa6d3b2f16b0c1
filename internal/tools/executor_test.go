// ABOUTME: Tests for the tool executor's dispatch paths
// ABOUTME: Every failure mode must come back as result text, never an error

package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candlewick/taskgate/internal/llm"
	"github.com/candlewick/taskgate/internal/store"
)

func TestExecutor_CreateAndList(t *testing.T) {
	registry, _ := newTestRegistry(t)
	exec := NewExecutor(registry)
	ctx := context.Background()

	created := exec.Dispatch(ctx, "alice", llm.ToolCall{
		ID:        "call_1",
		Name:      "create-task",
		Arguments: `{"title":"buy milk","description":"two liters"}`,
	})
	assert.Contains(t, created.Text, "Task created: ID=")
	assert.Contains(t, created.Text, "Title='buy milk'")
	require.NotNil(t, created.Mutation)
	assert.Equal(t, store.AuditTaskCreated, created.Mutation.Action)
	assert.NotEmpty(t, created.Mutation.TaskID)

	listed := exec.Dispatch(ctx, "alice", llm.ToolCall{Name: "list-tasks", Arguments: `{}`})
	assert.Contains(t, listed.Text, "buy milk")
	assert.Contains(t, listed.Text, "(pending)")
	assert.Nil(t, listed.Mutation)

	// The listing is owner-scoped: another caller sees nothing.
	empty := exec.Dispatch(ctx, "bob", llm.ToolCall{Name: "list-tasks", Arguments: `{}`})
	assert.Equal(t, "No tasks found.", empty.Text)
}

func TestExecutor_CompleteUpdateDelete(t *testing.T) {
	registry, st := newTestRegistry(t)
	exec := NewExecutor(registry)
	ctx := context.Background()

	task := &store.Task{OwnerID: "alice", Title: "write report"}
	require.NoError(t, st.CreateTask(ctx, task))

	updated := exec.Dispatch(ctx, "alice", llm.ToolCall{
		Name:      "update-task",
		Arguments: fmt.Sprintf(`{"task_id":%q,"title":"write the report"}`, task.ID),
	})
	assert.Equal(t, fmt.Sprintf("Task %s updated.", task.ID), updated.Text)
	require.NotNil(t, updated.Mutation)
	assert.Equal(t, store.AuditTaskUpdated, updated.Mutation.Action)

	completed := exec.Dispatch(ctx, "alice", llm.ToolCall{
		Name:      "complete-task",
		Arguments: fmt.Sprintf(`{"task_id":%q}`, task.ID),
	})
	assert.Equal(t, fmt.Sprintf("Task %s marked as completed.", task.ID), completed.Text)
	require.NotNil(t, completed.Mutation)
	assert.Equal(t, store.AuditTaskCompleted, completed.Mutation.Action)

	deleted := exec.Dispatch(ctx, "alice", llm.ToolCall{
		Name:      "delete-task",
		Arguments: fmt.Sprintf(`{"task_id":%q}`, task.ID),
	})
	assert.Equal(t, fmt.Sprintf("Task %s deleted.", task.ID), deleted.Text)
	require.NotNil(t, deleted.Mutation)
	assert.Equal(t, store.AuditTaskDeleted, deleted.Mutation.Action)
}

func TestExecutor_NotFoundTextIsUniform(t *testing.T) {
	registry, st := newTestRegistry(t)
	exec := NewExecutor(registry)
	ctx := context.Background()

	// A task owned by someone else and an id that never existed must be
	// indistinguishable to the caller.
	other := &store.Task{OwnerID: "bob", Title: "private"}
	require.NoError(t, st.CreateTask(ctx, other))

	foreign := exec.Dispatch(ctx, "alice", llm.ToolCall{
		Name:      "complete-task",
		Arguments: fmt.Sprintf(`{"task_id":%q}`, other.ID),
	})
	missing := exec.Dispatch(ctx, "alice", llm.ToolCall{
		Name:      "complete-task",
		Arguments: `{"task_id":"no-such-id"}`,
	})

	assert.Equal(t, fmt.Sprintf("Task %s not found.", other.ID), foreign.Text)
	assert.Equal(t, "Task no-such-id not found.", missing.Text)
	assert.Nil(t, foreign.Mutation)
	assert.Nil(t, missing.Mutation)

	// And the foreign task is untouched.
	got, err := st.GetTask(ctx, "bob", other.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskStatusPending, got.Status)
}

func TestExecutor_UnknownTool(t *testing.T) {
	registry, _ := newTestRegistry(t)
	exec := NewExecutor(registry)

	res := exec.Dispatch(context.Background(), "alice", llm.ToolCall{Name: "drop-tables"})
	assert.Equal(t, "Tool not found: drop-tables.", res.Text)
	assert.Nil(t, res.Mutation)
}

func TestExecutor_ValidationFailureBecomesText(t *testing.T) {
	registry, _ := newTestRegistry(t)
	exec := NewExecutor(registry)

	res := exec.Dispatch(context.Background(), "alice", llm.ToolCall{
		Name:      "create-task",
		Arguments: `{"description":"no title here"}`,
	})
	assert.Contains(t, res.Text, "Validation error:")
	assert.Nil(t, res.Mutation)
}

func TestExecutor_EmptyArgumentsTreatedAsEmptyObject(t *testing.T) {
	registry, _ := newTestRegistry(t)
	exec := NewExecutor(registry)

	res := exec.Dispatch(context.Background(), "alice", llm.ToolCall{Name: "list-tasks"})
	assert.Equal(t, "No tasks found.", res.Text)
}
