// ABOUTME: Task tool handlers wrapping the owner-scoped task store.
// ABOUTME: The caller's authenticated owner id is injected; arguments never carry identity.

package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/candlewick/taskgate/internal/store"
)

type taskHandlers struct {
	tasks store.TaskStore
}

type createTaskInput struct {
	Title       string `json:"title" jsonschema:"description=Short title for the task"`
	Description string `json:"description,omitempty" jsonschema:"description=Optional longer description"`
}

func (h *taskHandlers) CreateTask(ctx context.Context, ownerID string, in createTaskInput) (string, *Mutation, error) {
	task := &store.Task{
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
	}
	if err := h.tasks.CreateTask(ctx, task); err != nil {
		return "", nil, err
	}

	mutation := &Mutation{
		Action:  store.AuditTaskCreated,
		TaskID:  task.ID,
		Details: map[string]any{"title": task.Title},
	}
	return fmt.Sprintf("Task created: ID=%s, Title='%s'", task.ID, task.Title), mutation, nil
}

type listTasksInput struct {
	Status string `json:"status,omitempty" jsonschema:"enum=all,enum=pending,enum=completed,description=Filter by task status"`
}

func (h *taskHandlers) ListTasks(ctx context.Context, ownerID string, in listTasksInput) (string, *Mutation, error) {
	tasks, err := h.tasks.ListTasks(ctx, ownerID, in.Status)
	if err != nil {
		return "", nil, err
	}
	if len(tasks) == 0 {
		return "No tasks found.", nil, nil
	}

	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		line := fmt.Sprintf("[%s] %s (%s)", t.ID, t.Title, t.Status)
		if t.DueDate != nil {
			line += " due " + t.DueDate.Format("2006-01-02")
		}
		if t.Recurrence != "" {
			line += " repeats " + t.Recurrence
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil, nil
}

type completeTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"description=ID of the task to complete"`
}

func (h *taskHandlers) CompleteTask(ctx context.Context, ownerID string, in completeTaskInput) (string, *Mutation, error) {
	task, err := h.tasks.CompleteTask(ctx, ownerID, in.TaskID)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundText(in.TaskID), nil, nil
	}
	if err != nil {
		return "", nil, err
	}

	mutation := &Mutation{
		Action:  store.AuditTaskCompleted,
		TaskID:  task.ID,
		Details: map[string]any{"title": task.Title},
	}
	return fmt.Sprintf("Task %s marked as completed.", task.ID), mutation, nil
}

type deleteTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"description=ID of the task to delete"`
}

func (h *taskHandlers) DeleteTask(ctx context.Context, ownerID string, in deleteTaskInput) (string, *Mutation, error) {
	err := h.tasks.DeleteTask(ctx, ownerID, in.TaskID)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundText(in.TaskID), nil, nil
	}
	if err != nil {
		return "", nil, err
	}

	mutation := &Mutation{
		Action: store.AuditTaskDeleted,
		TaskID: in.TaskID,
	}
	return fmt.Sprintf("Task %s deleted.", in.TaskID), mutation, nil
}

type updateTaskInput struct {
	TaskID      string `json:"task_id" jsonschema:"description=ID of the task to update"`
	Title       string `json:"title,omitempty" jsonschema:"description=New title (omit to keep the current one)"`
	Description string `json:"description,omitempty" jsonschema:"description=New description (omit to keep the current one)"`
}

func (h *taskHandlers) UpdateTask(ctx context.Context, ownerID string, in updateTaskInput) (string, *Mutation, error) {
	task, err := h.tasks.GetTask(ctx, ownerID, in.TaskID)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundText(in.TaskID), nil, nil
	}
	if err != nil {
		return "", nil, err
	}

	// Only update fields that were provided
	if in.Title != "" {
		task.Title = in.Title
	}
	if in.Description != "" {
		task.Description = in.Description
	}

	if err := h.tasks.UpdateTask(ctx, task); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundText(in.TaskID), nil, nil
		}
		return "", nil, err
	}

	mutation := &Mutation{
		Action:  store.AuditTaskUpdated,
		TaskID:  task.ID,
		Details: map[string]any{"title": task.Title},
	}
	return fmt.Sprintf("Task %s updated.", task.ID), mutation, nil
}

// notFoundText renders the uniform not-found result. Ownership mismatch and a
// genuinely absent id must produce the same text.
func notFoundText(taskID string) string {
	return fmt.Sprintf("Task %s not found.", taskID)
}
