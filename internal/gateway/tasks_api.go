// ABOUTME: REST handlers for direct task CRUD, bypassing the assistant
// ABOUTME: Every operation is scoped to the authenticated owner and publishes task events

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/candlewick/taskgate/internal/auth"
	"github.com/candlewick/taskgate/internal/events"
	"github.com/candlewick/taskgate/internal/store"
)

// TaskRequest is the JSON request body for creating or updating a task.
type TaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"due_date,omitempty"`   // YYYY-MM-DD
	Recurrence  string `json:"recurrence,omitempty"` // daily or weekly
}

// TaskResponse is the JSON representation of a task.
type TaskResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	DueDate     string `json:"due_date,omitempty"`
	Recurrence  string `json:"recurrence,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// ListTasksResponse is the JSON response for GET /api/tasks.
type ListTasksResponse struct {
	Tasks []TaskResponse `json:"tasks"`
}

func taskResponse(t *store.Task) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Recurrence:  t.Recurrence,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if t.DueDate != nil {
		resp.DueDate = t.DueDate.Format("2006-01-02")
	}
	return resp
}

// handleTasks handles GET and POST /api/tasks.
func (g *Gateway) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g.handleListTasks(w, r)
	case http.MethodPost:
		g.handleCreateTask(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleTaskRoutes dispatches /api/tasks/{id} and /api/tasks/{id}/complete.
func (g *Gateway) handleTaskRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		g.handleTaskByID(w, r, parts[0])
	case len(parts) == 2 && parts[0] != "" && parts[1] == "complete":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g.handleCompleteTask(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// handleListTasks handles GET /api/tasks with an optional ?status= filter.
func (g *Gateway) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.MustOwnerFromContext(r.Context())

	status := r.URL.Query().Get("status")
	switch status {
	case "", "all", store.TaskStatusPending, store.TaskStatusCompleted:
	default:
		g.sendJSONError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	tasks, err := g.store.ListTasks(r.Context(), ownerID, status)
	if err != nil {
		g.logger.Error("task list failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := ListTasksResponse{Tasks: make([]TaskResponse, 0, len(tasks))}
	for _, t := range tasks {
		response.Tasks = append(response.Tasks, taskResponse(t))
	}
	g.sendJSON(w, http.StatusOK, response)
}

// handleCreateTask handles POST /api/tasks.
func (g *Gateway) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.MustOwnerFromContext(r.Context())

	req, dueDate, err := parseTaskRequest(r)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == "" {
		g.sendJSONError(w, http.StatusBadRequest, "title is required")
		return
	}

	task := &store.Task{
		OwnerID:     ownerID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     dueDate,
		Recurrence:  req.Recurrence,
	}
	if err := g.store.CreateTask(r.Context(), task); err != nil {
		g.logger.Error("task create failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.bus.Publish(taskEvent(ownerID, store.AuditTaskCreated, task))
	g.sendJSON(w, http.StatusCreated, taskResponse(task))
}

// handleTaskByID handles GET, PUT and DELETE /api/tasks/{id}.
func (g *Gateway) handleTaskByID(w http.ResponseWriter, r *http.Request, taskID string) {
	switch r.Method {
	case http.MethodGet:
		g.handleGetTask(w, r, taskID)
	case http.MethodPut:
		g.handleUpdateTask(w, r, taskID)
	case http.MethodDelete:
		g.handleDeleteTask(w, r, taskID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (g *Gateway) handleGetTask(w http.ResponseWriter, r *http.Request, taskID string) {
	ownerID := auth.MustOwnerFromContext(r.Context())

	task, err := g.store.GetTask(r.Context(), ownerID, taskID)
	if err != nil {
		g.sendTaskError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, taskResponse(task))
}

func (g *Gateway) handleUpdateTask(w http.ResponseWriter, r *http.Request, taskID string) {
	ownerID := auth.MustOwnerFromContext(r.Context())

	req, dueDate, err := parseTaskRequest(r)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := g.store.GetTask(r.Context(), ownerID, taskID)
	if err != nil {
		g.sendTaskError(w, err)
		return
	}

	// Only update fields that were provided
	if req.Title != "" {
		task.Title = req.Title
	}
	if req.Description != "" {
		task.Description = req.Description
	}
	if dueDate != nil {
		task.DueDate = dueDate
	}
	if req.Recurrence != "" {
		task.Recurrence = req.Recurrence
	}

	if err := g.store.UpdateTask(r.Context(), task); err != nil {
		g.sendTaskError(w, err)
		return
	}

	g.bus.Publish(taskEvent(ownerID, store.AuditTaskUpdated, task))
	g.sendJSON(w, http.StatusOK, taskResponse(task))
}

func (g *Gateway) handleDeleteTask(w http.ResponseWriter, r *http.Request, taskID string) {
	ownerID := auth.MustOwnerFromContext(r.Context())

	if err := g.store.DeleteTask(r.Context(), ownerID, taskID); err != nil {
		g.sendTaskError(w, err)
		return
	}

	g.bus.Publish(taskEvent(ownerID, store.AuditTaskDeleted, &store.Task{ID: taskID}))
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleCompleteTask(w http.ResponseWriter, r *http.Request, taskID string) {
	ownerID := auth.MustOwnerFromContext(r.Context())

	task, err := g.store.CompleteTask(r.Context(), ownerID, taskID)
	if err != nil {
		g.sendTaskError(w, err)
		return
	}

	g.bus.Publish(taskEvent(ownerID, store.AuditTaskCompleted, task))
	g.sendJSON(w, http.StatusOK, taskResponse(task))
}

// sendTaskError maps store errors to HTTP responses. Ownership mismatch and
// a missing id both surface as 404.
func (g *Gateway) sendTaskError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "task not found")
		return
	}
	g.logger.Error("task operation failed", "error", err)
	g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
}

// parseTaskRequest decodes a task body and validates its optional fields.
func parseTaskRequest(r *http.Request) (*TaskRequest, *time.Time, error) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, nil, errors.New("invalid JSON body")
	}

	switch req.Recurrence {
	case "", store.RecurrenceDaily, store.RecurrenceWeekly:
	default:
		return nil, nil, errors.New("recurrence must be daily or weekly")
	}

	var dueDate *time.Time
	if req.DueDate != "" {
		parsed, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			return nil, nil, errors.New("due_date must be YYYY-MM-DD")
		}
		dueDate = &parsed
	}
	return &req, dueDate, nil
}

func taskEvent(ownerID string, action store.AuditAction, task *store.Task) *events.TaskEvent {
	details := map[string]any{}
	if task.Title != "" {
		details["title"] = task.Title
	}
	return &events.TaskEvent{
		OwnerID: ownerID,
		Action:  action,
		TaskID:  task.ID,
		Details: details,
	}
}
