// ABOUTME: Audit log entity and store methods for tracking task mutations
// ABOUTME: Records which owner did what to which entity, fed by the event bus consumer

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents an auditable action.
type AuditAction string

const (
	AuditTaskCreated   AuditAction = "task_created"
	AuditTaskUpdated   AuditAction = "task_updated"
	AuditTaskCompleted AuditAction = "task_completed"
	AuditTaskDeleted   AuditAction = "task_deleted"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID         string         // UUID v4
	EntityType string         // "task"
	EntityID   string         // ID of the affected entity
	Action     AuditAction    // what happened
	OwnerID    string         // whose data was affected
	Timestamp  time.Time      // when it happened
	Details    map[string]any // additional context, stored as JSON
}

// AuditFilter specifies filtering options for listing audit entries.
type AuditFilter struct {
	OwnerID    string       // filter by owner, empty = all
	EntityType string       // filter by entity type, empty = all
	EntityID   string       // filter by entity id, empty = all
	Action     *AuditAction // filter by action type
	Since      *time.Time   // entries after this time
	Limit      int          // max results (default 100, max 1000)
}

// AuditStore defines audit log persistence. The audit log is written by the
// event-bus audit consumer, never directly by the orchestrator core.
type AuditStore interface {
	AppendAuditLog(ctx context.Context, e *AuditEntry) error
	ListAuditLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}

// Ensure SQLiteStore implements AuditStore.
var _ AuditStore = (*SQLiteStore)(nil)

// AppendAuditLog appends a new entry to the audit log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var detailsJSON *string
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshaling audit details: %w", err)
		}
		str := string(b)
		detailsJSON = &str
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, entity_type, entity_id, action, owner_id, ts, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.EntityType, e.EntityID, string(e.Action), e.OwnerID,
		e.Timestamp.UTC().Format(time.RFC3339), detailsJSON)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit entry", "id", e.ID, "action", e.Action, "entity_id", e.EntityID)
	return nil
}

// ListAuditLog returns audit entries matching the filter, newest first.
func (s *SQLiteStore) ListAuditLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `SELECT id, entity_type, entity_id, action, owner_id, ts, details FROM audit_log WHERE 1=1`
	var args []any

	if filter.OwnerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, filter.OwnerID)
	}
	if filter.EntityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		query += ` AND entity_id = ?`
		args = append(args, filter.EntityID)
	}
	if filter.Action != nil {
		query += ` AND action = ?`
		args = append(args, string(*filter.Action))
	}
	if filter.Since != nil {
		query += ` AND ts >= ?`
		args = append(args, filter.Since.UTC().Format(time.RFC3339))
	}

	query += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		var action, tsStr string
		var detailsJSON sql.NullString

		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &action, &e.OwnerID, &tsStr, &detailsJSON); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		e.Action = AuditAction(action)
		e.Timestamp, _ = time.Parse(time.RFC3339, tsStr)
		if detailsJSON.Valid {
			_ = json.Unmarshal([]byte(detailsJSON.String), &e.Details) // Best effort: invalid JSON leaves details empty
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
