// Package store provides persistent storage for taskgate using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with specialized
// interfaces:
//
//   - TaskStore: owner-scoped task CRUD and completion
//   - ConversationStore: conversations and append-only messages
//   - AuditStore: the audit trail written by the event-bus consumer
//
// SQLiteStore implements all interfaces in a single struct, allowing easy
// composition while maintaining clear interface boundaries.
//
// # Owner scoping
//
// Every task and conversation row carries an owner_id, and every read or
// mutation filters by it. An id that exists under a different owner is
// reported as ErrNotFound, identical to an id that does not exist at all.
// Callers cannot distinguish the two cases.
//
// # Message ordering
//
// Messages carry a per-conversation seq column assigned atomically at insert
// via a scalar subquery, with a UNIQUE(conversation_id, seq) constraint.
// History reads order by seq, never by wall-clock timestamps, so concurrent
// writers cannot interleave the recorded order.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// All timestamps are stored as UTC RFC3339 text.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: entity absent or owned by someone else
//   - ErrDuplicateConversation: conversation id already taken
//
// All methods accept context.Context for cancellation support.
package store
