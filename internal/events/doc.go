// Package events provides in-process pub/sub for task mutation events.
//
// The gateway publishes one TaskEvent per committed mutation after a turn
// or API call completes. Built-in consumers subscribe at startup: the
// AuditRecorder persists each event to the audit log and the Notifier
// emits a notification log line. Publishing never blocks; events are
// dropped for subscribers that fall behind.
package events
