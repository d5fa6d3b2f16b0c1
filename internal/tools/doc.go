// ABOUTME: Package documentation for the task tool catalog
// ABOUTME: Covers schema reflection, validation and the owner-scoping contract

// Package tools implements the fixed catalog of task tools the completion
// engine can request during a turn.
//
// Each tool's parameter schema is reflected from its handler's typed input
// struct at registration, so the advertised catalog and the accepted inputs
// cannot drift apart. Schemas are compiled when the registry is built and
// every incoming argument payload is validated before its handler runs.
//
// Tool handlers receive the authenticated owner id from the dispatching
// layer; no tool schema carries an identity field, and arguments cannot
// override the caller. Failures at any stage of dispatch (unknown tool,
// invalid arguments, handler error) are rendered as result text rather than
// returned as errors, so the engine can react to them within the same turn.
package tools
