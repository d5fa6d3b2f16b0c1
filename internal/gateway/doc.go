// Package gateway wires the taskgate server together and exposes its HTTP
// API.
//
// # Surfaces
//
//   - POST /api/chat runs one conversational turn through the orchestrator.
//     An optional client request_id deduplicates retries within a window.
//   - GET /api/conversations/{id}/messages returns a conversation's history
//     in thread order.
//   - /api/tasks and /api/tasks/{id} provide direct task CRUD for clients
//     that bypass the assistant, plus POST /api/tasks/{id}/complete.
//   - /healthz and /health/ready are unauthenticated probes.
//
// All /api routes sit behind JWT bearer authentication; the verified owner
// id scopes every read and write.
//
// # Events
//
// After a turn or REST mutation commits, the gateway publishes one task
// event per mutation to the in-process bus. The audit recorder and notifier
// consume them in the background; event handling never blocks a request.
package gateway
