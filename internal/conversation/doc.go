// Package conversation manages conversation lifecycle and message
// persistence for the chat surface.
//
// # Resolution
//
// Callers may supply a conversation id to continue a thread. The service
// resolves it three ways:
//
//   - Found: the id names a conversation owned by the caller; it is reused.
//   - Created: no id was supplied; a fresh conversation is started.
//   - Replaced: the id is unknown or belongs to another owner; a fresh
//     conversation is started silently. The two cases are deliberately
//     indistinguishable so an id can never be probed for existence.
//
// # Persistence
//
// Every message flows through AppendMessage before anything acts on it, and
// the store assigns each message a per-conversation sequence number. History
// reads return messages in that sequence order, optionally bounded to the
// most recent N.
package conversation
