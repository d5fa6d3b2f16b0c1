// Package agent drives the conversational turn loop.
//
// # Turn lifecycle
//
// One turn runs as a fixed sequence:
//
//  1. Resolve the conversation for the authenticated owner, creating a
//     fresh one when the supplied id is empty or unusable.
//  2. Persist the user message.
//  3. Build the completion context: a system persona carrying the current
//     date, then the stored history in thread order, bounded by the
//     configured history limit.
//  4. First completion with the full tool catalog advertised.
//  5. If tools were requested, dispatch them sequentially in request order,
//     appending each result to the in-memory transcript; tool results are
//     never persisted as conversation messages.
//  6. Second completion with no tools advertised, forcing a text answer.
//     There is exactly one tool round per turn.
//  7. Persist the assistant answer.
//
// Storage and completion-engine failures abort the turn and surface to the
// caller; tool-level failures are rendered as result text and never do.
// A cancelled context stops the turn at the next store or completion call;
// tool mutations already committed stay committed and are reported.
//
// # Concurrency
//
// Turns on the same conversation serialize behind a per-conversation mutex.
// Turns on different conversations run concurrently.
package agent
