// Package dedupe provides request deduplication using a time-based cache.
//
// Chat clients may retry a POST after a timeout even though the original
// turn committed. Keying the cache on owner id plus client request id lets
// the gateway reject the replay within a configurable window instead of
// running the turn again.
package dedupe
