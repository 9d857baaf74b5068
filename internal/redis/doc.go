// Package redis wraps the shared Redis client and everything built on it:
// operation metrics and circuit breaking via hooks, the aggregate snapshot
// store, the refresh debouncer, the aggregate-updated pub/sub fanout and the
// maintainer leader lock.
package redis
