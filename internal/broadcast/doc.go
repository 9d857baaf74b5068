// Package broadcast implements the WebSocket fanout hub using the actor pattern.
//
// The Hub keeps a symbol-keyed registry of connected dashboard clients and fans
// refreshed aggregates out to everyone watching that symbol. Single goroutine +
// command channel (no mutexes). Per-connection write goroutines absorb slow
// clients; a client whose send buffer stays full is evicted instead of stalling
// the hub.
package broadcast
