// Package app provides the application service layer.
//
// Orchestrates use cases: aggregate reads through the cache hierarchy,
// symbol refreshes against the upstream source, and the leader-gated
// background sweep. Sits between HTTP handlers and domain components.
// Depends on domain interfaces, not concrete implementations.
package app
