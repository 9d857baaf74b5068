// Package database provides the PostgreSQL persistence layer: pgx pool
// setup with query metrics, embedded tern migrations guarded by an advisory
// lock, and the submission repository.
package database
