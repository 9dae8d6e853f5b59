// Package postgres provides the PostgreSQL implementation of store.TaskStore,
// the embedded schema migrations it depends on, and helpers for opening a
// pgx-backed database/sql connection pool.
package postgres
