// Package store defines the task persistence contract and its in-memory
// implementation. The interface keeps the dispatcher and status queries
// independent of where records live; a PostgreSQL implementation is provided
// by the platform/postgres package.
package store
