// Package events carries task lifecycle notifications from the dispatcher to
// interested observers (metrics recording, connection-wide announcements)
// without the dispatcher knowing who listens.
//
// The primary components are:
// - TaskEvent: a snapshot of a task at a lifecycle transition
// - EventHandler: interface for components that react to events
// - EventEmitter: interface for components that publish events
package events
