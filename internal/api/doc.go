// Package api exposes the task dispatcher over HTTP. It handles generation
// submission, task status and cancellation, result streaming, health, and
// the two push channels: a WebSocket connection that can subscribe to many
// tasks and a Server-Sent Events stream for a single task.
package api
