// Package logger provides structured JSON logging on top of log/slog, plus
// helpers for carrying a logger and a request id through a context.
package logger
