// Package mocks provides configurable test doubles for the generator and
// result sink ports, with call tracking for verification.
package mocks
