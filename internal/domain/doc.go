// Package domain defines the core business entities of the media generation
// service: generation tasks, the media kinds they produce, the stages a
// generator reports while working, and the events pushed to subscribers.
//
// The task state machine lives here so that every store implementation and
// every writer applies the same transition rules:
//
//	queued -> processing -> streaming* -> completed | failed
//
// Terminal states never change again.
package domain
