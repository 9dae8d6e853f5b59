// Package simulated provides stage-timer generators for every media kind.
// They perform no real synthesis: each walks a fixed list of stages with a
// configurable delay between them and finishes with a small placeholder
// artifact encoded as a data URL. They are the default provider and the
// fallback for kinds a remote provider does not support.
package simulated
