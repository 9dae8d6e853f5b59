// Package generation defines the boundary between task dispatch and media
// generators. A Generator produces an ordered series of progress stages for
// one task through a Reporter; the final stage carries progress 100 and the
// result. Providers (simulated, Gemini, OpenAI) live in their own packages
// and are selected per media kind through a Registry.
package generation
