// Package gemini implements generation.Generator on top of Google's Gemini
// API through the google.golang.org/genai client.
//
// Text tasks stream through GenerateContentStream, with each received chunk
// reported as a text_stream stage. Image tasks call GenerateImages and return
// the first image as a data URL. Other media kinds are not served by this
// package; the registry routes them to another generator.
//
// Prompts are rendered from small templates that fold the requested style
// and quality into the user's prompt.
package gemini
