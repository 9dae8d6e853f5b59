// Package openai implements generation.Generator with the OpenAI API via
// github.com/sashabaranov/go-openai. It serves text (streamed chat
// completions), image (base64 image generations) and audio (speech
// synthesis) tasks. Any OpenAI-compatible endpoint can be used by setting
// Config.BaseURL.
package openai
