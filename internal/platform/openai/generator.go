package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/generation"
	goopenai "github.com/sashabaranov/go-openai"
)

// Default model and voice names.
const (
	DefaultTextModel   = "gpt-4o-mini"
	DefaultImageModel  = goopenai.CreateImageModelDallE3
	DefaultSpeechModel = string(goopenai.TTSModel1)
	DefaultVoice       = string(goopenai.VoiceAlloy)
)

const contentPolicyViolation = "content_policy_violation"

// Config holds the OpenAI connection settings.
type Config struct {
	APIKey      string
	BaseURL     string
	TextModel   string
	ImageModel  string
	SpeechModel string
	Voice       string
}

// Generator implements generation.Generator for text, image and audio tasks.
type Generator struct {
	client *goopenai.Client
	cfg    Config
	logger *slog.Logger
}

// NewGenerator creates an OpenAI client and wraps it in a Generator.
func NewGenerator(cfg Config, logger *slog.Logger) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai API key cannot be empty", generation.ErrInvalidConfig)
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	if cfg.TextModel == "" {
		cfg.TextModel = DefaultTextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = DefaultSpeechModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}

	return &Generator{
		client: goopenai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger.With("component", "openai_generator"),
	}, nil
}

// Generate implements generation.Generator.
func (g *Generator) Generate(ctx context.Context, req generation.Request, rep generation.Reporter) error {
	switch req.Kind {
	case domain.MediaKindText:
		return g.generateText(ctx, req, rep)
	case domain.MediaKindImage:
		return g.generateImage(ctx, req, rep)
	case domain.MediaKindAudio:
		return g.generateAudio(ctx, req, rep)
	default:
		return fmt.Errorf("%w: openai generator does not produce %s", domain.ErrUnsupportedKind, req.Kind)
	}
}

func (g *Generator) generateText(ctx context.Context, req generation.Request, rep generation.Reporter) error {
	messages := []goopenai.ChatCompletionMessage{
		{Role: goopenai.ChatMessageRoleUser, Content: strings.TrimSpace(req.Prompt)},
	}
	if req.Style != "" && req.Style != "default" {
		messages = append([]goopenai.ChatCompletionMessage{{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: fmt.Sprintf("Write in a %s style.", req.Style),
		}}, messages...)
	}

	if err := rep.Report(ctx, domain.Stage{
		Name:     "requesting",
		Progress: 5,
		Message:  "Waiting for the model...",
	}); err != nil {
		return err
	}

	stream, err := g.client.CreateChatCompletionStream(ctx, goopenai.ChatCompletionRequest{
		Model:    g.cfg.TextModel,
		Messages: messages,
	})
	if err != nil {
		return g.apiError(ctx, req, err)
	}
	defer func() { _ = stream.Close() }()

	text := generation.NewTextStream(rep)
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return g.apiError(ctx, req, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		if choice.FinishReason == goopenai.FinishReasonContentFilter {
			return fmt.Errorf("%w: completion stopped by content filter", generation.ErrContentBlocked)
		}
		if err := text.Write(ctx, choice.Delta.Content); err != nil {
			return err
		}
	}

	return text.Finish(ctx)
}

func (g *Generator) generateImage(ctx context.Context, req generation.Request, rep generation.Reporter) error {
	if err := rep.Report(ctx, domain.Stage{
		Name:     "requesting",
		Progress: 10,
		Message:  "Sending prompt to the image model...",
	}); err != nil {
		return err
	}

	prompt := strings.TrimSpace(req.Prompt)
	if req.Style != "" && req.Style != "default" {
		prompt += ", " + req.Style + " style"
	}

	resp, err := g.client.CreateImage(ctx, goopenai.ImageRequest{
		Prompt:         prompt,
		Model:          g.cfg.ImageModel,
		N:              1,
		Size:           goopenai.CreateImageSize1024x1024,
		Quality:        imageQuality(req.Quality),
		ResponseFormat: goopenai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return g.apiError(ctx, req, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return fmt.Errorf("%w: no image data", generation.ErrInvalidResponse)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return fmt.Errorf("%w: image payload is not base64: %v", generation.ErrInvalidResponse, err)
	}

	if err := rep.Report(ctx, domain.Stage{
		Name:     "finalizing",
		Progress: 90,
		Message:  "Encoding image...",
	}); err != nil {
		return err
	}

	return rep.Report(ctx, domain.Stage{
		Name:     "complete",
		Progress: domain.MaxProgress,
		Message:  "Image generation complete!",
		Result:   generation.DataURL(http.DetectContentType(data), data),
	})
}

func (g *Generator) generateAudio(ctx context.Context, req generation.Request, rep generation.Reporter) error {
	if err := rep.Report(ctx, domain.Stage{
		Name:     "synthesizing_voice",
		Progress: 20,
		Message:  "Synthesizing voice...",
	}); err != nil {
		return err
	}

	resp, err := g.client.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          goopenai.SpeechModel(g.cfg.SpeechModel),
		Input:          strings.TrimSpace(req.Prompt),
		Voice:          goopenai.SpeechVoice(g.cfg.Voice),
		ResponseFormat: goopenai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return g.apiError(ctx, req, err)
	}
	defer func() { _ = resp.Close() }()

	data, err := io.ReadAll(resp)
	if err != nil {
		return g.apiError(ctx, req, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty audio", generation.ErrInvalidResponse)
	}

	if err := rep.Report(ctx, domain.Stage{
		Name:     "mastering",
		Progress: 85,
		Message:  "Mastering audio...",
	}); err != nil {
		return err
	}

	g.logger.InfoContext(ctx, "speech synthesized",
		"task_id", req.TaskID,
		"bytes", len(data))

	return rep.Report(ctx, domain.Stage{
		Name:      "complete",
		Progress:  domain.MaxProgress,
		Message:   "Audio generation complete!",
		Result:    generation.DataURL("audio/mpeg", data),
		StreamRef: generation.StreamPath(req.TaskID),
	})
}

// apiError classifies an error returned by the client.
func (g *Generator) apiError(ctx context.Context, req generation.Request, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	g.logger.ErrorContext(ctx, "OpenAI API call failed",
		"task_id", req.TaskID,
		"media_type", req.Kind,
		"error", err)

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok && code == contentPolicyViolation {
			return fmt.Errorf("%w: %s", generation.ErrContentBlocked, apiErr.Message)
		}
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500 {
			return fmt.Errorf("%w: %s", generation.ErrTransientFailure, apiErr.Message)
		}
	}
	return fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
}

func imageQuality(quality string) string {
	if quality == goopenai.CreateImageQualityHD {
		return goopenai.CreateImageQualityHD
	}
	return goopenai.CreateImageQualityStandard
}

var _ generation.Generator = (*Generator)(nil)
