package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/generation"
	"google.golang.org/genai"
)

// Default model names.
const (
	DefaultTextModel  = "gemini-2.0-flash"
	DefaultImageModel = "imagen-3.0-generate-002"
)

// defaultImageMIMEType is assumed when the API omits the image MIME type.
const defaultImageMIMEType = "image/png"

// Config holds the Gemini connection settings.
type Config struct {
	APIKey     string
	TextModel  string
	ImageModel string
}

// modelsAPI is the subset of *genai.Models used by the generator.
type modelsAPI interface {
	GenerateContentStream(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) iter.Seq2[*genai.GenerateContentResponse, error]

	GenerateImages(
		ctx context.Context,
		model string,
		prompt string,
		config *genai.GenerateImagesConfig,
	) (*genai.GenerateImagesResponse, error)
}

// Generator implements generation.Generator for text and image tasks using
// the Gemini API.
type Generator struct {
	models     modelsAPI
	textModel  string
	imageModel string
	logger     *slog.Logger
}

// NewGenerator creates a Gemini client and wraps it in a Generator.
func NewGenerator(ctx context.Context, cfg Config, logger *slog.Logger) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newGenerator(client.Models, cfg, logger), nil
}

func newGenerator(models modelsAPI, cfg Config, logger *slog.Logger) *Generator {
	g := &Generator{
		models:     models,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		logger:     logger.With("component", "gemini_generator"),
	}
	if g.textModel == "" {
		g.textModel = DefaultTextModel
	}
	if g.imageModel == "" {
		g.imageModel = DefaultImageModel
	}
	return g
}

// Generate implements generation.Generator.
func (g *Generator) Generate(ctx context.Context, req generation.Request, rep generation.Reporter) error {
	switch req.Kind {
	case domain.MediaKindText:
		return g.generateText(ctx, req, rep)
	case domain.MediaKindImage:
		return g.generateImage(ctx, req, rep)
	default:
		return fmt.Errorf("%w: gemini generator does not produce %s", domain.ErrUnsupportedKind, req.Kind)
	}
}

func (g *Generator) generateText(ctx context.Context, req generation.Request, rep generation.Reporter) error {
	prompt, err := renderPrompt(textPromptTemplate, req)
	if err != nil {
		return err
	}

	g.logger.DebugContext(ctx, "starting Gemini text stream",
		"task_id", req.TaskID,
		"model", g.textModel,
		"prompt_length", len(prompt))

	if err := rep.Report(ctx, domain.Stage{
		Name:     "requesting",
		Progress: 5,
		Message:  "Waiting for the model...",
	}); err != nil {
		return err
	}

	stream := generation.NewTextStream(rep)
	for resp, err := range g.models.GenerateContentStream(ctx, g.textModel, genai.Text(prompt), nil) {
		if err != nil {
			return g.apiError(ctx, req, err)
		}
		chunk, err := responseText(resp)
		if err != nil {
			return err
		}
		if err := stream.Write(ctx, chunk); err != nil {
			return err
		}
	}

	g.logger.InfoContext(ctx, "Gemini text stream finished",
		"task_id", req.TaskID,
		"text_length", len(stream.Text()))
	return stream.Finish(ctx)
}

func (g *Generator) generateImage(ctx context.Context, req generation.Request, rep generation.Reporter) error {
	prompt, err := renderPrompt(imagePromptTemplate, req)
	if err != nil {
		return err
	}

	if err := rep.Report(ctx, domain.Stage{
		Name:     "requesting",
		Progress: 10,
		Message:  "Sending prompt to the image model...",
	}); err != nil {
		return err
	}

	resp, err := g.models.GenerateImages(ctx, g.imageModel, prompt, nil)
	if err != nil {
		return g.apiError(ctx, req, err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0] == nil {
		return fmt.Errorf("%w: no image generated", generation.ErrInvalidResponse)
	}

	generated := resp.GeneratedImages[0]
	if generated.RAIFilteredReason != "" {
		return fmt.Errorf("%w: %s", generation.ErrContentBlocked, generated.RAIFilteredReason)
	}
	if generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
		return fmt.Errorf("%w: image has no data", generation.ErrInvalidResponse)
	}

	mimeType := generated.Image.MIMEType
	if mimeType == "" {
		mimeType = defaultImageMIMEType
	}

	if err := rep.Report(ctx, domain.Stage{
		Name:     "finalizing",
		Progress: 90,
		Message:  "Encoding image...",
	}); err != nil {
		return err
	}

	g.logger.InfoContext(ctx, "Gemini image generated",
		"task_id", req.TaskID,
		"mime_type", mimeType,
		"bytes", len(generated.Image.ImageBytes))

	return rep.Report(ctx, domain.Stage{
		Name:     "complete",
		Progress: domain.MaxProgress,
		Message:  "Image generation complete!",
		Result:   generation.DataURL(mimeType, generated.Image.ImageBytes),
	})
}

// apiError classifies an error returned by the client.
func (g *Generator) apiError(ctx context.Context, req generation.Request, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	g.logger.ErrorContext(ctx, "Gemini API call failed",
		"task_id", req.TaskID,
		"media_type", req.Kind,
		"error", err)
	return fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
}

// responseText extracts the text of one streamed response chunk.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", nil
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

var _ generation.Generator = (*Generator)(nil)
