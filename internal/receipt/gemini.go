package receipt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"smartasset/internal/core"
	"smartasset/internal/log"
)

const DefaultModel = "gemini-2.5-flash"

// contentGenerator is the slice of genai.Models the interpreter uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiConfig struct {
	APIKey   string
	Model    string
	Timeout  time.Duration
	Fallback string
}

type GeminiInterpreter struct {
	models   contentGenerator
	model    string
	timeout  time.Duration
	fallback string
	now      func() time.Time
	logger   *log.Logger
}

var _ Interpreter = (*GeminiInterpreter)(nil)

// NewGeminiInterpreter builds a Gemini API client authenticated with cfg.APIKey.
func NewGeminiInterpreter(ctx context.Context, cfg GeminiConfig, logger *log.Logger) (*GeminiInterpreter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiInterpreter(client.Models, cfg, logger), nil
}

func newGeminiInterpreter(models contentGenerator, cfg GeminiConfig, logger *log.Logger) *GeminiInterpreter {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Fallback == "" {
		cfg.Fallback = core.DefaultFallbackCategory
	}
	if logger == nil {
		logger = log.Default()
	}
	return &GeminiInterpreter{
		models:   models,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		fallback: cfg.Fallback,
		now:      time.Now,
		logger:   logger.WithComponent(log.ComponentReceipt),
	}
}

// Interpret sends img and the category list to the model and parses the reply.
func (g *GeminiInterpreter) Interpret(ctx context.Context, img Image, categories []string) ([]core.Draft, error) {
	if !supportedImageTypes[img.MIMEType] {
		return nil, ErrUnsupportedImage
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	today := core.DateOf(g.now())
	prompt := BuildPrompt(categories, g.fallback, today.String())
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: img.Data}},
			},
		},
	}
	temperature := float32(0)
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temperature,
	}

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		g.logger.ErrorContext(ctx, "Receipt inference call failed",
			log.FieldModel, g.model, log.FieldError, err, log.FieldErrorType, log.ErrorTypeInference)
		return nil, fmt.Errorf("%w: %v", ErrInferenceFailed, err)
	}

	drafts, err := ParseDrafts(resp.Text(), ParseOptions{
		Categories: categories,
		Fallback:   g.fallback,
		Today:      today,
	})
	if err != nil {
		g.logger.WarnContext(ctx, "Receipt reply could not be parsed",
			log.FieldModel, g.model, log.FieldError, err, log.FieldOperation, log.OpParse)
		return nil, err
	}

	g.logger.InfoContext(ctx, "Receipt interpreted",
		log.FieldModel, g.model,
		log.FieldCount, len(drafts),
		log.FieldDuration, time.Since(start).Milliseconds())
	return drafts, nil
}
