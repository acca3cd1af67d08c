package gemini

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"text/template"
	"time"

	"google.golang.org/genai"

	"github.com/phrazzld/studycycle-api/internal/config"
	"github.com/phrazzld/studycycle-api/internal/generation"
)

//go:embed prompt.tmpl
var promptSource string

var promptTemplate = template.Must(template.New("review_items").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(promptSource))

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 2 * time.Second
)

// contentGenerator is the subset of *genai.Models the generator calls.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Generator generates review items with a Gemini model.
type Generator struct {
	logger     *slog.Logger
	client     contentGenerator
	model      string
	maxRetries int
	baseDelay  time.Duration

	// sleep waits between attempts; it returns early with ctx.Err().
	sleep func(ctx context.Context, d time.Duration) error
}

var _ generation.Generator = (*Generator)(nil)

// NewGenerator creates a Gemini-backed generator. It fails with
// generation.ErrInvalidConfig when the API key or model name is missing.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newGenerator(logger, client.Models, cfg), nil
}

func newGenerator(logger *slog.Logger, client contentGenerator, cfg config.LLMConfig) *Generator {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	baseDelay := time.Duration(cfg.RetryDelaySeconds) * time.Second
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}

	return &Generator{
		logger:     logger.With("component", "gemini_generator", "model", cfg.ModelName),
		client:     client,
		model:      cfg.ModelName,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		sleep:      sleepContext,
	}
}

// NewFromConfig returns a Gemini generator when an API key is configured and
// generation.MockGenerator otherwise.
func NewFromConfig(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (generation.Generator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GeminiAPIKey == "" {
		logger.WarnContext(ctx, "gemini API key not configured, using mock review item generator")
		return generation.MockGenerator{}, nil
	}
	return NewGenerator(ctx, logger, cfg)
}

// GenerateReviewItems implements generation.Generator.
func (g *Generator) GenerateReviewItems(ctx context.Context, req generation.Request) ([]generation.Item, error) {
	if strings.TrimSpace(req.Context) == "" {
		return nil, generation.ErrEmptyContext
	}
	req = req.Normalize()

	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	text, err := g.callWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	items := generation.ParseItems(text, req.Difficulty)
	g.logger.InfoContext(ctx, "review items generated", "item_count", len(items))
	return items, nil
}

func buildPrompt(req generation.Request) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// callWithRetry calls the model up to maxRetries+1 times. Blocked and empty
// answers fail immediately; other errors are retried after
// baseDelay·2^attempt scaled by a jitter factor in [0.5, 1).
func (g *Generator) callWithRetry(ctx context.Context, prompt string) (string, error) {
	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.7),
	}

	for attempt := 0; ; attempt++ {
		g.logger.DebugContext(ctx, "calling gemini",
			"attempt", attempt+1,
			"max_attempts", g.maxRetries+1)

		resp, err := g.client.GenerateContent(ctx, g.model, genai.Text(prompt), genConfig)
		if err == nil {
			var text string
			text, err = responseText(resp)
			if err == nil {
				return text, nil
			}
			g.logger.WarnContext(ctx, "unusable gemini response", "error", err)
			return "", err
		}

		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}

		g.logger.ErrorContext(ctx, "gemini call failed", "attempt", attempt+1, "error", err)
		if attempt >= g.maxRetries {
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, g.maxRetries, err)
		}

		backoff := float64(g.baseDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rand.Float64()*0.5))
		if err := g.sleep(ctx, delay); err != nil {
			return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
		}
	}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", generation.ErrContentBlocked
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("%w: empty text in response", generation.ErrInvalidResponse)
	}
	return sb.String(), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
