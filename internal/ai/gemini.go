package ai

import (
	"context"
	"fmt"
	"time"

	"safetyreport_backend/platform/apperr"
	"safetyreport_backend/platform/config"
	"safetyreport_backend/platform/logger"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Gemini wraps the shared Gemini client used by the vision classifier, text
// mapper, and advice generator. A single rate limiter bounds the combined
// model-call rate across all three.
type Gemini struct {
	client      *genai.Client
	visionModel string
	textModel   string
	limiter     *rate.Limiter
	log         *logger.Logger
}

// NewGemini creates the shared Gemini client.
func NewGemini(ctx context.Context, cfg config.GeminiConfig, log *logger.Logger) (*Gemini, error) {
	if !cfg.IsGeminiEnabled() {
		return nil, fmt.Errorf("gemini api key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	callsPerMinute := cfg.GetAICallsPerMinute()
	if callsPerMinute < 1 {
		callsPerMinute = 60
	}

	return &Gemini{
		client:      client,
		visionModel: cfg.GetVisionModel(),
		textModel:   cfg.GetTextModel(),
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(callsPerMinute)), callsPerMinute),
		log:         log,
	}, nil
}

// generate runs one model call and returns the concatenated text output.
func (g *Gemini) generate(ctx context.Context, model string, contents []*genai.Content) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "gemini generate", err)
	}

	text := resp.Text()
	if text == "" {
		return "", apperr.Unavailable("gemini returned an empty response")
	}

	return text, nil
}
