package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"
)

// GeminiProvider generates replies with Google GenAI Gemini.
type GeminiProvider struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// GeminiConfig holds configuration for the Gemini provider.
type GeminiConfig struct {
	APIKey      string // If empty, uses GOOGLE_API_KEY env var
	Model       string // If empty, uses GOOGLE_MODEL or gemini-3-flash-preview
	System      string
	Temperature float32
	MaxTokens   int
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  geminiModel(cfg.Model),
		config: generationConfig(cfg),
	}, nil
}

func geminiModel(name string) string {
	if name == "" || strings.Contains(name, ":") {
		name = os.Getenv("GOOGLE_MODEL")
	}
	if name == "" {
		name = "gemini-3-flash-preview"
	}
	return name
}

func generationConfig(cfg GeminiConfig) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{}
	if cfg.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(cfg.System, genai.RoleUser)
	}
	if cfg.Temperature > 0 {
		gc.Temperature = genai.Ptr(cfg.Temperature)
	}
	if cfg.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(cfg.MaxTokens)
	}
	return gc
}

// Generate produces a response from Gemini.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "GeminiProvider.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", p.model))

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), p.config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response from gemini")
	}

	var result strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			result.WriteString(part.Text)
		}
	}
	return result.String(), nil
}

// Model returns the model name.
func (p *GeminiProvider) Model() string {
	return p.model
}
