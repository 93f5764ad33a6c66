// Package llm provides the text generators used to compose replies.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("moltbot.llm")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Backend names accepted by New.
const (
	BackendOllama = "ollama"
	BackendGemini = "gemini"
	BackendADK    = "adk"
	BackendOpenAI = "openai"
	BackendStatic = "static"
)

// Config selects and configures a backend.
type Config struct {
	Backend     string
	Model       string
	BaseURL     string
	APIKey      string
	System      string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultConfig targets a local Ollama, like the original bots.
func DefaultConfig() Config {
	return Config{
		Backend:     BackendOllama,
		Model:       "llama2:latest",
		BaseURL:     "http://localhost:11434",
		System:      DefaultSystemPrompt,
		Temperature: 0.6,
		MaxTokens:   120,
		Timeout:     60 * time.Second,
	}
}

// New builds the generator named by cfg.Backend.
func New(ctx context.Context, cfg Config) (Generator, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendOllama:
		return NewOllamaGenerator(cfg), nil
	case BackendGemini:
		return NewGeminiProvider(ctx, GeminiConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			System:      cfg.System,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	case BackendADK:
		return NewGeminiAgentGenerator(ctx, cfg)
	case BackendOpenAI:
		return NewOpenAIGenerator(cfg), nil
	case BackendStatic:
		return Static(FallbackReply), nil
	default:
		return nil, fmt.Errorf("unknown generator backend %q", cfg.Backend)
	}
}

// Static always returns the same text.
type Static string

// Generate returns s.
func (s Static) Generate(ctx context.Context, prompt string) (string, error) {
	return string(s), nil
}
