package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

const agentAppName = "molt-bot"

// AgentGenerator runs an ADK LLM agent carrying the persona instruction. Each
// Generate call uses a fresh session, so replies never share history.
type AgentGenerator struct {
	runner   *runner.Runner
	sessions session.Service
	userID   string
	model    string
	seq      atomic.Int64
}

// NewAgentGenerator wraps m in a single-agent runner.
func NewAgentGenerator(m model.LLM, instruction string) (*AgentGenerator, error) {
	if instruction == "" {
		instruction = DefaultSystemPrompt
	}
	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        "replier",
		Model:       m,
		Description: "Writes short replies to Moltbook posts",
		Instruction: instruction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ADK agent: %w", err)
	}

	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        agentAppName,
		Agent:          adkAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	return &AgentGenerator{
		runner:   r,
		sessions: sessionService,
		userID:   "molt-bot",
		model:    m.Name(),
	}, nil
}

// NewGeminiAgentGenerator builds an ADK agent backed by a Gemini model.
func NewGeminiAgentGenerator(ctx context.Context, cfg Config) (*AgentGenerator, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY not set")
	}
	m, err := gemini.NewModel(ctx, geminiModel(cfg.Model), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini model: %w", err)
	}
	return NewAgentGenerator(m, cfg.System)
}

// Generate runs one agent turn and concatenates the text parts it emits.
func (g *AgentGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "AgentGenerator.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", g.model))

	sessionID := fmt.Sprintf("reply-%d", g.seq.Add(1))
	sess, err := g.sessions.Create(ctx, &session.CreateRequest{
		AppName:   agentAppName,
		UserID:    g.userID,
		SessionID: sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer func() {
		_ = g.sessions.Delete(context.WithoutCancel(ctx), &session.DeleteRequest{
			AppName:   agentAppName,
			UserID:    g.userID,
			SessionID: sessionID,
		})
	}()

	msg := &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}

	var text strings.Builder
	var runErr error
	for event, err := range g.runner.Run(ctx, g.userID, sess.Session.ID(), msg, agent.RunConfig{}) {
		if err != nil {
			runErr = err
			continue
		}
		if event == nil || event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			if part != nil && part.Text != "" {
				text.WriteString(part.Text)
			}
		}
	}
	if text.Len() == 0 && runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return "", fmt.Errorf("agent run failed: %w", runErr)
	}
	return text.String(), nil
}
