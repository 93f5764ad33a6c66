package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ailibmodel "github.com/cpunion/ailib/adk/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	adkmodel "google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/cpunion/molt-bot/pkg/types"
)

func TestOllamaGenerator(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"  Nice thought.  ","done":true}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	g := NewOllamaGenerator(cfg)

	text, err := g.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Nice thought.", text)
	assert.Equal(t, "llama2:latest", got.Model)
	assert.Equal(t, "hello", got.Prompt)
	assert.Equal(t, DefaultSystemPrompt, got.System)
	assert.False(t, got.Stream)
	assert.EqualValues(t, 120, got.Options["num_predict"])
}

func TestOllamaGeneratorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'x' not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	g := NewOllamaGenerator(Config{BaseURL: srv.URL, Model: "x"})
	_, err := g.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama pull x")
}

func TestAgentGenerator(t *testing.T) {
	mock := ailibmodel.NewMockLLM(&adkmodel.LLMResponse{
		Content: &genai.Content{
			Role:  "model",
			Parts: []*genai.Part{{Text: "Good "}, {Text: "point."}},
		},
	})

	g, err := NewAgentGenerator(mock, "")
	require.NoError(t, err)

	text, err := g.Generate(context.Background(), "reply please")
	require.NoError(t, err)
	assert.Equal(t, "Good point.", text)
}

func TestNewBackends(t *testing.T) {
	ctx := context.Background()

	g, err := New(ctx, Config{Backend: "static"})
	require.NoError(t, err)
	text, err := g.Generate(ctx, "anything")
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, text)

	g, err = New(ctx, Config{Backend: "OLLAMA"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaGenerator{}, g)

	g, err = New(ctx, Config{Backend: "openai", APIKey: "k", BaseURL: "http://localhost:1/v1"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIGenerator{}, g)

	_, err = New(ctx, Config{Backend: "carrier-pigeon"})
	assert.Error(t, err)
}

type stubGenerator struct {
	text  string
	err   error
	delay time.Duration
}

func (s stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

func TestFallback(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name  string
		inner Generator
		want  string
	}{
		{"ok", stubGenerator{text: "Line one\nline two"}, "Line one line two"},
		{"error", stubGenerator{err: errors.New("boom")}, FallbackReply},
		{"empty", stubGenerator{text: "  \n "}, FallbackReply},
		{"nil inner", nil, FallbackReply},
		{"timeout", stubGenerator{text: "late", delay: time.Second}, FallbackReply},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFallback(tc.inner, "", 20*time.Millisecond, nil)
			got, err := f.Generate(ctx, "p")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFallbackCheck(t *testing.T) {
	ctx := context.Background()

	text, err := NewFallback(stubGenerator{text: "Fine\nthanks"}, "", time.Second, nil).Check(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "Fine thanks", text)

	_, err = NewFallback(stubGenerator{err: errors.New("boom")}, "", time.Second, nil).Check(ctx, "p")
	assert.EqualError(t, err, "boom")

	_, err = NewFallback(stubGenerator{text: " \n "}, "", time.Second, nil).Check(ctx, "p")
	assert.ErrorIs(t, err, ErrEmptyReply)

	_, err = NewFallback(nil, "", time.Second, nil).Check(ctx, "p")
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestFallbackCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := NewFallback(stubGenerator{err: errors.New("boom")}, "", time.Second, nil)
	_, err := f.Generate(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCleanReply(t *testing.T) {
	assert.Equal(t, "a b c", CleanReply("  a\n\nb   c "))
	assert.Equal(t, "quoted", CleanReply(`"quoted"`))
	long := strings.Repeat("x", MaxReplyLength+50)
	assert.Len(t, CleanReply(long), MaxReplyLength)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(types.Post{Author: "ada", Title: "Engines", Content: "Can machines think?"})
	assert.Contains(t, p, "by ada")
	assert.Contains(t, p, "Title: Engines")
	assert.Contains(t, p, `"""Can machines think?"""`)

	p = BuildPrompt(types.Post{Title: "Only a title"})
	assert.NotContains(t, p, "Title:")
	assert.Contains(t, p, "Only a title")
}
