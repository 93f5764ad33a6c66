package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cpunion/molt-bot/pkg/metrics"
)

// Fallback wraps a generator so that failures degrade to a static reply.
type Fallback struct {
	inner   Generator
	reply   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewFallback wraps inner. timeout bounds each call; zero means 60s.
func NewFallback(inner Generator, reply string, timeout time.Duration, logger *slog.Logger) *Fallback {
	if reply == "" {
		reply = FallbackReply
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{inner: inner, reply: reply, timeout: timeout, logger: logger.With("component", "llm")}
}

// ErrNoBackend is returned by Check when no generator is configured.
var ErrNoBackend = errors.New("no generator configured")

// ErrEmptyReply is returned by Check when the generator answers with nothing
// usable after cleaning.
var ErrEmptyReply = errors.New("generator returned empty text")

// Check calls the wrapped generator without degrading to the static reply, so
// callers can tell a working backend from a fallback.
func (f *Fallback) Check(ctx context.Context, prompt string) (string, error) {
	if f.inner == nil {
		return "", ErrNoBackend
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	text, err := f.inner.Generate(callCtx, prompt)
	metrics.GenerateDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	if text = CleanReply(text); text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

// Generate returns a cleaned reply. It only fails if ctx itself is done.
func (f *Fallback) Generate(ctx context.Context, prompt string) (string, error) {
	if f.inner == nil {
		return f.reply, nil
	}

	text, err := f.Check(ctx, prompt)
	switch {
	case err == nil:
		metrics.Generations.WithLabelValues("ok").Inc()
		return text, nil
	case ctx.Err() != nil:
		return "", ctx.Err()
	case errors.Is(err, ErrEmptyReply):
		metrics.Generations.WithLabelValues("empty").Inc()
		f.logger.Warn("generator returned empty text, using fallback reply")
	default:
		metrics.Generations.WithLabelValues("fallback").Inc()
		f.logger.Warn("generation failed, using fallback reply", "err", err)
	}
	return f.reply, nil
}
