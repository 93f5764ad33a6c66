package moltbook

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// leveledSlog adapts slog to retryablehttp's LeveledLogger.
type leveledSlog struct {
	inner *slog.Logger
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l leveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Info(msg, keysAndValues...)
}

func (l leveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug(msg, keysAndValues...)
}

type retryConfig struct {
	attempts int
	waitMin  time.Duration
	waitMax  time.Duration
	policy   retryablehttp.CheckRetry
	timeout  time.Duration
	logger   *slog.Logger
}

// newHTTPClient builds a stdlib-compatible client with bounded retries. The
// last response is passed through unchanged once attempts are exhausted, so
// callers can still classify the status code.
func newHTTPClient(cfg retryConfig) *http.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Transport = cleanhttp.DefaultPooledTransport()
	rc.RetryMax = max(cfg.attempts-1, 0)
	rc.RetryWaitMin = cfg.waitMin
	rc.RetryWaitMax = cfg.waitMax
	rc.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: cfg.logger.With("subsystem", "http")})
	rc.CheckRetry = cfg.policy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := rc.StandardClient()
	client.Timeout = cfg.timeout
	return client
}

// noRetryPolicy never retries: transient failures wait for the next cycle.
func noRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	return false, nil
}

// verifyRetryPolicy retries transport failures and 5xx. Success, 409 and 410
// all end the exchange.
func verifyRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil {
		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusConflict, http.StatusGone:
			return false, nil
		case http.StatusTooManyRequests:
			return false, nil
		}
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
