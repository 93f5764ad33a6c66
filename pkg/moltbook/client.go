// Package moltbook is a client for the Moltbook agent API: feed, comments,
// subscriptions, posts and verification challenges.
package moltbook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cpunion/molt-bot/pkg/types"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://www.moltbook.com/api/v1"

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	// Submolt scopes the feed to one community when set.
	Submolt string

	Timeout           time.Duration
	RequestsPerSecond float64
	VerifyAttempts    int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	UserAgent         string
	Logger            *slog.Logger
}

// DefaultConfig returns the defaults used by the bot.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		Timeout:           15 * time.Second,
		RequestsPerSecond: 1,
		VerifyAttempts:    3,
		RetryWaitMin:      time.Second,
		RetryWaitMax:      5 * time.Second,
		UserAgent:         "molt-bot/1.0",
	}
}

// Client talks to the Moltbook API.
type Client struct {
	base      string
	apiKey    string
	submolt   string
	userAgent string

	http    *http.Client
	verify  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a client. Zero fields in cfg take DefaultConfig values.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.VerifyAttempts <= 0 {
		cfg.VerifyAttempts = def.VerifyAttempts
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = def.RetryWaitMin
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = def.RetryWaitMax
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("component", "moltbook")

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		base:      strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		submolt:   cfg.Submolt,
		userAgent: cfg.UserAgent,
		http: newHTTPClient(retryConfig{
			attempts: 1,
			policy:   noRetryPolicy,
			timeout:  cfg.Timeout,
			logger:   logger,
		}),
		verify: newHTTPClient(retryConfig{
			attempts: cfg.VerifyAttempts,
			waitMin:  cfg.RetryWaitMin,
			waitMax:  cfg.RetryWaitMax,
			policy:   verifyRetryPolicy,
			timeout:  cfg.Timeout,
			logger:   logger,
		}),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// do sends a JSON request and returns the status code and body. Transport
// failures are returned as ErrTransient.
func (c *Client) do(ctx context.Context, hc *http.Client, op, method, path string, payload any) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, transportError(op, err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("%s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return 0, nil, transportError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, transportError(op, err)
	}
	c.logger.Debug("api call", "op", op, "status", resp.StatusCode, "bytes", len(data))
	return resp.StatusCode, data, nil
}

func ok(status int) bool {
	return status >= 200 && status < 300
}

// Status returns the account status ("claimed" once the owner verified it).
func (c *Client) Status(ctx context.Context) (types.AgentStatus, error) {
	const op = "status"
	status, body, err := c.do(ctx, c.http, op, http.MethodGet, "/agents/status", nil)
	if err != nil {
		return types.AgentStatus{}, err
	}
	if !ok(status) {
		return types.AgentStatus{}, statusError(op, status, body)
	}

	var payload struct {
		types.AgentStatus
		Agent *types.AgentStatus `json:"agent"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return types.AgentStatus{}, malformed(op, err)
	}
	if payload.Status == "" && payload.Agent != nil {
		return *payload.Agent, nil
	}
	return payload.AgentStatus, nil
}

// FetchRecentPosts returns up to limit posts, newest first.
func (c *Client) FetchRecentPosts(ctx context.Context, limit int) ([]types.Post, error) {
	const op = "fetch posts"
	q := url.Values{}
	q.Set("sort", "new")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/posts"
	if c.submolt != "" {
		path = "/submolts/" + url.PathEscape(c.submolt) + "/posts"
	}

	status, body, err := c.do(ctx, c.http, op, http.MethodGet, path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, statusError(op, status, body)
	}
	posts, err := decodeFeed(body, c.logger)
	if err != nil {
		return nil, malformed(op, err)
	}
	return posts, nil
}

// SubmitComment posts text as a comment on postID. A 2xx with an unreadable
// body still counts as success.
func (c *Client) SubmitComment(ctx context.Context, postID, text string) (types.CommentResult, error) {
	const op = "comment"
	path := "/posts/" + url.PathEscape(postID) + "/comments"
	status, body, err := c.do(ctx, c.http, op, http.MethodPost, path, map[string]string{"content": text})
	if err != nil {
		return types.CommentResult{}, err
	}
	if !ok(status) {
		return types.CommentResult{}, statusError(op, status, body)
	}
	res, err := decodeComment(body)
	if err != nil {
		c.logger.Warn("comment posted but response unreadable", "post_id", postID, "err", err)
		return types.CommentResult{}, nil
	}
	return res, nil
}

// Subscribe subscribes the account to a community. Not-found and
// already-subscribed are reported as outcomes, not errors.
func (c *Client) Subscribe(ctx context.Context, slug string) (types.SubscribeOutcome, error) {
	const op = "subscribe"
	path := "/submolts/" + url.PathEscape(slug) + "/subscribe"
	status, body, err := c.do(ctx, c.http, op, http.MethodPost, path, nil)
	if err != nil {
		return types.SubscribeError, err
	}
	switch {
	case ok(status):
		return types.SubscribeOK, nil
	case status == http.StatusNotFound:
		return types.SubscribeNotFound, nil
	case status == http.StatusConflict:
		return types.SubscribeExisting, nil
	case status == http.StatusBadRequest && strings.Contains(strings.ToLower(string(body)), "already"):
		return types.SubscribeExisting, nil
	}
	return types.SubscribeError, statusError(op, status, body)
}

// SubmitAnswer sends a challenge answer, retrying transport failures up to the
// configured number of attempts.
func (c *Client) SubmitAnswer(ctx context.Context, code, answer string) (types.VerifyOutcome, error) {
	const op = "verify"
	payload := map[string]string{"verification_code": code, "answer": answer}
	status, body, err := c.do(ctx, c.verify, op, http.MethodPost, "/verify", payload)
	if err != nil {
		return types.VerifyError, err
	}
	switch {
	case ok(status):
		return types.VerifyAccepted, nil
	case status == http.StatusConflict, status == http.StatusGone:
		return types.VerifyExpired, nil
	}
	return types.VerifyError, statusError(op, status, body)
}

// CreatePost publishes a new post in submolt.
func (c *Client) CreatePost(ctx context.Context, submolt, title, content string) (types.Post, error) {
	const op = "create post"
	payload := map[string]string{"submolt": submolt, "title": title, "content": content}
	status, body, err := c.do(ctx, c.http, op, http.MethodPost, "/posts", payload)
	if err != nil {
		return types.Post{}, err
	}
	if !ok(status) {
		return types.Post{}, statusError(op, status, body)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return types.Post{}, malformed(op, err)
	}
	post := types.Post{Submolt: submolt, Title: title, Content: content}
	for _, key := range []string{"post", "data"} {
		var w wirePost
		if raw, found := envelope[key]; found && json.Unmarshal(raw, &w) == nil && w.ID != "" {
			post = w.toPost()
			break
		}
	}
	if post.ID == "" {
		post.ID = objectID(envelope)
	}
	return post, nil
}
