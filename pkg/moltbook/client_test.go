package moltbook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpunion/molt-bot/pkg/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:      srv.URL,
		APIKey:       "test-key",
		Timeout:      2 * time.Second,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	})
}

func TestFetchRecentPosts_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"data envelope", `{"data":[{"id":"p2","author":"alice","title":"Hi","content":"why?"},{"id":"p1","author":"bob"}]}`},
		{"posts envelope", `{"success":true,"posts":[{"id":"p2","author":{"name":"alice"},"submolt":{"name":"general"},"content":"why?"},{"id":"p1","author":{"username":"bob"}}]}`},
		{"bare list", `[{"id":"p2","author":"alice","content":"why?"},{"id":"p1","author":"bob"}]`},
		{"wrapped items", `[{"post":{"id":"p2","author":{"name":"alice"},"content":"why?"}},{"post":{"id":"p1","author":{"name":"bob"}}}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/posts", r.URL.Path)
				assert.Equal(t, "new", r.URL.Query().Get("sort"))
				assert.Equal(t, "10", r.URL.Query().Get("limit"))
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
				_, _ = io.WriteString(w, tt.body)
			})

			posts, err := c.FetchRecentPosts(context.Background(), 10)
			require.NoError(t, err)
			require.Len(t, posts, 2)
			assert.Equal(t, "p2", posts[0].ID)
			assert.Equal(t, "alice", posts[0].Author)
			assert.Equal(t, "why?", posts[0].Text())
			assert.Equal(t, "p1", posts[1].ID)
			assert.Equal(t, "bob", posts[1].Author)
		})
	}
}

func TestFetchRecentPosts_NumericIDsAndTime(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"id":42,"author":"a","created_at":"2026-02-01T10:00:00Z"}]}`)
	})

	posts, err := c.FetchRecentPosts(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "42", posts[0].ID)
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), posts[0].CreatedAt)
}

func TestFetchRecentPosts_SkipsUndecodableItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[`+
			`{"id":"a","author":"bob","content":"hello"},`+
			`{"id":"b","author":42,"content":"bad author"},`+
			`{"id":"c","author":"eve","title":["not","a","string"]},`+
			`{"id":"d","author":{"name":"dan"},"content":"object author"}]}`)
	})

	posts, err := c.FetchRecentPosts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "a", posts[0].ID)
	assert.Equal(t, "bob", posts[0].Author)
	assert.Equal(t, "d", posts[1].ID)
	assert.Equal(t, "dan", posts[1].Author)
}

func TestFetchRecentPosts_Submolt(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/submolts/general/posts", r.URL.Path)
		_, _ = io.WriteString(w, `{"posts":[]}`)
	})
	c.submolt = "general"

	posts, err := c.FetchRecentPosts(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestFetchRecentPosts_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{"malformed", 200, `{"unexpected":true}`, ErrMalformedResponse},
		{"not json", 200, `<html>`, ErrMalformedResponse},
		{"server error", 502, `bad gateway`, ErrTransient},
		{"rate limited", 429, `{"error":"slow down"}`, ErrTransient},
		{"forbidden", 403, `{"error":"Agent not claimed","hint":"visit the claim URL"}`, ErrAuthorizationDenied},
		{"not found", 404, `{"error":"no such submolt"}`, ErrClientRejection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.FetchRecentPosts(context.Background(), 5)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestAuthorizationDenied_KeepsMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":"Agent not claimed","hint":"visit the claim URL"}`)
	})

	_, err := c.SubmitComment(context.Background(), "p1", "hello")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "Agent not claimed")
	assert.Contains(t, apiErr.Message, "hint: visit the claim URL")
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url, APIKey: "k", Timeout: time.Second})
	_, err := c.FetchRecentPosts(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, Retryable(err))
}

func TestSubmitComment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/posts/p1/comments", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nice post", body["content"])
		_, _ = io.WriteString(w, `{"success":true,"comment":{"id":"c9"},"verification_required":true,"verification":{"code":"v-1","challenge":"five plus seven"}}`)
	})

	res, err := c.SubmitComment(context.Background(), "p1", "nice post")
	require.NoError(t, err)
	assert.Equal(t, "c9", res.CommentID)
	require.NotNil(t, res.Challenge)
	assert.Equal(t, types.Challenge{Code: "v-1", Text: "five plus seven"}, *res.Challenge)
}

func TestSubmitComment_ChallengeShapes(t *testing.T) {
	bodies := []string{
		`{"verification_code":"v-1","challenge":"five plus seven"}`,
		`{"comment":{"id":"c1","verification":{"verification_code":"v-1","challenge_text":"five plus seven"}}}`,
		`{"data":{"id":"c1","challenge":{"code":"v-1","question":"five plus seven"}}}`,
	}
	for _, body := range bodies {
		res, err := decodeComment([]byte(body))
		require.NoError(t, err, body)
		require.NotNil(t, res.Challenge, body)
		assert.Equal(t, "v-1", res.Challenge.Code, body)
		assert.Equal(t, "five plus seven", res.Challenge.Text, body)
	}

	res, err := decodeComment([]byte(`{"success":true,"comment":{"id":"c1","content":"hi"}}`))
	require.NoError(t, err)
	assert.Nil(t, res.Challenge)
	assert.Equal(t, "c1", res.CommentID)
}

func TestSubmitComment_UnreadableSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `ok`)
	})
	res, err := c.SubmitComment(context.Background(), "p1", "hi")
	require.NoError(t, err)
	assert.Nil(t, res.Challenge)
}

func TestSubscribe_Outcomes(t *testing.T) {
	tests := []struct {
		status  int
		body    string
		outcome types.SubscribeOutcome
		wantErr bool
	}{
		{200, `{"success":true}`, types.SubscribeOK, false},
		{404, `{"error":"not found"}`, types.SubscribeNotFound, false},
		{409, `{"error":"conflict"}`, types.SubscribeExisting, false},
		{400, `{"error":"Already subscribed"}`, types.SubscribeExisting, false},
		{500, `oops`, types.SubscribeError, true},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/submolts/general/subscribe", r.URL.Path)
			w.WriteHeader(tt.status)
			_, _ = io.WriteString(w, tt.body)
		})
		outcome, err := c.Subscribe(context.Background(), "general")
		assert.Equal(t, tt.outcome, outcome)
		assert.Equal(t, tt.wantErr, err != nil)
	}
}

func TestSubmitAnswer_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "v-1", body["verification_code"])
		assert.Equal(t, "12.00", body["answer"])
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"success":true}`)
	})

	outcome, err := c.SubmitAnswer(context.Background(), "v-1", "12.00")
	require.NoError(t, err)
	assert.Equal(t, types.VerifyAccepted, outcome)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSubmitAnswer_GivesUpAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	outcome, err := c.SubmitAnswer(context.Background(), "v-1", "12.00")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, types.VerifyError, outcome)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSubmitAnswer_ExpiredStopsImmediately(t *testing.T) {
	for _, status := range []int{http.StatusConflict, http.StatusGone} {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(status)
		})

		outcome, err := c.SubmitAnswer(context.Background(), "v-1", "12.00")
		require.NoError(t, err)
		assert.Equal(t, types.VerifyExpired, outcome)
		assert.Equal(t, int32(1), calls.Load())
	}
}

func TestComment_NotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.SubmitComment(context.Background(), "p1", "hi")
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agents/status", r.URL.Path)
		_, _ = io.WriteString(w, `{"status":"claimed"}`)
	})
	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Claimed())
}

func TestCreatePost(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "general", body["submolt"])
		assert.Equal(t, "Hello", body["title"])
		_, _ = io.WriteString(w, `{"success":true,"post":{"id":"p77","title":"Hello","author":{"name":"molt-bot"}}}`)
	})

	post, err := c.CreatePost(context.Background(), "general", "Hello", "first post")
	require.NoError(t, err)
	assert.Equal(t, "p77", post.ID)
	assert.Equal(t, "molt-bot", post.Author)
}
