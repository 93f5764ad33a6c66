package moltbook

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cpunion/molt-bot/pkg/types"
)

// All accepted response shapes are mapped into types.Post here, so nothing
// outside this file depends on upstream field names.

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexName accepts either a bare name or an object carrying one.
type flexName string

func (f *flexName) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexName(s)
		return nil
	}
	var obj struct {
		Name     string `json:"name"`
		Username string `json:"username"`
		Slug     string `json:"slug"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	switch {
	case obj.Name != "":
		*f = flexName(obj.Name)
	case obj.Username != "":
		*f = flexName(obj.Username)
	default:
		*f = flexName(obj.Slug)
	}
	return nil
}

type wirePost struct {
	ID        flexString `json:"id"`
	Author    flexName   `json:"author"`
	Submolt   flexName   `json:"submolt"`
	Community flexName   `json:"community"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Body      string     `json:"body"`
	CreatedAt string     `json:"created_at"`
	CreatedTS string     `json:"createdAt"`

	// Some feeds wrap each entry as {"post": {...}}.
	Post *wirePost `json:"post"`
}

func (w wirePost) toPost() types.Post {
	if w.Post != nil {
		return w.Post.toPost()
	}
	p := types.Post{
		ID:      string(w.ID),
		Author:  string(w.Author),
		Submolt: string(w.Submolt),
		Title:   w.Title,
		Content: w.Content,
	}
	if p.Submolt == "" {
		p.Submolt = string(w.Community)
	}
	if p.Content == "" {
		p.Content = w.Body
	}
	created := w.CreatedAt
	if created == "" {
		created = w.CreatedTS
	}
	p.CreatedAt = parseTime(created)
	return p
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}

var errUnknownShape = errors.New("no post list under data, posts or top level")

// decodeFeed maps a feed body into posts, newest first as delivered. Items
// that fail to decode are skipped so one odd entry does not cost the cycle.
func decodeFeed(body []byte, logger *slog.Logger) ([]types.Post, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errUnknownShape
	}

	var items []json.RawMessage
	if body[0] == '[' {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
	} else {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, err
		}
		found := false
		for _, key := range []string{"data", "posts"} {
			raw, ok := envelope[key]
			if !ok || !isArray(raw) {
				continue
			}
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, err
			}
			found = true
			break
		}
		if !found {
			return nil, errUnknownShape
		}
	}

	posts := make([]types.Post, 0, len(items))
	for i, raw := range items {
		var it wirePost
		if err := json.Unmarshal(raw, &it); err != nil {
			logger.Debug("feed item skipped", "index", i, "err", err)
			continue
		}
		p := it.toPost()
		if p.ID == "" {
			continue
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

type wireChallenge struct {
	Code             flexString `json:"code"`
	VerificationCode flexString `json:"verification_code"`
	Challenge        string     `json:"challenge"`
	ChallengeText    string     `json:"challenge_text"`
	Question         string     `json:"question"`
	Text             string     `json:"text"`
}

func (w wireChallenge) toChallenge() *types.Challenge {
	code := string(w.VerificationCode)
	if code == "" {
		code = string(w.Code)
	}
	text := firstNonEmpty(w.Challenge, w.ChallengeText, w.Question, w.Text)
	if code == "" || strings.TrimSpace(text) == "" {
		return nil
	}
	return &types.Challenge{Code: code, Text: text}
}

// extractChallenge finds a verification challenge anywhere it is known to
// appear: under "verification" or "challenge", at the top level, or inside a
// "comment" or "data" object.
func extractChallenge(body []byte) *types.Challenge {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}
	return challengeFrom(envelope, 0)
}

func challengeFrom(envelope map[string]json.RawMessage, depth int) *types.Challenge {
	for _, key := range []string{"verification", "challenge"} {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		var w wireChallenge
		if json.Unmarshal(raw, &w) == nil {
			if ch := w.toChallenge(); ch != nil {
				return ch
			}
		}
	}

	// Flat form: {"verification_code": "...", "challenge": "..."}.
	var flat wireChallenge
	if raw, err := json.Marshal(envelope); err == nil && json.Unmarshal(raw, &flat) == nil {
		if ch := flat.toChallenge(); ch != nil {
			return ch
		}
	}

	if depth > 0 {
		return nil
	}
	for _, key := range []string{"comment", "data"} {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		var nested map[string]json.RawMessage
		if json.Unmarshal(raw, &nested) == nil {
			if ch := challengeFrom(nested, depth+1); ch != nil {
				return ch
			}
		}
	}
	return nil
}

// decodeComment extracts the comment id and any embedded challenge.
func decodeComment(body []byte) (types.CommentResult, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return types.CommentResult{}, err
	}
	return types.CommentResult{
		CommentID: objectID(envelope),
		Challenge: challengeFrom(envelope, 0),
	}, nil
}

func objectID(envelope map[string]json.RawMessage) string {
	for _, key := range []string{"comment", "data"} {
		var nested struct {
			ID flexString `json:"id"`
		}
		if raw, ok := envelope[key]; ok && json.Unmarshal(raw, &nested) == nil && nested.ID != "" {
			return string(nested.ID)
		}
	}
	var id flexString
	if raw, ok := envelope["id"]; ok && json.Unmarshal(raw, &id) == nil {
		return string(id)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
