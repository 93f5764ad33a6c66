// Package types defines the canonical data model shared by molt-bot packages.
package types

import (
	"strings"
	"time"
)

// Post is a single feed entry, normalized from whatever shape the API returned.
type Post struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Submolt   string    `json:"submolt,omitempty"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Text returns the body of the post, falling back to its title.
func (p Post) Text() string {
	if strings.TrimSpace(p.Content) != "" {
		return p.Content
	}
	return p.Title
}

// Challenge is a server-issued arithmetic word problem gating further posting.
type Challenge struct {
	Code string `json:"code"`
	Text string `json:"text"`
}

// CommentResult is the outcome of a successful comment submission.
type CommentResult struct {
	CommentID string     `json:"comment_id,omitempty"`
	Challenge *Challenge `json:"challenge,omitempty"`
}

// SubscribeOutcome classifies a subscribe call.
type SubscribeOutcome string

const (
	SubscribeOK       SubscribeOutcome = "subscribed"
	SubscribeExisting SubscribeOutcome = "already_subscribed"
	SubscribeNotFound SubscribeOutcome = "not_found"
	SubscribeError    SubscribeOutcome = "error"
)

// Benign reports whether the outcome should be recorded and never retried.
func (o SubscribeOutcome) Benign() bool {
	return o != SubscribeError
}

// VerifyOutcome classifies a verification answer submission.
type VerifyOutcome string

const (
	VerifyAccepted VerifyOutcome = "accepted"
	VerifyExpired  VerifyOutcome = "expired_or_duplicate"
	VerifyError    VerifyOutcome = "error"
)

// AgentStatus is the platform's view of the bot account.
type AgentStatus struct {
	Status string `json:"status"`
	Name   string `json:"name,omitempty"`
}

// Claimed reports whether the account has been claimed by its owner.
func (s AgentStatus) Claimed() bool {
	return s.Status == "claimed"
}
