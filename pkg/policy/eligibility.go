package policy

import (
	"slices"
	"strings"
	"time"

	"github.com/cpunion/molt-bot/pkg/types"
)

// CooldownScope selects where the comment cooldown is enforced.
type CooldownScope string

const (
	// ScopeGlobal checks the time since the last comment on any post.
	ScopeGlobal CooldownScope = "global"
	// ScopePerPost pauses after each comment instead of gating eligibility.
	ScopePerPost CooldownScope = "per-post"
)

// Config holds the eligibility knobs.
type Config struct {
	Self          string
	Cooldown      time.Duration
	CooldownScope CooldownScope
	MaxPerDay     int
	DryRun        bool
	TrackMode     TrackMode
	SeenLimit     int
}

// DefaultConfig mirrors the most active original bot: 20s cooldown, 45 per day.
func DefaultConfig() Config {
	return Config{
		Cooldown:      20 * time.Second,
		CooldownScope: ScopeGlobal,
		MaxPerDay:     45,
		TrackMode:     TrackRecent,
		SeenLimit:     DefaultSeenLimit,
	}
}

// Reason explains an eligibility decision.
type Reason string

const (
	ReasonAllowed  Reason = "allowed"
	ReasonSeen     Reason = "already_seen"
	ReasonSelf     Reason = "own_post"
	ReasonCooldown Reason = "cooldown"
	ReasonDailyCap Reason = "daily_cap"
	ReasonDryRun   Reason = "dry_run"
)

// Decision is the result of Evaluate.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Evaluate applies the reply rules in order: de-dup, self, cooldown, daily cap,
// dry run. It has no side effects; RollDayIfNeeded must have been applied to s.
func Evaluate(s PolicyState, post types.Post, now time.Time, cfg Config) Decision {
	if s.HasSeen(post.ID) {
		return Decision{Reason: ReasonSeen}
	}
	if cfg.Self != "" && post.Author == cfg.Self {
		return Decision{Reason: ReasonSelf}
	}
	if cfg.CooldownScope != ScopePerPost && !s.LastCommentTime.IsZero() {
		if now.Sub(s.LastCommentTime) < cfg.Cooldown {
			return Decision{Reason: ReasonCooldown}
		}
	}
	if s.CommentsToday >= cfg.MaxPerDay {
		return Decision{Reason: ReasonDailyCap}
	}
	if cfg.DryRun {
		return Decision{Reason: ReasonDryRun}
	}
	return Decision{Allowed: true, Reason: ReasonAllowed}
}

// CanReply reports whether a comment on post is permitted.
func CanReply(s PolicyState, post types.Post, now time.Time, cfg Config) bool {
	return Evaluate(s, post, now, cfg).Allowed
}

// Unseen returns the posts of a newest-first feed that have not been processed,
// oldest first. In cursor mode the scan stops at the stored cursor.
func Unseen(s PolicyState, feed []types.Post, mode TrackMode) []types.Post {
	out := make([]types.Post, 0, len(feed))
	for _, p := range feed {
		if p.ID == "" {
			continue
		}
		if mode == TrackCursor && s.LastSeenPostID != "" && p.ID == s.LastSeenPostID {
			break
		}
		if s.HasSeen(p.ID) {
			continue
		}
		out = append(out, p)
	}
	slices.Reverse(out)
	return out
}

// Relevant reports whether a post is worth answering: it must have text, and
// when triggers are configured its content must contain one of them.
func Relevant(post types.Post, triggers []string) bool {
	text := strings.TrimSpace(post.Text())
	if text == "" {
		return false
	}
	if len(triggers) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, t := range triggers {
		if t != "" && strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
