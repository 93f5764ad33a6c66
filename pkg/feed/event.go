// Package feed keeps the bot's activity log: one JSON line per action, split
// into fixed-size shards with an index.json manifest.
package feed

import "time"

// Event kinds written by the bot.
const (
	KindReply     = "reply"
	KindSkip      = "skip"
	KindSubscribe = "subscribe"
	KindChallenge = "challenge"
	KindSelfTest  = "self_test"
	KindHeartbeat = "heartbeat"
)

// Event is one activity log line.
type Event struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	PostID  string    `json:"post_id,omitempty"`
	Author  string    `json:"author,omitempty"`
	Submolt string    `json:"submolt,omitempty"`
	Title   string    `json:"title,omitempty"`
	Text    string    `json:"text,omitempty"`
	Outcome string    `json:"outcome,omitempty"`
	Error   string    `json:"error,omitempty"`
	DryRun  bool      `json:"dry_run,omitempty"`
}
