// Package policy implements the posting policy: persisted counters, de-duplication
// and the reply eligibility rules.
package policy

import (
	"slices"
	"time"
)

// DateLayout is the calendar-day format stored in PolicyState.Date.
const DateLayout = "2006-01-02"

// DefaultSeenLimit bounds the recent seen list in TrackRecent mode.
const DefaultSeenLimit = 200

// TrackMode selects how already-processed posts are remembered.
type TrackMode string

const (
	// TrackCursor keeps only the newest seen post id. Assumes the feed is
	// strictly ordered newest first.
	TrackCursor TrackMode = "cursor"
	// TrackRecent keeps a bounded list of recently seen ids.
	TrackRecent TrackMode = "recent"
	// TrackReplied only remembers posts that were replied to.
	TrackReplied TrackMode = "replied"
)

// PolicyState is the persisted state of the bot. It is a plain value: every
// mutation returns the updated copy.
type PolicyState struct {
	LastCommentTime time.Time `json:"last_comment_time,omitzero"`
	CommentsToday   int       `json:"comments_today"`
	Date            string    `json:"date"`

	LastSeenPostID     string   `json:"last_seen_post_id,omitempty"`
	SeenPostIDs        []string `json:"seen_post_ids"`
	RepliedPostIDs     []string `json:"replied_post_ids"`
	SubscribedSubmolts []string `json:"subscribed_submolts"`

	StartedAt     time.Time `json:"started_at,omitzero"`
	LastHeartbeat time.Time `json:"last_heartbeat,omitzero"`
	SelfTestDone  bool      `json:"self_test_done"`
}

// DefaultState returns the state used when nothing has been persisted yet.
func DefaultState(now time.Time) PolicyState {
	now = now.UTC()
	return PolicyState{
		Date:               now.Format(DateLayout),
		SeenPostIDs:        []string{},
		RepliedPostIDs:     []string{},
		SubscribedSubmolts: []string{},
		StartedAt:          now,
	}
}

// Normalize fills collections that a decoder may have left nil.
func (s PolicyState) Normalize() PolicyState {
	if s.SeenPostIDs == nil {
		s.SeenPostIDs = []string{}
	}
	if s.RepliedPostIDs == nil {
		s.RepliedPostIDs = []string{}
	}
	if s.SubscribedSubmolts == nil {
		s.SubscribedSubmolts = []string{}
	}
	return s
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (s PolicyState) Clone() PolicyState {
	s.SeenPostIDs = slices.Clone(s.SeenPostIDs)
	s.RepliedPostIDs = slices.Clone(s.RepliedPostIDs)
	s.SubscribedSubmolts = slices.Clone(s.SubscribedSubmolts)
	return s.Normalize()
}

// RollDayIfNeeded resets the daily counter when now falls on a different UTC day
// than the stored date. Applying it twice changes nothing further.
func RollDayIfNeeded(s PolicyState, now time.Time) PolicyState {
	today := now.UTC().Format(DateLayout)
	if s.Date == today {
		return s
	}
	s.CommentsToday = 0
	s.Date = today
	return s
}

// HasSeen reports whether id is already in the de-duplication set.
func (s PolicyState) HasSeen(id string) bool {
	if id == "" {
		return false
	}
	if s.LastSeenPostID == id {
		return true
	}
	return slices.Contains(s.RepliedPostIDs, id) || slices.Contains(s.SeenPostIDs, id)
}

// MarkSeen records id as processed according to mode. limit bounds the recent
// list; values <= 0 use DefaultSeenLimit.
func MarkSeen(s PolicyState, id string, mode TrackMode, limit int) PolicyState {
	if id == "" {
		return s
	}
	switch mode {
	case TrackCursor:
		s.LastSeenPostID = id
	case TrackRecent:
		if limit <= 0 {
			limit = DefaultSeenLimit
		}
		if slices.Contains(s.SeenPostIDs, id) {
			return s
		}
		seen := append(slices.Clone(s.SeenPostIDs), id)
		if len(seen) > limit {
			seen = seen[len(seen)-limit:]
		}
		s.SeenPostIDs = seen
	case TrackReplied:
		// Only replies are remembered.
	}
	return s
}

// MarkReplied records a confirmed comment on id at now.
func MarkReplied(s PolicyState, id string, now time.Time) PolicyState {
	if !slices.Contains(s.RepliedPostIDs, id) {
		s.RepliedPostIDs = append(slices.Clone(s.RepliedPostIDs), id)
	}
	s.LastCommentTime = now.UTC()
	s.CommentsToday++
	return s
}

// IsSubscribed reports whether slug was already subscribed to.
func (s PolicyState) IsSubscribed(slug string) bool {
	return slices.Contains(s.SubscribedSubmolts, slug)
}

// MarkSubscribed records slug as subscribed.
func MarkSubscribed(s PolicyState, slug string) PolicyState {
	if slug == "" || s.IsSubscribed(slug) {
		return s
	}
	s.SubscribedSubmolts = append(slices.Clone(s.SubscribedSubmolts), slug)
	return s
}

// Uptime returns the time elapsed since the state was first created.
func (s PolicyState) Uptime(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}
