package policy

import (
	"testing"
	"time"

	"github.com/cpunion/molt-bot/pkg/types"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Self = "molt-bot"
	return cfg
}

func TestEvaluate_Rules(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	post := types.Post{ID: "p1", Author: "alice", Content: "how does this work?"}

	tests := []struct {
		name   string
		state  func() PolicyState
		post   types.Post
		cfg    func(Config) Config
		reason Reason
	}{
		{
			name:   "fresh post allowed",
			state:  func() PolicyState { return DefaultState(now) },
			post:   post,
			reason: ReasonAllowed,
		},
		{
			name: "replied post",
			state: func() PolicyState {
				return MarkReplied(DefaultState(now), "p1", now.Add(-time.Hour))
			},
			post:   post,
			reason: ReasonSeen,
		},
		{
			name: "seen post",
			state: func() PolicyState {
				return MarkSeen(DefaultState(now), "p1", TrackRecent, 0)
			},
			post:   post,
			reason: ReasonSeen,
		},
		{
			name:   "own post",
			state:  func() PolicyState { return DefaultState(now) },
			post:   types.Post{ID: "p2", Author: "molt-bot", Content: "hi"},
			reason: ReasonSelf,
		},
		{
			name: "cooldown active",
			state: func() PolicyState {
				s := DefaultState(now)
				s.LastCommentTime = now.Add(-5 * time.Second)
				return s
			},
			post:   post,
			reason: ReasonCooldown,
		},
		{
			name: "per-post scope skips global cooldown",
			state: func() PolicyState {
				s := DefaultState(now)
				s.LastCommentTime = now.Add(-5 * time.Second)
				return s
			},
			post: post,
			cfg: func(c Config) Config {
				c.CooldownScope = ScopePerPost
				return c
			},
			reason: ReasonAllowed,
		},
		{
			name: "daily cap",
			state: func() PolicyState {
				s := DefaultState(now)
				s.CommentsToday = 45
				return s
			},
			post:   post,
			reason: ReasonDailyCap,
		},
		{
			name:  "dry run",
			state: func() PolicyState { return DefaultState(now) },
			post:  post,
			cfg: func(c Config) Config {
				c.DryRun = true
				return c
			},
			reason: ReasonDryRun,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.cfg != nil {
				cfg = tt.cfg(cfg)
			}
			d := Evaluate(tt.state(), tt.post, now, cfg)
			if d.Reason != tt.reason {
				t.Fatalf("reason=%s, want %s", d.Reason, tt.reason)
			}
			if d.Allowed != (tt.reason == ReasonAllowed) {
				t.Fatalf("allowed=%v for reason %s", d.Allowed, d.Reason)
			}
			if CanReply(tt.state(), tt.post, now, cfg) != d.Allowed {
				t.Fatal("CanReply disagrees with Evaluate")
			}
		})
	}
}

func TestCanReply_SeenWinsOverEverything(t *testing.T) {
	now := time.Now()
	state := MarkSeen(DefaultState(now), "p1", TrackRecent, 0)
	cfg := testConfig()
	cfg.Cooldown = 0
	cfg.MaxPerDay = 1000

	for _, author := range []string{"alice", "bob", ""} {
		post := types.Post{ID: "p1", Author: author, Content: "anything?"}
		if CanReply(state, post, now, cfg) {
			t.Errorf("CanReply(seen post by %q)=true, want false", author)
		}
	}
}

func TestCanReply_DailyCapAfterCooldown(t *testing.T) {
	now := time.Now()
	state := DefaultState(now)
	state.LastCommentTime = now.Add(-24 * time.Hour)
	state.CommentsToday = 6

	cfg := testConfig()
	cfg.MaxPerDay = 6
	if CanReply(state, types.Post{ID: "p9", Author: "carol"}, now, cfg) {
		t.Error("expected daily cap to block even though the cooldown elapsed")
	}
}

func TestUnseen_OldestFirst(t *testing.T) {
	now := time.Now()
	feed := []types.Post{{ID: "p5"}, {ID: "p4"}, {ID: "p3"}, {ID: "p2"}, {ID: ""}}

	state := MarkReplied(DefaultState(now), "p4", now)
	got := Unseen(state, feed, TrackRecent)

	want := []string{"p2", "p3", "p5"}
	if len(got) != len(want) {
		t.Fatalf("got %d posts, want %d", len(got), len(want))
	}
	for i, p := range got {
		if p.ID != want[i] {
			t.Errorf("got[%d]=%s, want %s", i, p.ID, want[i])
		}
	}
}

func TestUnseen_CursorStops(t *testing.T) {
	state := MarkSeen(DefaultState(time.Now()), "p3", TrackCursor, 0)
	feed := []types.Post{{ID: "p5"}, {ID: "p4"}, {ID: "p3"}, {ID: "p2"}}

	got := Unseen(state, feed, TrackCursor)
	if len(got) != 2 || got[0].ID != "p4" || got[1].ID != "p5" {
		t.Fatalf("got %+v, want [p4 p5]", got)
	}
}

func TestRelevant(t *testing.T) {
	triggers := []string{"?", "how", "why", "thoughts", "anyone"}

	if Relevant(types.Post{Title: "  ", Content: ""}, nil) {
		t.Error("empty post should not be relevant")
	}
	if !Relevant(types.Post{Title: "Only a title"}, nil) {
		t.Error("title-only post should be relevant without triggers")
	}
	if Relevant(types.Post{Content: "Just sharing a link"}, triggers) {
		t.Error("post without trigger should not be relevant")
	}
	if !Relevant(types.Post{Content: "Any THOUGHTS on this"}, triggers) {
		t.Error("trigger match should be case-insensitive")
	}
}
