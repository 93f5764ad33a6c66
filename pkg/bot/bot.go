// Package bot runs the poll-evaluate-act loop: fetch the feed, decide which
// posts to answer, comment, and settle any verification challenge.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cpunion/molt-bot/pkg/challenge"
	"github.com/cpunion/molt-bot/pkg/feed"
	"github.com/cpunion/molt-bot/pkg/llm"
	"github.com/cpunion/molt-bot/pkg/metrics"
	"github.com/cpunion/molt-bot/pkg/moltbook"
	"github.com/cpunion/molt-bot/pkg/policy"
	"github.com/cpunion/molt-bot/pkg/store"
	"github.com/cpunion/molt-bot/pkg/types"
)

// FeedSource returns recent posts, newest first.
type FeedSource interface {
	FetchRecentPosts(ctx context.Context, limit int) ([]types.Post, error)
}

// CommentSink publishes a comment.
type CommentSink interface {
	SubmitComment(ctx context.Context, postID, text string) (types.CommentResult, error)
}

// SubscriptionSink subscribes the account to a community.
type SubscriptionSink interface {
	Subscribe(ctx context.Context, slug string) (types.SubscribeOutcome, error)
}

// StatusSource reports whether the account may act.
type StatusSource interface {
	Status(ctx context.Context) (types.AgentStatus, error)
}

// ActivityLog records what the bot did.
type ActivityLog interface {
	Append(ev feed.Event) error
}

// Platform is everything the bot needs from the remote API.
// *moltbook.Client satisfies it.
type Platform interface {
	FeedSource
	CommentSink
	SubscriptionSink
	StatusSource
	challenge.Sink
}

var _ Platform = (*moltbook.Client)(nil)

// Config controls the loop around the eligibility policy.
type Config struct {
	Policy         policy.Config
	FeedLimit      int
	Interval       time.Duration
	Triggers       []string
	RequireClaimed bool
	Subscribe      bool
	Heartbeat      time.Duration
	SelfTest       bool
}

// Deps are the collaborators of a Bot. Activity, Now and Sleep are optional.
type Deps struct {
	Platform  Platform
	Generator llm.Generator
	Store     store.Store
	Activity  ActivityLog
	Logger    *slog.Logger
	Now       func() time.Time
	Sleep     func(ctx context.Context, d time.Duration) error
}

// Bot owns the PolicyState and drives cycles. It is not safe for concurrent
// use; Run executes cycles strictly one after another.
type Bot struct {
	cfg      Config
	platform Platform
	gen      *llm.Fallback
	store    store.Store
	activity ActivityLog
	verifier *challenge.Verifier
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	state  policy.PolicyState
	loaded bool
}

// New creates a bot. The state is loaded lazily on first use.
func New(cfg Config, deps Deps) (*Bot, error) {
	if deps.Platform == nil {
		return nil, errors.New("bot: platform is required")
	}
	if deps.Store == nil {
		return nil, errors.New("bot: store is required")
	}
	if cfg.FeedLimit <= 0 {
		cfg.FeedLimit = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepContext
	}
	gen, ok := deps.Generator.(*llm.Fallback)
	if !ok {
		gen = llm.NewFallback(deps.Generator, "", 0, deps.Logger)
	}
	return &Bot{
		cfg:      cfg,
		platform: deps.Platform,
		gen:      gen,
		store:    deps.Store,
		activity: deps.Activity,
		verifier: challenge.NewVerifier(deps.Platform, deps.Logger),
		logger:   deps.Logger.With("component", "bot"),
		now:      deps.Now,
		sleep:    deps.Sleep,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State returns a copy of the current state, loading it if needed.
func (b *Bot) State(ctx context.Context) policy.PolicyState {
	b.ensureLoaded(ctx)
	return b.state.Clone()
}

func (b *Bot) ensureLoaded(ctx context.Context) {
	if b.loaded {
		return
	}
	b.state = store.LoadOrDefault(ctx, b.store, b.now(), b.logger)
	b.loaded = true
}

// commit replaces the in-memory state and persists it. A failed save is
// logged and the bot continues on the in-memory copy.
func (b *Bot) commit(ctx context.Context, next policy.PolicyState) {
	b.state = next
	metrics.CommentsToday.Set(float64(next.CommentsToday))
	if err := b.store.Save(ctx, next); err != nil {
		b.logger.Warn("state not persisted", "err", err)
	}
}

func (b *Bot) record(ev feed.Event) {
	if b.activity == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = b.now().UTC()
	}
	if err := b.activity.Append(ev); err != nil {
		b.logger.Warn("activity log write failed", "kind", ev.Kind, "err", err)
	}
}

// Run executes cycles until ctx is done. A failed cycle only delays the next.
func (b *Bot) Run(ctx context.Context) error {
	b.ensureLoaded(ctx)
	b.logger.Info("bot running",
		"self", b.cfg.Policy.Self,
		"interval", b.cfg.Interval,
		"dry_run", b.cfg.Policy.DryRun,
		"track_mode", b.cfg.Policy.TrackMode,
		"cooldown_scope", b.cfg.Policy.CooldownScope,
	)

	if b.cfg.SelfTest && !b.state.SelfTestDone {
		if err := b.SelfTest(ctx); err != nil && ctx.Err() != nil {
			return nil
		}
	}

	for {
		report, err := b.RunCycle(ctx)
		switch {
		case ctx.Err() != nil:
			b.logger.Info("bot stopped")
			return nil
		case errors.Is(err, ErrNotClaimed):
		case err != nil:
			b.logger.Warn("cycle failed", "err", err)
		default:
			b.logger.Info("cycle done",
				"fetched", report.Fetched,
				"unseen", report.Unseen,
				"replied", report.Replied,
				"comments_today", b.state.CommentsToday,
			)
		}

		b.heartbeat(ctx)

		if err := b.sleep(ctx, b.cfg.Interval); err != nil {
			b.logger.Info("bot stopped")
			return nil
		}
	}
}

func (b *Bot) heartbeat(ctx context.Context) {
	if b.cfg.Heartbeat <= 0 {
		return
	}
	now := b.now()
	if !b.state.LastHeartbeat.IsZero() && now.Sub(b.state.LastHeartbeat) < b.cfg.Heartbeat {
		return
	}
	uptime := b.state.Uptime(now).Truncate(time.Second)
	b.logger.Info("heartbeat", "uptime", uptime.String(), "comments_today", b.state.CommentsToday)
	next := b.state.Clone()
	next.LastHeartbeat = now.UTC()
	b.commit(ctx, next)
	b.record(feed.Event{Kind: feed.KindHeartbeat, Outcome: uptime.String()})
}

const selfTestSample = "Bots sometimes go quiet for reasons that aren't obvious."

// SelfTest generates one reply to a fixed sample and marks the test done.
// The static fallback reply does not count, so a down backend is retried on
// the next start.
func (b *Bot) SelfTest(ctx context.Context) error {
	b.ensureLoaded(ctx)
	b.logger.Info("running generator self-test")
	reply, err := b.gen.Check(ctx, llm.BuildPrompt(types.Post{Content: selfTestSample}))
	if err != nil {
		if ctx.Err() == nil {
			b.logger.Warn("self-test failed, will retry on next start", "err", err)
			b.record(feed.Event{Kind: feed.KindSelfTest, Outcome: "failed", Error: err.Error()})
		}
		return fmt.Errorf("self-test: %w", err)
	}
	b.logger.Info("self-test output", "reply", reply)
	b.record(feed.Event{Kind: feed.KindSelfTest, Text: reply})

	next := b.state.Clone()
	next.SelfTestDone = true
	b.commit(ctx, next)
	return nil
}
