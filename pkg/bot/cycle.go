package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cpunion/molt-bot/pkg/challenge"
	"github.com/cpunion/molt-bot/pkg/feed"
	"github.com/cpunion/molt-bot/pkg/llm"
	"github.com/cpunion/molt-bot/pkg/metrics"
	"github.com/cpunion/molt-bot/pkg/moltbook"
	"github.com/cpunion/molt-bot/pkg/policy"
	"github.com/cpunion/molt-bot/pkg/types"
)

// ErrNotClaimed is returned by RunCycle while the account awaits its owner.
var ErrNotClaimed = errors.New("agent not claimed yet")

// reasonIrrelevant is reported for posts that match no trigger.
const reasonIrrelevant policy.Reason = "irrelevant"

// CycleReport summarizes one cycle.
type CycleReport struct {
	Fetched    int
	Unseen     int
	Replied    int
	Decisions  map[policy.Reason]int
	Challenges []challenge.Result
}

// RunCycle fetches the feed once and handles every unseen post, oldest first.
// Feed errors count as an empty feed. The returned error is only set when the
// cycle could not start.
func (b *Bot) RunCycle(ctx context.Context) (CycleReport, error) {
	b.ensureLoaded(ctx)
	report := CycleReport{Decisions: map[policy.Reason]int{}}

	if b.cfg.RequireClaimed {
		status, err := b.platform.Status(ctx)
		if err != nil {
			metrics.Cycles.WithLabelValues("status_error").Inc()
			return report, fmt.Errorf("status check: %w", err)
		}
		if !status.Claimed() {
			metrics.Cycles.WithLabelValues("not_claimed").Inc()
			b.logger.Info("agent not claimed yet, waiting", "status", status.Status)
			return report, ErrNotClaimed
		}
	}

	if rolled := policy.RollDayIfNeeded(b.state, b.now()); rolled.Date != b.state.Date {
		b.logger.Info("new day, daily counter reset", "date", rolled.Date)
		b.commit(ctx, rolled)
	}

	posts, err := b.platform.FetchRecentPosts(ctx, b.cfg.FeedLimit)
	if err != nil {
		b.logFeedError(err)
		posts = nil
	}
	report.Fetched = len(posts)
	metrics.PostsFetched.Add(float64(len(posts)))

	unseen := policy.Unseen(b.state, posts, b.cfg.Policy.TrackMode)
	report.Unseen = len(unseen)

	for _, post := range unseen {
		if ctx.Err() != nil {
			break
		}
		stop := b.handlePost(ctx, post, &report)
		if stop {
			break
		}
	}

	metrics.Cycles.WithLabelValues("ok").Inc()
	return report, nil
}

func (b *Bot) logFeedError(err error) {
	var apiErr *moltbook.APIError
	if errors.As(err, &apiErr) && errors.Is(err, moltbook.ErrAuthorizationDenied) {
		b.logger.Warn("feed access denied", "status", apiErr.StatusCode, "message", apiErr.Message)
		return
	}
	b.logger.Warn("feed unavailable, treating as empty", "err", err)
}

// handlePost runs one post through subscribe, relevance, eligibility and
// submission. It reports whether the rest of the cycle should be skipped.
func (b *Bot) handlePost(ctx context.Context, post types.Post, report *CycleReport) bool {
	log := b.logger.With("post_id", post.ID, "author", post.Author)
	cfg := b.cfg.Policy

	b.subscribeOnce(ctx, post.Submolt)

	now := b.now()
	b.state = policy.RollDayIfNeeded(b.state, now)

	var decision policy.Decision
	if !policy.Relevant(post, b.cfg.Triggers) {
		decision = policy.Decision{Reason: reasonIrrelevant}
	} else {
		decision = policy.Evaluate(b.state, post, now, cfg)
	}
	report.Decisions[decision.Reason]++
	metrics.Decisions.WithLabelValues(string(decision.Reason)).Inc()

	switch {
	case decision.Allowed:
		if stop := b.reply(ctx, post, log, report); stop {
			return true
		}
	case decision.Reason == policy.ReasonDryRun:
		text, err := b.gen.Generate(ctx, llm.BuildPrompt(post))
		if err == nil {
			log.Info("dry run, reply not posted", "reply", text)
			b.record(replyEvent(post, text, "dry_run", true))
		}
	default:
		log.Debug("post skipped", "reason", decision.Reason)
		if decision.Reason != policy.ReasonSeen {
			b.record(feed.Event{
				Kind:    feed.KindSkip,
				PostID:  post.ID,
				Author:  post.Author,
				Submolt: post.Submolt,
				Title:   post.Title,
				Outcome: string(decision.Reason),
			})
		}
	}

	b.commit(ctx, policy.MarkSeen(b.state, post.ID, cfg.TrackMode, cfg.SeenLimit))
	return false
}

func replyEvent(post types.Post, text, outcome string, dryRun bool) feed.Event {
	return feed.Event{
		Kind:    feed.KindReply,
		PostID:  post.ID,
		Author:  post.Author,
		Submolt: post.Submolt,
		Title:   post.Title,
		Text:    text,
		Outcome: outcome,
		DryRun:  dryRun,
	}
}

// reply generates and submits a comment. Transient failures leave the post
// unseen and end the cycle so it is retried next time.
func (b *Bot) reply(ctx context.Context, post types.Post, log *slog.Logger, report *CycleReport) bool {
	text, err := b.gen.Generate(ctx, llm.BuildPrompt(post))
	if err != nil {
		return true
	}

	res, err := b.platform.SubmitComment(ctx, post.ID, text)
	if err != nil {
		metrics.Comments.WithLabelValues("failed").Inc()
		b.record(feed.Event{Kind: feed.KindReply, PostID: post.ID, Text: text, Outcome: "failed", Error: err.Error()})

		var apiErr *moltbook.APIError
		if errors.As(err, &apiErr) && apiErr.Challenge != nil {
			report.Challenges = append(report.Challenges, b.settle(ctx, *apiErr.Challenge, post))
		}
		switch {
		case moltbook.Retryable(err):
			log.Warn("comment not posted, will retry next cycle", "err", err)
			return true
		case errors.Is(err, moltbook.ErrAuthorizationDenied):
			msg := err.Error()
			if apiErr != nil {
				msg = apiErr.Message
			}
			log.Warn("comment forbidden", "message", msg)
		default:
			log.Warn("comment rejected", "err", err)
		}
		return false
	}

	metrics.Comments.WithLabelValues("posted").Inc()
	report.Replied++
	b.commit(ctx, policy.MarkReplied(b.state, post.ID, b.now()))
	log.Info("replied", "comment_id", res.CommentID, "comments_today", b.state.CommentsToday, "reply", text)
	b.record(replyEvent(post, text, "posted", false))

	if res.Challenge != nil {
		report.Challenges = append(report.Challenges, b.settle(ctx, *res.Challenge, post))
	}

	if b.cfg.Policy.CooldownScope == policy.ScopePerPost {
		if err := b.sleep(ctx, b.cfg.Policy.Cooldown); err != nil {
			return true
		}
	}
	return false
}

func (b *Bot) settle(ctx context.Context, ch types.Challenge, post types.Post) challenge.Result {
	res := b.verifier.Resolve(ctx, ch)
	ev := feed.Event{Kind: feed.KindChallenge, PostID: post.ID, Text: ch.Text, Outcome: string(res.Stage)}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	b.record(ev)
	return res
}

func (b *Bot) subscribeOnce(ctx context.Context, slug string) {
	if !b.cfg.Subscribe || slug == "" || b.state.IsSubscribed(slug) {
		return
	}
	outcome, err := b.platform.Subscribe(ctx, slug)
	metrics.Subscriptions.WithLabelValues(string(outcome)).Inc()
	if err != nil || !outcome.Benign() {
		b.logger.Warn("subscribe failed", "submolt", slug, "err", err)
		return
	}
	b.logger.Info("subscription recorded", "submolt", slug, "outcome", outcome)
	b.commit(ctx, policy.MarkSubscribed(b.state, slug))
	b.record(feed.Event{Kind: feed.KindSubscribe, Submolt: slug, Outcome: string(outcome)})
}
