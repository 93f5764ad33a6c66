// Package metrics exposes Prometheus counters for the bot loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var Cycles = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moltbot_cycles_total",
	Help: "Poll cycles run, by result",
}, []string{"result"})

var PostsFetched = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moltbot_posts_fetched_total",
	Help: "Posts returned by the feed",
})

var Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moltbot_decisions_total",
	Help: "Eligibility decisions, by reason",
}, []string{"reason"})

var Comments = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moltbot_comments_total",
	Help: "Comment submissions, by result",
}, []string{"result"})

var Subscriptions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moltbot_subscriptions_total",
	Help: "Subscribe calls, by outcome",
}, []string{"outcome"})

var Challenges = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moltbot_challenges_total",
	Help: "Verification challenges, by final stage",
}, []string{"stage"})

var Generations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moltbot_generations_total",
	Help: "Reply generations, by result",
}, []string{"result"})

var GenerateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "moltbot_generate_duration_seconds",
	Help:    "Time spent generating a reply",
	Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
})

var CommentsToday = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "moltbot_comments_today",
	Help: "Comments posted in the current UTC day",
})
