package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/cpunion/molt-bot/pkg/config"
	"github.com/cpunion/molt-bot/pkg/feed"
	"github.com/cpunion/molt-bot/pkg/llm"
	"github.com/cpunion/molt-bot/pkg/store"
)

// loadConfig layers defaults, the optional YAML file, then flags and env.
func loadConfig(cctx *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := cctx.String("config"); path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return cfg, err
		}
	}

	setString := func(name string, dst *string) {
		if cctx.IsSet(name) {
			*dst = cctx.String(name)
		}
	}
	setString("api-key", &cfg.Moltbook.APIKey)
	setString("bot-name", &cfg.Bot.Name)
	setString("base-url", &cfg.Moltbook.BaseURL)
	setString("submolt", &cfg.Moltbook.Submolt)
	setString("state", &cfg.Store.Path)
	setString("activity-dir", &cfg.Activity.Dir)
	setString("llm-backend", &cfg.LLM.Backend)
	setString("llm-model", &cfg.LLM.Model)
	setString("llm-url", &cfg.LLM.BaseURL)
	if cctx.IsSet("redis-url") {
		cfg.Store.Kind = config.StoreRedis
		cfg.Store.RedisURL = cctx.String("redis-url")
	}

	// Subcommand flags.
	setString("cooldown-scope", &cfg.Bot.CooldownScope)
	setString("track-mode", &cfg.Bot.TrackMode)
	setString("metrics-addr", &cfg.Metrics.Addr)
	if cctx.IsSet("interval") {
		cfg.Bot.Interval = cctx.Duration("interval")
	}
	if cctx.IsSet("cooldown") {
		cfg.Bot.Cooldown = cctx.Duration("cooldown")
	}
	if cctx.IsSet("max-per-day") {
		cfg.Bot.MaxPerDay = cctx.Int("max-per-day")
	}
	if cctx.IsSet("dry-run") {
		cfg.Bot.DryRun = cctx.Bool("dry-run")
	}
	if cctx.IsSet("require-claimed") {
		cfg.Bot.RequireClaimed = cctx.Bool("require-claimed")
	}
	return cfg, nil
}

func openStore(cfg config.Config) (store.Store, func(), error) {
	switch cfg.Store.Kind {
	case config.StoreRedis:
		rs, err := store.NewRedisStore(cfg.Store.RedisURL, cfg.Store.RedisKey)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("redis unreachable: %w", err)
		}
		return rs, func() { _ = rs.Close() }, nil
	default:
		return store.NewFileStore(cfg.Store.Path), func() {}, nil
	}
}

func newGenerator(ctx context.Context, cfg config.Config, logger *slog.Logger) *llm.Fallback {
	inner, err := llm.New(ctx, cfg.Generator())
	if err != nil {
		logger.Warn("text generator unavailable, replies use the fallback text", "backend", cfg.LLM.Backend, "err", err)
		inner = nil
	}
	return llm.NewFallback(inner, cfg.LLM.FallbackReply, cfg.LLM.Timeout, logger)
}

func openActivity(cfg config.Config, logger *slog.Logger) *feed.Writer {
	if cfg.Activity.Dir == "" {
		return nil
	}
	w, err := feed.OpenWriter(feed.WriterConfig{
		Dir:               cfg.Activity.Dir,
		MaxEventsPerShard: cfg.Activity.MaxEventsPerShard,
		Append:            true,
	})
	if err != nil {
		logger.Warn("activity log disabled", "dir", cfg.Activity.Dir, "err", err)
		return nil
	}
	return w
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", "err", err)
		}
	}()
}
