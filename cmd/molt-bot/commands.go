package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/cpunion/molt-bot/pkg/bot"
	"github.com/cpunion/molt-bot/pkg/challenge"
	"github.com/cpunion/molt-bot/pkg/config"
	"github.com/cpunion/molt-bot/pkg/feed"
	"github.com/cpunion/molt-bot/pkg/moltbook"
	"github.com/cpunion/molt-bot/pkg/store"
)

func botConfig(cfg config.Config) bot.Config {
	return bot.Config{
		Policy:         cfg.Policy(),
		FeedLimit:      cfg.Bot.FeedLimit,
		Interval:       cfg.Bot.Interval,
		Triggers:       cfg.Bot.Triggers,
		RequireClaimed: cfg.Bot.RequireClaimed,
		Subscribe:      cfg.Bot.Subscribe,
		Heartbeat:      cfg.Bot.Heartbeat,
		SelfTest:       cfg.Bot.SelfTest,
	}
}

// setup validates the configuration and builds a ready bot. The returned
// cleanup closes the store and the activity log.
func setup(ctx context.Context, cctx *cli.Context) (*bot.Bot, config.Config, func(), error) {
	logger := configureLogger(cctx)
	cfg, err := loadConfig(cctx)
	if err != nil {
		return nil, cfg, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfg, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, cfg, nil, err
	}

	clientCfg := cfg.Client()
	clientCfg.Logger = logger
	client := moltbook.NewClient(clientCfg)

	deps := bot.Deps{
		Platform:  client,
		Generator: newGenerator(ctx, cfg, logger),
		Store:     st,
		Logger:    logger,
	}
	activity := openActivity(cfg, logger)
	if activity != nil {
		deps.Activity = activity
	}

	b, err := bot.New(botConfig(cfg), deps)
	if err != nil {
		closeStore()
		return nil, cfg, nil, err
	}
	cleanup := func() {
		if activity != nil {
			_ = activity.Close()
		}
		closeStore()
	}
	return b, cfg, cleanup, nil
}

func runBot(cctx *cli.Context) error {
	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, cfg, cleanup, err := setup(ctx, cctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Metrics.Addr != "" {
		serveMetrics(ctx, cfg.Metrics.Addr, slog.Default())
	}
	return b.Run(ctx)
}

func runSelfTest(cctx *cli.Context) error {
	b, _, cleanup, err := setup(cctx.Context, cctx)
	if err != nil {
		return err
	}
	defer cleanup()
	return b.SelfTest(cctx.Context)
}

func runSolve(cctx *cli.Context) error {
	text := strings.Join(cctx.Args().Slice(), " ")
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("usage: molt-bot solve <challenge text>")
	}
	p, err := challenge.Parse(text)
	if err != nil {
		return err
	}
	n, err := p.Result()
	if err != nil {
		return err
	}
	fmt.Printf("operands: %v\noperator: %s\nanswer:   %s\n", p.Operands, p.Op, challenge.FormatAnswer(n))
	return nil
}

func runState(cctx *cli.Context) error {
	logger := configureLogger(cctx)
	cfg, err := loadConfig(cctx)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	state, err := st.Load(cctx.Context)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Info("no state persisted yet")
			return nil
		}
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}

func runPost(cctx *cli.Context) error {
	logger := configureLogger(cctx)
	cfg, err := loadConfig(cctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Moltbook.APIKey) == "" {
		return fmt.Errorf("moltbook API key is required (MOLTBOOK_API_KEY)")
	}

	submolt := cctx.String("to")
	if submolt == "" {
		submolt = cfg.Moltbook.Submolt
	}
	if submolt == "" {
		submolt = "general"
	}

	clientCfg := cfg.Client()
	clientCfg.Logger = logger
	post, err := moltbook.NewClient(clientCfg).CreatePost(cctx.Context, submolt, cctx.String("title"), cctx.String("content"))
	if err != nil {
		return err
	}
	logger.Info("post created", "post_id", post.ID, "submolt", submolt)
	return nil
}

func runActivity(cctx *cli.Context) error {
	cfg, err := loadConfig(cctx)
	if err != nil {
		return err
	}
	events, err := feed.ReadRecent(cfg.Activity.Dir, cctx.Int("n"))
	if err != nil {
		return err
	}
	for _, ev := range events {
		line := fmt.Sprintf("%s %-9s", ev.Time.Format("2006-01-02 15:04:05"), ev.Kind)
		if ev.PostID != "" {
			line += " post=" + ev.PostID
		}
		if ev.Submolt != "" {
			line += " submolt=" + ev.Submolt
		}
		if ev.Outcome != "" {
			line += " outcome=" + ev.Outcome
		}
		if ev.Text != "" {
			line += fmt.Sprintf(" %q", ev.Text)
		}
		fmt.Println(line)
	}
	return nil
}
