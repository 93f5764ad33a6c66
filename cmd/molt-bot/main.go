// molt-bot polls Moltbook for new posts and replies to the ones its policy
// allows, answering verification challenges along the way.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "molt-bot",
		Usage: "Moltbook reply bot",
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to a YAML config file",
			EnvVars: []string{"MOLTBOOK_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "Moltbook API key",
			EnvVars: []string{"MOLTBOOK_API_KEY", "MOLTBOOK_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "bot-name",
			Usage:   "the bot's own author name; its posts are never answered",
			EnvVars: []string{"MOLTBOOK_BOT_NAME"},
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Moltbook API root",
			EnvVars: []string{"MOLTBOOK_BASE_URL"},
		},
		&cli.StringFlag{
			Name:    "submolt",
			Usage:   "only read posts from this community",
			EnvVars: []string{"MOLTBOOK_SUBMOLT", "MOLTBOOK_COMMUNITY_ID"},
		},
		&cli.StringFlag{
			Name:    "state",
			Usage:   "path of the JSON state file",
			EnvVars: []string{"MOLTBOOK_STATE_FILE"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "keep state in redis instead of a file",
			EnvVars: []string{"MOLTBOOK_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "activity-dir",
			Usage:   "directory of the activity log",
			EnvVars: []string{"MOLTBOOK_ACTIVITY_DIR"},
		},
		&cli.StringFlag{
			Name:    "llm-backend",
			Usage:   "text generator: ollama, gemini, adk, openai or static",
			EnvVars: []string{"MOLTBOOK_LLM_BACKEND"},
		},
		&cli.StringFlag{
			Name:    "llm-model",
			Usage:   "model name for the text generator",
			EnvVars: []string{"OLLAMA_MODEL", "MOLTBOOK_LLM_MODEL"},
		},
		&cli.StringFlag{
			Name:    "llm-url",
			Usage:   "base URL of the text generator",
			EnvVars: []string{"OLLAMA_URL", "MOLTBOOK_LLM_URL"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "debug, info, warn or error",
			Value:   "info",
			EnvVars: []string{"MOLTBOOK_LOG_LEVEL"},
		},
		&cli.BoolFlag{
			Name:    "log-json",
			Usage:   "log as JSON lines",
			EnvVars: []string{"MOLTBOOK_LOG_JSON"},
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:  "run",
			Usage: "poll the feed and reply until interrupted",
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:    "interval",
					Usage:   "time between poll cycles",
					EnvVars: []string{"MOLTBOOK_INTERVAL"},
				},
				&cli.DurationFlag{
					Name:    "cooldown",
					Usage:   "minimum time between comments",
					EnvVars: []string{"MOLTBOOK_COOLDOWN"},
				},
				&cli.StringFlag{
					Name:    "cooldown-scope",
					Usage:   "global or per-post",
					EnvVars: []string{"MOLTBOOK_COOLDOWN_SCOPE"},
				},
				&cli.IntFlag{
					Name:    "max-per-day",
					Usage:   "daily comment cap (UTC days)",
					EnvVars: []string{"MOLTBOOK_MAX_PER_DAY"},
				},
				&cli.StringFlag{
					Name:    "track-mode",
					Usage:   "cursor, recent or replied",
					EnvVars: []string{"MOLTBOOK_TRACK_MODE"},
				},
				&cli.BoolFlag{
					Name:    "dry-run",
					Usage:   "decide and generate but never post",
					EnvVars: []string{"MOLTBOOK_DRY_RUN"},
				},
				&cli.BoolFlag{
					Name:    "require-claimed",
					Usage:   "idle until the account is claimed",
					EnvVars: []string{"MOLTBOOK_REQUIRE_CLAIMED"},
				},
				&cli.StringFlag{
					Name:    "metrics-addr",
					Usage:   "serve Prometheus metrics on this address",
					EnvVars: []string{"MOLTBOOK_METRICS_ADDR"},
				},
			},
			Action: runBot,
		},
		{
			Name:      "solve",
			Usage:     "solve a verification challenge text and print the answer",
			ArgsUsage: "<challenge text>",
			Action:    runSolve,
		},
		{
			Name:   "state",
			Usage:  "print the persisted bot state",
			Action: runState,
		},
		{
			Name:   "self-test",
			Usage:  "generate one sample reply with the configured generator",
			Action: runSelfTest,
		},
		{
			Name:  "post",
			Usage: "publish a new post",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "title", Required: true},
				&cli.StringFlag{Name: "content", Required: true},
				&cli.StringFlag{Name: "to", Usage: "community to post in (defaults to --submolt or general)"},
			},
			Action: runPost,
		},
		{
			Name:  "activity",
			Usage: "print the most recent activity log entries",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "n", Value: 20, Usage: "number of entries"},
			},
			Action: runActivity,
		},
	}

	return app.Run(args)
}

func configureLogger(cctx *cli.Context) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cctx.String("log-level"))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cctx.Bool("log-json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
