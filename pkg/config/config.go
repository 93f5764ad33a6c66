// Package config holds the bot's runtime configuration. Values come from an
// optional YAML file and are then overridden by CLI flags and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cpunion/molt-bot/pkg/llm"
	"github.com/cpunion/molt-bot/pkg/moltbook"
	"github.com/cpunion/molt-bot/pkg/policy"
)

// Store kinds.
const (
	StoreFile  = "file"
	StoreRedis = "redis"
)

type Config struct {
	Moltbook MoltbookConfig `yaml:"moltbook"`
	Bot      BotConfig      `yaml:"bot"`
	LLM      LLMConfig      `yaml:"llm"`
	Store    StoreConfig    `yaml:"store"`
	Activity ActivityConfig `yaml:"activity"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type MoltbookConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Submolt           string        `yaml:"submolt"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	VerifyAttempts    int           `yaml:"verify_attempts"`
}

type BotConfig struct {
	Name           string        `yaml:"name"`
	Interval       time.Duration `yaml:"interval"`
	FeedLimit      int           `yaml:"feed_limit"`
	Triggers       []string      `yaml:"triggers"`
	Cooldown       time.Duration `yaml:"cooldown"`
	CooldownScope  string        `yaml:"cooldown_scope"`
	MaxPerDay      int           `yaml:"max_per_day"`
	DryRun         bool          `yaml:"dry_run"`
	TrackMode      string        `yaml:"track_mode"`
	SeenLimit      int           `yaml:"seen_limit"`
	RequireClaimed bool          `yaml:"require_claimed"`
	Subscribe      bool          `yaml:"subscribe"`
	Heartbeat      time.Duration `yaml:"heartbeat"`
	SelfTest       bool          `yaml:"self_test"`
}

type LLMConfig struct {
	Backend       string        `yaml:"backend"`
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	System        string        `yaml:"system"`
	Temperature   float32       `yaml:"temperature"`
	MaxTokens     int           `yaml:"max_tokens"`
	Timeout       time.Duration `yaml:"timeout"`
	FallbackReply string        `yaml:"fallback_reply"`
}

type StoreConfig struct {
	Kind     string `yaml:"kind"`
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	RedisKey string `yaml:"redis_key"`
}

type ActivityConfig struct {
	Dir               string `yaml:"dir"`
	MaxEventsPerShard int    `yaml:"max_events_per_shard"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration that only lacks credentials.
func Default() Config {
	mb := moltbook.DefaultConfig()
	pol := policy.DefaultConfig()
	gen := llm.DefaultConfig()
	return Config{
		Moltbook: MoltbookConfig{
			BaseURL:           mb.BaseURL,
			Timeout:           mb.Timeout,
			RequestsPerSecond: mb.RequestsPerSecond,
			VerifyAttempts:    mb.VerifyAttempts,
		},
		Bot: BotConfig{
			Interval:      5 * time.Minute,
			FeedLimit:     10,
			Triggers:      []string{"?", "how", "why", "thoughts", "anyone"},
			Cooldown:      pol.Cooldown,
			CooldownScope: string(pol.CooldownScope),
			MaxPerDay:     pol.MaxPerDay,
			TrackMode:     string(pol.TrackMode),
			SeenLimit:     pol.SeenLimit,
			Subscribe:     true,
			Heartbeat:     time.Hour,
			SelfTest:      true,
		},
		LLM: LLMConfig{
			Backend:     gen.Backend,
			Model:       gen.Model,
			BaseURL:     gen.BaseURL,
			System:      gen.System,
			Temperature: gen.Temperature,
			MaxTokens:   gen.MaxTokens,
			Timeout:     gen.Timeout,
		},
		Store: StoreConfig{
			Kind: StoreFile,
			Path: "molt_state.json",
		},
		Activity: ActivityConfig{
			Dir:               "data/activity",
			MaxEventsPerShard: 500,
		},
	}
}

// LoadFile reads a YAML file over Default. Keys absent from the file keep
// their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports configuration errors that must stop the bot before its
// first cycle.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Moltbook.APIKey) == "" {
		errs = append(errs, errors.New("moltbook API key is required (MOLTBOOK_API_KEY)"))
	}
	if strings.TrimSpace(c.Bot.Name) == "" {
		errs = append(errs, errors.New("bot name is required (MOLTBOOK_BOT_NAME)"))
	}
	switch policy.CooldownScope(c.Bot.CooldownScope) {
	case policy.ScopeGlobal, policy.ScopePerPost:
	default:
		errs = append(errs, fmt.Errorf("unknown cooldown scope %q", c.Bot.CooldownScope))
	}
	switch policy.TrackMode(c.Bot.TrackMode) {
	case policy.TrackCursor, policy.TrackRecent, policy.TrackReplied:
	default:
		errs = append(errs, fmt.Errorf("unknown track mode %q", c.Bot.TrackMode))
	}
	switch c.Store.Kind {
	case StoreFile:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store path is required for the file store"))
		}
	case StoreRedis:
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("redis URL is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store kind %q", c.Store.Kind))
	}
	if c.Bot.Interval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	return errors.Join(errs...)
}

// Policy returns the eligibility settings.
func (c Config) Policy() policy.Config {
	return policy.Config{
		Self:          c.Bot.Name,
		Cooldown:      c.Bot.Cooldown,
		CooldownScope: policy.CooldownScope(c.Bot.CooldownScope),
		MaxPerDay:     c.Bot.MaxPerDay,
		DryRun:        c.Bot.DryRun,
		TrackMode:     policy.TrackMode(c.Bot.TrackMode),
		SeenLimit:     c.Bot.SeenLimit,
	}
}

// Client returns the Moltbook client settings.
func (c Config) Client() moltbook.Config {
	cfg := moltbook.DefaultConfig()
	cfg.BaseURL = c.Moltbook.BaseURL
	cfg.APIKey = c.Moltbook.APIKey
	cfg.Submolt = c.Moltbook.Submolt
	if c.Moltbook.Timeout > 0 {
		cfg.Timeout = c.Moltbook.Timeout
	}
	cfg.RequestsPerSecond = c.Moltbook.RequestsPerSecond
	if c.Moltbook.VerifyAttempts > 0 {
		cfg.VerifyAttempts = c.Moltbook.VerifyAttempts
	}
	return cfg
}

// Generator returns the text generator settings.
func (c Config) Generator() llm.Config {
	return llm.Config{
		Backend:     c.LLM.Backend,
		Model:       c.LLM.Model,
		BaseURL:     c.LLM.BaseURL,
		APIKey:      c.LLM.APIKey,
		System:      c.LLM.System,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
		Timeout:     c.LLM.Timeout,
	}
}
