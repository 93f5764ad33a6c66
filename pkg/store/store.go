// Package store persists the bot's PolicyState.
package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cpunion/molt-bot/pkg/policy"
)

// ErrNotFound is returned by Load when nothing has been persisted yet.
var ErrNotFound = errors.New("state not found")

// Store loads and saves the full PolicyState. Save replaces the previous value.
type Store interface {
	Load(ctx context.Context) (policy.PolicyState, error)
	Save(ctx context.Context, state policy.PolicyState) error
}

// LoadOrDefault loads the persisted state, falling back to the default state
// when it is missing or unreadable. It never fails.
func LoadOrDefault(ctx context.Context, s Store, now time.Time, logger *slog.Logger) policy.PolicyState {
	if logger == nil {
		logger = slog.Default()
	}
	state, err := s.Load(ctx)
	switch {
	case err == nil:
		if state.StartedAt.IsZero() {
			state.StartedAt = now.UTC()
		}
		if state.Date == "" {
			state.Date = now.UTC().Format(policy.DateLayout)
		}
		return state.Normalize()
	case errors.Is(err, ErrNotFound):
		logger.Info("no persisted state, starting fresh")
	default:
		logger.Warn("state unavailable, continuing with default state", "err", err)
	}
	return policy.DefaultState(now)
}
