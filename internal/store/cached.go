package store

import (
	"context"
	"errors"

	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/models"
)

// Cached reads through a cache in front of a primary store. Cache failures are logged, never
// returned.
type Cached struct {
	cache   Store
	primary Store
	logger  logger.Logger
}

func NewCached(cache, primary Store, log logger.Logger) *Cached {
	return &Cached{
		cache:   cache,
		primary: primary,
		logger:  log.WithFields(map[string]interface{}{"component": "session-store"}),
	}
}

func (c *Cached) LoadIntake(ctx context.Context, sessionID string) (*models.IntakeState, error) {
	state, err := c.cache.LoadIntake(ctx, sessionID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		c.logger.Warn("session cache read failed", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
	}

	state, err = c.primary.LoadIntake(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SaveIntake(ctx, sessionID, "", *state); err != nil {
		c.logger.Warn("session cache backfill failed", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
	}
	return state, nil
}

func (c *Cached) SaveIntake(ctx context.Context, sessionID, userID string, state models.IntakeState) error {
	if err := c.primary.SaveIntake(ctx, sessionID, userID, state); err != nil {
		return err
	}
	if err := c.cache.SaveIntake(ctx, sessionID, userID, state); err != nil {
		c.logger.Warn("session cache write failed", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
	}
	return nil
}

func (c *Cached) AppendMessage(ctx context.Context, msg models.ChatMessage) error {
	return c.primary.AppendMessage(ctx, msg)
}

// Compose picks the store for the configured backends. It returns nil when neither is set.
func Compose(pg *Postgres, rd *Redis, log logger.Logger) Store {
	switch {
	case pg != nil && rd != nil:
		return NewCached(rd, pg, log)
	case pg != nil:
		return pg
	case rd != nil:
		return rd
	default:
		return nil
	}
}
