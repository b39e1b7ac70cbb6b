package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"subscription-intake/internal/models"
)

// maxCachedMessages bounds the transcript list kept per session.
const maxCachedMessages = 200

// Redis keeps intake documents and a bounded transcript under a sliding session TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedis(client *redis.Client, ttl time.Duration, prefix string) *Redis {
	return &Redis{client: client, ttl: ttl, prefix: prefix}
}

func (r *Redis) intakeKey(sessionID string) string {
	return r.prefix + "intake:" + sessionID
}

func (r *Redis) userKey(sessionID string) string {
	return r.prefix + "user:" + sessionID
}

func (r *Redis) messagesKey(sessionID string) string {
	return r.prefix + "messages:" + sessionID
}

func (r *Redis) LoadIntake(ctx context.Context, sessionID string) (*models.IntakeState, error) {
	val, err := r.client.Get(ctx, r.intakeKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get intake: %w", err)
	}

	var state models.IntakeState
	if err := json.Unmarshal(val, &state); err != nil {
		return nil, fmt.Errorf("decode intake: %w", err)
	}
	state.Normalize()
	return &state, nil
}

func (r *Redis) SaveIntake(ctx context.Context, sessionID, userID string, state models.IntakeState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode intake: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.intakeKey(sessionID), doc, r.ttl)
	if userID != "" {
		pipe.Set(ctx, r.userKey(sessionID), userID, r.ttl)
	} else {
		pipe.Expire(ctx, r.userKey(sessionID), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save intake: %w", err)
	}
	return nil
}

func (r *Redis) AppendMessage(ctx context.Context, msg models.ChatMessage) error {
	doc, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	key := r.messagesKey(msg.SessionID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, doc)
	pipe.LTrim(ctx, key, -maxCachedMessages, -1)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append message: %w", err)
	}
	return nil
}

// Messages returns the cached transcript, oldest first.
func (r *Redis) Messages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	vals, err := r.client.LRange(ctx, r.messagesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read messages: %w", err)
	}
	out := make([]models.ChatMessage, 0, len(vals))
	for _, v := range vals {
		var m models.ChatMessage
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// UserID returns the user bound to a session, or "".
func (r *Redis) UserID(ctx context.Context, sessionID string) (string, error) {
	v, err := r.client.Get(ctx, r.userKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}
