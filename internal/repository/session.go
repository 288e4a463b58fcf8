package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/shenikar/resq_dispatch/internal/service"
)

// sessionMaxMessages ограничивает длину истории одной сессии
const sessionMaxMessages = 50

type SessionRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewSessionRepository(redisClient *redis.Client, ttl time.Duration) service.SessionRepository {
	return &SessionRepository{
		redisClient: redisClient,
		ttl:         ttl,
	}
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}

// Append добавляет сообщение и продлевает срок жизни сессии
func (r *SessionRepository) Append(ctx context.Context, sessionID string, msg models.ChatMessage) error {
	val, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal session message: %w", err)
	}
	key := sessionKey(sessionID)
	pipe := r.redisClient.TxPipeline()
	pipe.RPush(ctx, key, val)
	pipe.LTrim(ctx, key, -sessionMaxMessages, -1)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append session message: %w", err)
	}
	return nil
}

// Recent возвращает последние n сообщений в хронологическом порядке
func (r *SessionRepository) Recent(ctx context.Context, sessionID string, n int) ([]models.ChatMessage, error) {
	start := int64(0)
	if n > 0 {
		start = int64(-n)
	}
	raw, err := r.redisClient.LRange(ctx, sessionKey(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	msgs := make([]models.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.redisClient.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
