package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

// RedisRelay пересылает события через Redis pub/sub, чтобы консоли
// любого экземпляра сервиса видели переходы, зафиксированные другими.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *logrus.Logger
}

func NewRedisRelay(client *redis.Client, channel string, hub *Hub, logger *logrus.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		hub:     hub,
		logger:  logger,
	}
}

// Publish отправляет событие в канал Redis
func (r *RedisRelay) Publish(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event to redis: %w", err)
	}
	return nil
}

// Start подписывается на канал и передает события в локальный hub
func (r *RedisRelay) Start(ctx context.Context) {
	pubsub := r.client.Subscribe(ctx, r.channel)
	go func() {
		defer pubsub.Close()
		log := r.logger.WithFields(logrus.Fields{"service": "realtime", "channel": r.channel})
		log.Info("Redis relay started")

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				log.Info("Redis relay stopped")
				return
			case msg, ok := <-ch:
				if !ok {
					log.Warn("Redis relay channel closed")
					return
				}
				var event models.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.WithError(err).Error("Failed to unmarshal relayed event")
					continue
				}
				_ = r.hub.Publish(ctx, event)
			}
		}
	}()
}
