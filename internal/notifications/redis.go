package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultChannel = "dentaldir:jobs"

type redisService struct {
	client  *redis.Client
	channel string
}

type redisMessage struct {
	Type      Event     `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// Publish emits every event, including per-item progress, as one JSON message.
func (r *redisService) Publish(ctx context.Context, event Event, payload Payload) error {
	body, err := json.Marshal(redisMessage{Type: event, Timestamp: time.Now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event, r.channel, err)
	}
	return nil
}
