package notifications

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"dentaldir/internal/config"
)

const userAgent = "dentaldir/0.1.0"

// Event identifies a job lifecycle milestone.
type Event string

const (
	EventJobStarted     Event = "job_started"
	EventJobProgress    Event = "job_progress"
	EventJobCompleted   Event = "job_completed"
	EventPageRolledBack Event = "page_rolled_back"
)

// Payload carries event fields. Keys are camelCase to match the JSON
// consumers on the dashboard side.
type Payload map[string]any

// Service publishes job events. Implementations must be safe for concurrent use.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService assembles the configured transports. rdb may be nil; with
// neither Redis nor an ntfy topic the returned service is a no-op.
func NewService(cfg *config.Config, rdb *redis.Client) Service {
	var services []Service
	if rdb != nil {
		channel := strings.TrimSpace(cfg.Redis.Channel)
		if channel == "" {
			channel = defaultChannel
		}
		services = append(services, &redisService{client: rdb, channel: channel})
	}
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		services = append(services, &ntfyService{
			endpoint: topic,
			client:   &http.Client{Timeout: timeout},
		})
	}
	switch len(services) {
	case 0:
		return noopService{}
	case 1:
		return services[0]
	default:
		return fanout(services)
	}
}

type fanout []Service

// Publish delivers to every transport and joins their errors.
func (f fanout) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, svc := range f {
		if err := svc.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// Publish sends event through svc and logs failures instead of returning
// them. A nil svc is ignored.
func Publish(ctx context.Context, svc Service, logger *slog.Logger, event Event, payload Payload) {
	if svc == nil {
		return
	}
	if err := svc.Publish(ctx, event, payload); err != nil && logger != nil {
		logger.Warn("notification publish failed",
			slog.String("event_type", string(event)),
			slog.Any("error", err),
		)
	}
}
