package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taskmaster/taskhub/internal/infrastructure/config"
	"github.com/taskmaster/taskhub/internal/infrastructure/logger"
	"github.com/taskmaster/taskhub/internal/ports"
)

// NewRedisClient creates a client from configuration and checks connectivity.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// envelope is the payload carried on the per-user channels.
type envelope struct {
	Type       ports.EventType `json:"event"`
	UserID     uuid.UUID       `json:"user_id"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// RedisSink publishes each event on the channel of the user it targets.
type RedisSink struct {
	client *redis.Client
	prefix string
}

// NewRedisSink creates a sink publishing on prefix+userID channels.
func NewRedisSink(client *redis.Client, prefix string) *RedisSink {
	return &RedisSink{client: client, prefix: prefix}
}

// Deliver implements Sink.
func (s *RedisSink) Deliver(ctx context.Context, event ports.TaskEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := s.client.Publish(ctx, s.prefix+event.UserID.String(), payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// RedisRelay forwards events from every user channel to a local sink, normally the Hub.
type RedisRelay struct {
	client *redis.Client
	prefix string
	target Sink
	logger *logger.Logger
}

// NewRedisRelay creates a relay for channels starting with prefix.
func NewRedisRelay(client *redis.Client, prefix string, target Sink, log *logger.Logger) *RedisRelay {
	return &RedisRelay{
		client: client,
		prefix: prefix,
		target: target,
		logger: log.WithComponent("redis_relay"),
	}
}

// Run subscribes and relays until ctx is cancelled. ready, when non-nil, is closed once the
// subscription is active.
func (r *RedisRelay) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := r.client.PSubscribe(ctx, r.prefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s*: %w", r.prefix, err)
	}
	if ready != nil {
		close(ready)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.relay(ctx, msg)
		}
	}
}

func (r *RedisRelay) relay(ctx context.Context, msg *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		r.logger.Warnw("Discarding malformed event", "channel", msg.Channel, "error", err)
		return
	}

	// The channel name is authoritative for routing.
	if id, err := uuid.Parse(strings.TrimPrefix(msg.Channel, r.prefix)); err == nil {
		env.UserID = id
	}

	event := ports.TaskEvent{
		Type:       env.Type,
		UserID:     env.UserID,
		Data:       env.Data,
		OccurredAt: env.OccurredAt,
	}
	if err := r.target.Deliver(ctx, event); err != nil {
		r.logger.Warnw("Failed to relay event", "channel", msg.Channel, "error", err)
	}
}
