package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"oplugy/models"

	"github.com/go-redis/redis/v8"
)

const feedPrefix = "checkout:notices:"

// NotificationService queues notices for a tab until the storefront collects them.
type NotificationService interface {
	Push(ctx context.Context, tab string, notice models.Notice) error
	Drain(ctx context.Context, tab string) ([]models.Notice, error)
}

// DefaultNotificationService keeps each tab's notices in a Redis list.
type DefaultNotificationService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDefaultNotificationService(client *redis.Client, ttl time.Duration) (*DefaultNotificationService, error) {
	if client == nil {
		return nil, fmt.Errorf("notification service initialization error: redis client is nil")
	}
	return &DefaultNotificationService{client: client, ttl: ttl}, nil
}

func feedKey(tab string) string {
	return feedPrefix + tab
}

func (s *DefaultNotificationService) Push(ctx context.Context, tab string, notice models.Notice) error {
	if notice.CreatedAt.IsZero() {
		notice.CreatedAt = time.Now()
	}
	data, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("Push: failed to marshal notice: %w", err)
	}
	key := feedKey(tab)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("Push: failed to store notice for %s: %w", tab, err)
	}
	return nil
}

// Drain returns and removes every pending notice of tab, oldest first.
func (s *DefaultNotificationService) Drain(ctx context.Context, tab string) ([]models.Notice, error) {
	key := feedKey(tab)
	var items *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		items = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Drain: failed to read notices for %s: %w", tab, err)
	}

	notices := make([]models.Notice, 0, len(items.Val()))
	for _, raw := range items.Val() {
		var n models.Notice
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			continue
		}
		notices = append(notices, n)
	}
	return notices, nil
}
