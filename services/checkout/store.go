package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"oplugy/models"

	"github.com/go-redis/redis/v8"
)

const sessionPrefix = "checkout:funnel:"

const maxTxRetries = 10

// ErrSessionNotFound is returned for expired, closed or foreign funnel sessions.
var ErrSessionNotFound = errors.New("checkout: funnel session not found")

// errSkip aborts an update without writing.
var errSkip = errors.New("checkout: skip update")

// SessionStore persists funnel sessions.
type SessionStore interface {
	Create(ctx context.Context, sess *models.FunnelSession) error
	Get(ctx context.Context, id string) (*models.FunnelSession, error)
	// Update applies mutate atomically. A mutate returning errSkip leaves the
	// stored session untouched and still returns it.
	Update(ctx context.Context, id string, mutate func(*models.FunnelSession) error) (*models.FunnelSession, error)
	Delete(ctx context.Context, id string) error
}

type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return sessionPrefix + id
}

func (s *RedisSessionStore) Create(ctx context.Context, sess *models.FunnelSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal funnel session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, sessionKey(sess.SessionID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store funnel session: %w", err)
	}
	if !ok {
		return fmt.Errorf("funnel session %s already exists", sess.SessionID)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*models.FunnelSession, error) {
	return loadSession(ctx, s.client, sessionKey(id))
}

func (s *RedisSessionStore) Update(ctx context.Context, id string, mutate func(*models.FunnelSession) error) (*models.FunnelSession, error) {
	key := sessionKey(id)
	var result *models.FunnelSession

	txf := func(tx *redis.Tx) error {
		sess, err := loadSession(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := mutate(sess); err != nil {
			if errors.Is(err, errSkip) {
				result = sess
				return nil
			}
			return err
		}
		sess.UpdatedAt = time.Now()
		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("failed to marshal funnel session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			// Every write refreshes the idle timeout.
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err == nil {
			result = sess
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("funnel session %s contended, giving up", id)
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete funnel session: %w", err)
	}
	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func loadSession(ctx context.Context, c getter, key string) (*models.FunnelSession, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read funnel session: %w", err)
	}
	var sess models.FunnelSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse funnel session: %w", err)
	}
	if sess.Fields == nil {
		sess.Fields = map[models.Field]string{}
	}
	if sess.Loading == nil {
		sess.Loading = map[models.CatalogKey]bool{}
	}
	if sess.Generations == nil {
		sess.Generations = map[models.CatalogKey]uint64{}
	}
	return &sess, nil
}
