package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"oplugy/models"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "checkout:handoff:"

const maxTxRetries = 10

var (
	// ErrAbsent is returned when a tab has no draft waiting for payment.
	ErrAbsent = errors.New("handoff: no draft for this session")
	// ErrAlreadyPresented guards against sending the same draft to the gateway twice.
	ErrAlreadyPresented = errors.New("handoff: draft already presented to the gateway")
	// ErrAttemptMismatch is returned when a reference does not match the open attempt.
	ErrAttemptMismatch = errors.New("handoff: reference does not match the open attempt")
)

// Slot is what a tab's handoff key holds.
type Slot struct {
	Draft       models.OrderDraft `json:"draft"`
	Reference   string            `json:"reference,omitempty"`
	PresentedAt *time.Time        `json:"presentedAt,omitempty"`
	WrittenAt   time.Time         `json:"writtenAt"`
}

// Presented reports whether a gateway attempt is open for the draft.
func (s Slot) Presented() bool {
	return s.Reference != ""
}

// Store is the tab-scoped single-slot handoff between a funnel and the payment stage.
type Store interface {
	Write(ctx context.Context, tab string, draft models.OrderDraft) error
	Read(ctx context.Context, tab string) (*Slot, error)
	Clear(ctx context.Context, tab string) error
	Present(ctx context.Context, tab, reference string) error
	Release(ctx context.Context, tab, reference string) error
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func slotKey(tab string) string {
	return keyPrefix + tab
}

// Write replaces the tab's slot. A fresh write always reopens the gateway attempt.
func (s *RedisStore) Write(ctx context.Context, tab string, draft models.OrderDraft) error {
	if err := draft.Validate(); err != nil {
		return fmt.Errorf("handoff: invalid draft: %w", err)
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now()
	}
	data, err := json.Marshal(Slot{Draft: draft, WrittenAt: time.Now()})
	if err != nil {
		return fmt.Errorf("handoff: failed to marshal slot: %w", err)
	}
	if err := s.client.Set(ctx, slotKey(tab), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("handoff: failed to write slot: %w", err)
	}
	return nil
}

func (s *RedisStore) Read(ctx context.Context, tab string) (*Slot, error) {
	return readSlot(ctx, s.client, slotKey(tab))
}

func (s *RedisStore) Clear(ctx context.Context, tab string) error {
	if err := s.client.Del(ctx, slotKey(tab)).Err(); err != nil {
		return fmt.Errorf("handoff: failed to clear slot: %w", err)
	}
	return nil
}

// Present opens a gateway attempt under reference.
func (s *RedisStore) Present(ctx context.Context, tab, reference string) error {
	return s.update(ctx, tab, func(slot *Slot) error {
		if slot.Presented() {
			return ErrAlreadyPresented
		}
		now := time.Now()
		slot.Reference = reference
		slot.PresentedAt = &now
		return nil
	})
}

// Release closes the attempt opened under reference so the draft can be paid again.
func (s *RedisStore) Release(ctx context.Context, tab, reference string) error {
	return s.update(ctx, tab, func(slot *Slot) error {
		if slot.Reference != reference {
			return ErrAttemptMismatch
		}
		slot.Reference = ""
		slot.PresentedAt = nil
		return nil
	})
}

func (s *RedisStore) update(ctx context.Context, tab string, mutate func(*Slot) error) error {
	key := slotKey(tab)
	txf := func(tx *redis.Tx) error {
		slot, err := readSlot(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := mutate(slot); err != nil {
			return err
		}
		data, err := json.Marshal(slot)
		if err != nil {
			return fmt.Errorf("handoff: failed to marshal slot: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("handoff: slot %s contended, giving up", tab)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readSlot(ctx context.Context, c getter, key string) (*Slot, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrAbsent
	}
	if err != nil {
		return nil, fmt.Errorf("handoff: failed to read slot: %w", err)
	}
	var slot Slot
	if err := json.Unmarshal(data, &slot); err != nil {
		return nil, fmt.Errorf("handoff: corrupt slot: %w", err)
	}
	return &slot, nil
}
