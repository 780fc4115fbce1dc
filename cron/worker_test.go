package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"oplugy/models"
	"oplugy/services/tasks"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type memoryFeed struct {
	pushed map[string][]models.Notice
	err    error
}

func (f *memoryFeed) Push(ctx context.Context, tab string, n models.Notice) error {
	if f.err != nil {
		return f.err
	}
	if f.pushed == nil {
		f.pushed = map[string][]models.Notice{}
	}
	f.pushed[tab] = append(f.pushed[tab], n)
	return nil
}

func (f *memoryFeed) Drain(ctx context.Context, tab string) ([]models.Notice, error) {
	out := f.pushed[tab]
	delete(f.pushed, tab)
	return out, nil
}

func TestHandleFulfillmentTask(t *testing.T) {
	feed := &memoryFeed{}
	handler := HandleFulfillmentTask(feed, zap.NewNop())

	task, _, err := tasks.NewFulfillmentTask(models.Fulfillment{
		TabID:     "tab-1",
		Reference: "OPL-1",
		Draft:     models.OrderDraft{Recipient: "08012345678", Label: "Airtime Top-up"},
	}, 0)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if err := handler(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got := feed.pushed["tab-1"]
	if len(got) != 1 || got[0].Level != models.NoticeSuccess {
		t.Fatalf("unexpected notices %+v", got)
	}
}

func TestHandleFulfillmentTaskBadPayload(t *testing.T) {
	handler := HandleFulfillmentTask(&memoryFeed{}, zap.NewNop())
	err := handler(context.Background(), asynq.NewTask(tasks.TypeFulfillmentNotify, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestHandleFulfillmentTaskPushFailure(t *testing.T) {
	handler := HandleFulfillmentTask(&memoryFeed{err: errors.New("redis down")}, zap.NewNop())
	task, _, _ := tasks.NewFulfillmentTask(models.Fulfillment{TabID: "tab-1", Reference: "OPL-2"}, 0)
	if err := handler(context.Background(), task); err == nil {
		t.Fatal("expected push failure to be retried")
	}
}

func TestMonitorRedisConnectionStopsWithContext(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitorRedisConnection(ctx, client, 5*time.Millisecond, zap.NewNop())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor kept running after its context was cancelled")
	}
}
