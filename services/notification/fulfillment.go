package notification

import (
	"context"
	"fmt"
	"time"

	"oplugy/models"
	"oplugy/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Notifier announces a paid order once it has been processed.
type Notifier interface {
	Notify(ctx context.Context, f models.Fulfillment) error
}

// Enqueuer is the part of *asynq.Client the queue notifier uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueNotifier schedules the success notice on the task queue after Delay.
type QueueNotifier struct {
	Client Enqueuer
	Delay  time.Duration
	Logger *zap.Logger
}

func (n *QueueNotifier) Notify(ctx context.Context, f models.Fulfillment) error {
	task, opts, err := tasks.NewFulfillmentTask(f, n.Delay)
	if err != nil {
		return fmt.Errorf("failed to build fulfillment task: %w", err)
	}
	info, err := n.Client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("failed to enqueue fulfillment task: %w", err)
	}
	if n.Logger != nil {
		n.Logger.Info("Fulfillment notification scheduled",
			zap.String("reference", f.Reference),
			zap.String("taskId", info.ID),
			zap.Duration("delay", n.Delay),
		)
	}
	return nil
}

// InlineNotifier pushes the success notice to the tab's feed in process, after
// Delay when one is set. Pending pushes are lost if the process exits.
type InlineNotifier struct {
	Feed   NotificationService
	Delay  time.Duration
	Logger *zap.Logger
}

func (n *InlineNotifier) Notify(ctx context.Context, f models.Fulfillment) error {
	if n.Delay <= 0 {
		return n.Feed.Push(ctx, f.TabID, FulfillmentNotice(f))
	}
	bg := context.WithoutCancel(ctx)
	time.AfterFunc(n.Delay, func() {
		pushCtx, cancel := context.WithTimeout(bg, 5*time.Second)
		defer cancel()
		if err := n.Feed.Push(pushCtx, f.TabID, FulfillmentNotice(f)); err != nil && n.Logger != nil {
			n.Logger.Error("Failed to push delayed fulfillment notice", zap.String("reference", f.Reference), zap.Error(err))
		}
	})
	return nil
}

// FulfillmentNotice is the notice shown once an order has been processed.
func FulfillmentNotice(f models.Fulfillment) models.Notice {
	return models.SuccessNotice("payment_successful", f.SuccessMessage())
}
