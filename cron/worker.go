package cron

import (
	"context"
	"time"

	"oplugy/config"
	"oplugy/services/notification"
	"oplugy/services/tasks"
	"oplugy/utils"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// QueueRedisOpt is the asynq connection for the fulfillment queue.
func QueueRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// InitFulfillmentWorker runs the async worker in background. The returned
// server must be shut down by the caller; the connection monitor stops with ctx.
func InitFulfillmentWorker(ctx context.Context, feed notification.NotificationService) *asynq.Server {
	logger := utils.GetLogger()

	srv := asynq.NewServer(
		QueueRedisOpt(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeFulfillmentNotify, HandleFulfillmentTask(feed, logger))

	monitor := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	go func() {
		defer monitor.Close()
		monitorRedisConnection(ctx, monitor, 10*time.Second, logger)
	}()

	// Start async worker with retry logic
	go func() {
		logger.Info("[FulfillmentWorker] Starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Start(mux); err != nil {
				logger.Warn("[FulfillmentWorker] Failed to start worker",
					zap.Int("attempt", attempts),
					zap.Int("maxAttempts", maxAttempts),
					zap.Error(err),
				)
				if attempts == maxAttempts {
					logger.Fatal("[FulfillmentWorker] Max retry attempts reached. Exiting.")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()
	return srv
}

// HandleFulfillmentTask pushes the success notice of a processed order to its tab.
func HandleFulfillmentTask(feed notification.NotificationService, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		f, err := tasks.ParseFulfillment(task)
		if err != nil {
			logger.Error("[FulfillmentHandler] Invalid payload", zap.Error(err))
			// A malformed payload never succeeds on retry.
			return asynq.SkipRetry
		}

		logger.Info("[FulfillmentHandler] Order processed",
			zap.String("reference", f.Reference),
			zap.String("service", string(f.Draft.Service)),
			zap.Float64("total", f.Total),
		)

		if err := feed.Push(ctx, f.TabID, notification.FulfillmentNotice(f)); err != nil {
			logger.Error("[FulfillmentHandler] Failed to push notice", zap.String("reference", f.Reference), zap.Error(err))
			return err
		}
		return nil
	}
}

// monitorRedisConnection pings the queue Redis every interval until ctx is done.
func monitorRedisConnection(ctx context.Context, client *redis.Client, every time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if err := client.Ping(ctx).Err(); err != nil && ctx.Err() == nil {
			logger.Warn("[FulfillmentWorker] Redis connection lost", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
