// File: utils/cache.go
package utils

import (
	"context"
	"log"
	"time"

	"oplugy/config"

	"github.com/go-redis/redis/v8"
)

var (
	// SessionClient backs funnel sessions, handoff slots and notice feeds.
	SessionClient *redis.Client
)

// InitRedis initializes the session Redis client using the DB from AppConfig.
func InitRedis() {
	SessionClient = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisSessionDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := SessionClient.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis (Session): %v", err)
	}
}

// GetSessionClient returns the session Redis client.
func GetSessionClient() *redis.Client {
	if SessionClient == nil {
		InitRedis()
	}
	return SessionClient
}
