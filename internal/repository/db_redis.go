// Package repository contains the repository layer for the Profile API
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/nsvirk/profileapi/internal/config"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis connects to Redis and checks the connection
func ConnectRedis(cfg *config.Config) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return redisClient, nil
}
