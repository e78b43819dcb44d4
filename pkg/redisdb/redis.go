package redisdb

import (
	"context"
	"fmt"
	"time"

	"github.com/Nzyazin/wallettx/internal/core/logger"
	"github.com/Nzyazin/wallettx/pkg/config"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	log logger.Logger
	*redis.Client
}

func NewRedisClient(cfg config.RedisConfig, log logger.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	log.Info("Connected to redis", logger.StringField("addr", cfg.Addr))
	return &Client{log: log, Client: rdb}, nil
}

func (c *Client) Close() error {
	c.log.Info("Closing redis connection")
	return c.Client.Close()
}
