package config

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis initializes the optional Redis client and lock factory.
// Redis is a best-effort optimization only (import serialization hints);
// correctness never depends on it. Returns nils when REDIS_ADDRESS is unset
// or Redis is unreachable.
func ConnectRedis() (*redis.Client, *redislock.Client) {
	address := strings.TrimSpace(os.Getenv("REDIS_ADDRESS"))
	if address == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: address,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Printf("redis unreachable at %s, continuing without it: %v", address, err)
		_ = client.Close()
		return nil, nil
	}
	return client, redislock.New(client)
}
