// Package redis holds the Redis-backed implementations of auth interfaces.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"social-go/internal/auth"
)

// 每个被撤销的 jti 一个键，随 token 一起过期。
const blacklistKeyPrefix = "social:bl:jti:"

type redisTokenBlacklist struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisTokenBlacklist returns a TokenBlacklist shared by every process
// that talks to the same Redis, so a logout on the API server also locks the
// token out of the chat server.
func NewRedisTokenBlacklist(client redis.UniversalClient) auth.TokenBlacklist {
	return &redisTokenBlacklist{client: client, now: time.Now}
}

// NewClient builds a client and pings it once.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接 Redis %s 失败: %w", addr, err)
	}
	return client, nil
}

func (b *redisTokenBlacklist) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(b.now())
	if ttl <= 0 {
		return nil // 已过期的 token 本来就无效
	}
	value := strconv.FormatInt(expiresAt.Unix(), 10)
	if err := b.client.Set(ctx, blacklistKeyPrefix+jti, value, ttl).Err(); err != nil {
		return fmt.Errorf("revoke jti %s: %w", jti, err)
	}
	return nil
}

func (b *redisTokenBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, blacklistKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check jti %s: %w", jti, err)
	}
	return n == 1, nil
}
