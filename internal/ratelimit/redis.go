package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix = "ratelimit:"

	// KEYS[1] counter key, ARGV[1] window in ms. Returns {count, ttl_ms}.
	fixedWindowScript = `
		local current = redis.call('INCR', KEYS[1])
		if current == 1 then
			redis.call('PEXPIRE', KEYS[1], ARGV[1])
		end
		local ttl = redis.call('PTTL', KEYS[1])
		if ttl < 0 then
			redis.call('PEXPIRE', KEYS[1], ARGV[1])
			ttl = tonumber(ARGV[1])
		end
		return {current, ttl}
	`
)

type RedisLimiter struct {
	client *redis.Client

	mu  sync.RWMutex
	sha string
}

// NewRedisLimiter pings the server and preloads the counting script.
func NewRedisLimiter(ctx context.Context, client *redis.Client) (*RedisLimiter, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	l := &RedisLimiter{client: client}
	if err := l.loadScript(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *RedisLimiter) loadScript(ctx context.Context) error {
	sha, err := l.client.ScriptLoad(ctx, fixedWindowScript).Result()
	if err != nil {
		return fmt.Errorf("load rate limit script: %w", err)
	}
	l.mu.Lock()
	l.sha = sha
	l.mu.Unlock()
	return nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, window time.Duration, max int) (Decision, error) {
	keys := []string{keyPrefix + key}
	windowMs := window.Milliseconds()

	l.mu.RLock()
	sha := l.sha
	l.mu.RUnlock()

	result, err := l.client.EvalSha(ctx, sha, keys, windowMs).Result()
	if err != nil && strings.HasPrefix(err.Error(), "NOSCRIPT") {
		// script cache was flushed (restart/failover); load it again
		if err := l.loadScript(ctx); err != nil {
			return Decision{}, err
		}
		l.mu.RLock()
		sha = l.sha
		l.mu.RUnlock()
		result, err = l.client.EvalSha(ctx, sha, keys, windowMs).Result()
	}
	if err != nil {
		return Decision{}, fmt.Errorf("run rate limit script: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return Decision{}, fmt.Errorf("unexpected rate limit script result %T", result)
	}
	count, ok1 := values[0].(int64)
	ttl, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		return Decision{}, fmt.Errorf("unexpected rate limit script values %v", values)
	}
	return decide(int(count), time.Duration(ttl)*time.Millisecond, max), nil
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
