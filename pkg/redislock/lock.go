// Package redislock 提供基于 Redis 的分布式锁
package redislock

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockNotHeld 锁未持有
	ErrLockNotHeld = errors.New("lock not held")
	// ErrLockAcquireFailed 获取锁失败
	ErrLockAcquireFailed = errors.New("failed to acquire lock")
)

// releaseScript 仅释放自己持有的锁
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// extendScript 仅延长自己持有的锁
const extendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`

// Options 锁选项
type Options struct {
	// Expiration 锁过期时间
	Expiration time.Duration
	// RetryInterval 重试间隔
	RetryInterval time.Duration
	// MaxRetries 最大重试次数 (-1 表示无限重试)
	MaxRetries int
}

// DefaultOptions 默认锁选项
func DefaultOptions() *Options {
	return &Options{
		Expiration:    30 * time.Second,
		RetryInterval: 100 * time.Millisecond,
		MaxRetries:    30,
	}
}

// Lock 分布式锁
type Lock struct {
	client   redis.UniversalClient
	key      string
	value    string
	options  *Options
	acquired int32
}

// New 创建分布式锁
func New(client redis.UniversalClient, key string, opts *Options) *Lock {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Lock{
		client:  client,
		key:     key,
		value:   uuid.New().String(),
		options: opts,
	}
}

// TryAcquire 尝试获取锁 (非阻塞)
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	if atomic.LoadInt32(&l.acquired) == 1 {
		return true, nil // 已持有
	}

	ok, err := l.client.SetNX(ctx, l.key, l.value, l.options.Expiration).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock failed: %w", err)
	}
	if ok {
		atomic.StoreInt32(&l.acquired, 1)
	}
	return ok, nil
}

// Acquire 获取锁 (带重试)
func (l *Lock) Acquire(ctx context.Context) error {
	retries := 0
	for {
		ok, err := l.TryAcquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		retries++
		if l.options.MaxRetries >= 0 && retries > l.options.MaxRetries {
			return ErrLockAcquireFailed
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.options.RetryInterval):
			// 继续重试
		}
	}
}

// Release 释放锁
func (l *Lock) Release(ctx context.Context) error {
	if atomic.LoadInt32(&l.acquired) == 0 {
		return ErrLockNotHeld
	}

	result, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.value).Int64()
	if err != nil {
		return fmt.Errorf("release lock failed: %w", err)
	}

	atomic.StoreInt32(&l.acquired, 0)

	if result == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Extend 延长锁过期时间
func (l *Lock) Extend(ctx context.Context, extension time.Duration) error {
	if atomic.LoadInt32(&l.acquired) == 0 {
		return ErrLockNotHeld
	}

	result, err := l.client.Eval(ctx, extendScript, []string{l.key}, l.value, extension.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock failed: %w", err)
	}
	if result == 0 {
		atomic.StoreInt32(&l.acquired, 0)
		return ErrLockNotHeld
	}
	return nil
}
