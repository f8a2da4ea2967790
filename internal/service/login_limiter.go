package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smms/internal/clock"
)

// LoginLimitRule 登录失败限流规则：Window 内失败 MaxAttempts 次后锁定 Block 时长。
type LoginLimitRule struct {
	Window      time.Duration
	MaxAttempts int
	Block       time.Duration
}

// DefaultLoginLimitRule 5 分钟内失败 5 次锁定 15 分钟
var DefaultLoginLimitRule = LoginLimitRule{
	Window:      5 * time.Minute,
	MaxAttempts: 5,
	Block:       15 * time.Minute,
}

func (r LoginLimitRule) normalize() LoginLimitRule {
	if r.Window <= 0 {
		r.Window = DefaultLoginLimitRule.Window
	}
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = DefaultLoginLimitRule.MaxAttempts
	}
	if r.Block <= 0 {
		r.Block = DefaultLoginLimitRule.Block
	}
	return r
}

// LoginLimitStatus 描述某个 key 的限流状态
type LoginLimitStatus struct {
	Locked     bool
	RetryAfter time.Duration
	Remaining  int
}

// LoginLimiter 记录登录失败并判断是否锁定
type LoginLimiter interface {
	Check(ctx context.Context, key string) (LoginLimitStatus, error)
	Fail(ctx context.Context, key string) (LoginLimitStatus, error)
	Reset(ctx context.Context, key string) error
}

// LoginLimitKey 以邮箱与客户端 IP 组成限流 key
func LoginLimitKey(email, clientIP string) string {
	return fmt.Sprintf("%s|%s", strings.ToLower(strings.TrimSpace(email)), strings.TrimSpace(clientIP))
}

type loginAttempt struct {
	count       int
	firstFailed time.Time
	lockedUntil time.Time
}

// MemoryLoginLimiter 进程内限流实现，单实例部署时使用
type MemoryLoginLimiter struct {
	mu       sync.Mutex
	rule     LoginLimitRule
	clock    clock.Clock
	attempts map[string]*loginAttempt
}

// NewMemoryLoginLimiter 创建进程内限流器
func NewMemoryLoginLimiter(rule LoginLimitRule, clk clock.Clock) *MemoryLoginLimiter {
	if clk == nil {
		clk = clock.System{}
	}
	return &MemoryLoginLimiter{
		rule:     rule.normalize(),
		clock:    clk,
		attempts: make(map[string]*loginAttempt),
	}
}

// Check 判断 key 当前是否处于锁定状态
func (l *MemoryLoginLimiter) Check(_ context.Context, key string) (LoginLimitStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	record := l.current(key, now)
	if record == nil {
		return LoginLimitStatus{Remaining: l.rule.MaxAttempts}, nil
	}
	if now.Before(record.lockedUntil) {
		return LoginLimitStatus{Locked: true, RetryAfter: record.lockedUntil.Sub(now)}, nil
	}
	return LoginLimitStatus{Remaining: l.rule.MaxAttempts - record.count}, nil
}

// Fail 记录一次失败，达到上限时锁定
func (l *MemoryLoginLimiter) Fail(_ context.Context, key string) (LoginLimitStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	record := l.current(key, now)
	if record == nil {
		record = &loginAttempt{firstFailed: now}
		l.attempts[key] = record
	}
	if now.Before(record.lockedUntil) {
		return LoginLimitStatus{Locked: true, RetryAfter: record.lockedUntil.Sub(now)}, nil
	}

	record.count++
	if record.count >= l.rule.MaxAttempts {
		record.lockedUntil = now.Add(l.rule.Block)
		return LoginLimitStatus{Locked: true, RetryAfter: l.rule.Block}, nil
	}
	return LoginLimitStatus{Remaining: l.rule.MaxAttempts - record.count}, nil
}

// Reset 登录成功后清除记录
func (l *MemoryLoginLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.attempts, key)
	l.mu.Unlock()
	return nil
}

// current 返回仍然有效的记录，过期记录会被清理。调用方需持有锁。
func (l *MemoryLoginLimiter) current(key string, now time.Time) *loginAttempt {
	record, ok := l.attempts[key]
	if !ok {
		return nil
	}
	if !record.lockedUntil.IsZero() {
		if now.Before(record.lockedUntil) {
			return record
		}
		delete(l.attempts, key)
		return nil
	}
	if now.Sub(record.firstFailed) > l.rule.Window {
		delete(l.attempts, key)
		return nil
	}
	return record
}

var loginFailScript = redis.NewScript(`
local lock_ttl = redis.call("TTL", KEYS[2])
if lock_ttl > 0 then
	return {-1, lock_ttl}
end
local attempts = redis.call("INCR", KEYS[1])
if attempts == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
if attempts >= tonumber(ARGV[3]) then
	redis.call("SET", KEYS[2], "1", "EX", ARGV[2])
	redis.call("DEL", KEYS[1])
	return {attempts, tonumber(ARGV[2])}
end
return {attempts, 0}
`)

// RedisLoginLimiter 基于 Redis 的限流实现，多实例部署共享计数
type RedisLoginLimiter struct {
	client *redis.Client
	prefix string
	rule   LoginLimitRule
}

// NewRedisLoginLimiter 创建 Redis 限流器
func NewRedisLoginLimiter(client *redis.Client, prefix string, rule LoginLimitRule) *RedisLoginLimiter {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "smms"
	}
	return &RedisLoginLimiter{client: client, prefix: prefix, rule: rule.normalize()}
}

func (l *RedisLoginLimiter) attemptsKey(key string) string {
	return fmt.Sprintf("%s:login:attempts:%s", l.prefix, key)
}

func (l *RedisLoginLimiter) lockKey(key string) string {
	return fmt.Sprintf("%s:login:lock:%s", l.prefix, key)
}

// Check 判断 key 当前是否处于锁定状态
func (l *RedisLoginLimiter) Check(ctx context.Context, key string) (LoginLimitStatus, error) {
	ttl, err := l.client.TTL(ctx, l.lockKey(key)).Result()
	if err != nil {
		return LoginLimitStatus{}, err
	}
	if ttl > 0 {
		return LoginLimitStatus{Locked: true, RetryAfter: ttl}, nil
	}

	count, err := l.client.Get(ctx, l.attemptsKey(key)).Int()
	if err != nil && err != redis.Nil {
		return LoginLimitStatus{}, err
	}
	return LoginLimitStatus{Remaining: l.rule.MaxAttempts - count}, nil
}

// Fail 记录一次失败，达到上限时锁定
func (l *RedisLoginLimiter) Fail(ctx context.Context, key string) (LoginLimitStatus, error) {
	result, err := loginFailScript.Run(ctx, l.client,
		[]string{l.attemptsKey(key), l.lockKey(key)},
		int(l.rule.Window/time.Second), int(l.rule.Block/time.Second), l.rule.MaxAttempts,
	).Int64Slice()
	if err != nil {
		return LoginLimitStatus{}, err
	}
	if len(result) < 2 {
		return LoginLimitStatus{}, fmt.Errorf("unexpected login limiter result %v", result)
	}
	if result[1] > 0 {
		return LoginLimitStatus{Locked: true, RetryAfter: time.Duration(result[1]) * time.Second}, nil
	}
	return LoginLimitStatus{Remaining: l.rule.MaxAttempts - int(result[0])}, nil
}

// Reset 登录成功后清除记录
func (l *RedisLoginLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.attemptsKey(key), l.lockKey(key)).Err()
}
