// Package ratelimit 提供滑动窗口限流
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter 限流器接口
// key 由调用方构造 (如 award:{account}:{event})
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config 限流配置
type Config struct {
	Window time.Duration // 滑动窗口长度
	Limit  int           // 窗口内允许的最大事件数
	Prefix string        // Redis key 前缀
}

// Lua 脚本：原子操作检查并记录请求
const slidingWindowLua = `
local key = KEYS[1]
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local unique_id = ARGV[4]

-- 清理过期数据
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

-- 检查当前窗口计数
local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, unique_id)
    redis.call('PEXPIRE', key, window)
    return 1
else
    return 0
end
`

// SlidingWindow 基于 Redis ZSET 的滑动窗口限流器
// 多实例共享同一窗口，计数原子递增
type SlidingWindow struct {
	rdb    *redis.Client
	script *redis.Script
	cfg    Config
}

// NewSlidingWindow 创建 Redis 滑动窗口限流器
func NewSlidingWindow(rdb *redis.Client, cfg Config) *SlidingWindow {
	return &SlidingWindow{
		rdb:    rdb,
		script: redis.NewScript(slidingWindowLua),
		cfg:    cfg,
	}
}

// Allow 检查是否允许请求并记录
func (sw *SlidingWindow) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixMilli()

	result, err := sw.script.Run(ctx, sw.rdb, []string{sw.cfg.Prefix + key},
		sw.cfg.Window.Milliseconds(),
		sw.cfg.Limit,
		now,
		uuid.NewString(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("execute lua script: %w", err)
	}

	return result == 1, nil
}

// Remaining 返回剩余配额
func (sw *SlidingWindow) Remaining(ctx context.Context, key string) (int, error) {
	now := time.Now().UnixMilli()
	fullKey := sw.cfg.Prefix + key

	sw.rdb.ZRemRangeByScore(ctx, fullKey, "0", fmt.Sprintf("%d", now-sw.cfg.Window.Milliseconds()))

	count, err := sw.rdb.ZCard(ctx, fullKey).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard: %w", err)
	}

	remaining := sw.cfg.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// MemoryWindow 进程内滑动窗口限流器
// 尽力而为: 重启即清零，多实例各自计数，调用方不得依赖其跨进程一致性
type MemoryWindow struct {
	mu     sync.Mutex
	events map[string][]int64 // key → 毫秒时间戳
	cfg    Config
	nowFn  func() time.Time
}

// NewMemoryWindow 创建进程内滑动窗口限流器
// nowFn 为空时使用 time.Now
func NewMemoryWindow(cfg Config, nowFn func() time.Time) *MemoryWindow {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &MemoryWindow{
		events: make(map[string][]int64),
		cfg:    cfg,
		nowFn:  nowFn,
	}
}

// Allow 检查是否允许请求并记录
func (m *MemoryWindow) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFn().UnixMilli()
	cutoff := now - m.cfg.Window.Milliseconds()

	kept := m.events[key][:0]
	for _, ts := range m.events[key] {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= m.cfg.Limit {
		m.events[key] = kept
		return false, nil
	}

	m.events[key] = append(kept, now)
	return true, nil
}
