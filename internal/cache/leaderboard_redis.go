// Package cache 提供 Redis 读缓存
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/manh-exchange/manh-core/internal/repository"
	"github.com/manh-exchange/manh-core/pkg/logger"
)

// LeaderboardLoader 排行榜回源函数
type LeaderboardLoader func(ctx context.Context, scope, bucketKey string, limit int) ([]*repository.LeaderboardRow, error)

// LeaderboardCache 排行榜 Redis 快照
// ZSET 短 TTL 读穿缓存；Redis 不可用或未命中时直接回源 SQL 聚合
// 分数以 float 存储仅用于展示排序，资金精度以台账为准
type LeaderboardCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	loader LeaderboardLoader
}

// NewLeaderboardCache 创建排行榜缓存
// rdb 可为 nil (纯回源)
func NewLeaderboardCache(rdb *redis.Client, ttl time.Duration, loader LeaderboardLoader) *LeaderboardCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LeaderboardCache{rdb: rdb, ttl: ttl, loader: loader}
}

func leaderboardKey(scope, bucketKey string) string {
	return fmt.Sprintf("lb:%s:%s", scope, bucketKey)
}

// Get 读取排行榜
func (c *LeaderboardCache) Get(ctx context.Context, scope, bucketKey string, limit int) ([]*repository.LeaderboardRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if c.rdb == nil {
		return c.loader(ctx, scope, bucketKey, limit)
	}

	key := leaderboardKey(scope, bucketKey)
	members, err := c.rdb.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err == nil && len(members) > 0 {
		rows := make([]*repository.LeaderboardRow, 0, len(members))
		for _, m := range members {
			row, ok := parseMember(m)
			if !ok {
				continue
			}
			rows = append(rows, row)
		}
		if len(rows) > 0 {
			return rows, nil
		}
	}
	if err != nil {
		logger.Warn("leaderboard cache read failed", "key", key, "error", err)
	}

	rows, err := c.loader(ctx, scope, bucketKey, limit)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, key, rows)
	return rows, nil
}

// Invalidate 删除快照 (计入排行榜的记账后调用)
func (c *LeaderboardCache) Invalidate(ctx context.Context, scope, bucketKey string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, leaderboardKey(scope, bucketKey)).Err(); err != nil {
		logger.Warn("leaderboard cache invalidate failed", "scope", scope, "key", bucketKey, "error", err)
	}
}

// fill 写入快照，失败只记日志
func (c *LeaderboardCache) fill(ctx context.Context, key string, rows []*repository.LeaderboardRow) {
	if len(rows) == 0 {
		return
	}
	members := make([]redis.Z, 0, len(rows))
	for _, row := range rows {
		members = append(members, redis.Z{
			Score:  row.Total.InexactFloat64(),
			Member: fmt.Sprintf("%d|%s", row.AccountID, row.DisplayName),
		})
	}
	pipe := c.rdb.Pipeline()
	pipe.ZAdd(ctx, key, members...)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("leaderboard cache fill failed", "key", key, "error", err)
	}
}

func parseMember(m redis.Z) (*repository.LeaderboardRow, bool) {
	s, ok := m.Member.(string)
	if !ok {
		return nil, false
	}
	parts := strings.SplitN(s, "|", 2)
	accountID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, false
	}
	row := &repository.LeaderboardRow{
		AccountID: accountID,
		Total:     decimal.NewFromFloat(m.Score),
	}
	if len(parts) == 2 {
		row.DisplayName = parts[1]
	}
	return row, true
}
