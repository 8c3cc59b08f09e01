// Package pricefeed 提供结算货币与链上资产之间的汇率
package pricefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/manh-exchange/manh-core/internal/metrics"
	"github.com/manh-exchange/manh-core/pkg/errs"
	"github.com/manh-exchange/manh-core/pkg/logger"
)

// Quote 汇率报价
type Quote struct {
	Rate      decimal.Decimal // 1 链上资产 = Rate 结算货币
	Source    string
	FetchedAt time.Time
}

// Provider 汇率来源
type Provider interface {
	// Fetch 获取当前汇率
	Fetch(ctx context.Context) (decimal.Decimal, error)

	// Name 来源标识 (日志与指标用)
	Name() string
}

// ManualProvider 固定汇率来源 (配置指定)
type ManualProvider struct {
	mu   sync.RWMutex
	rate decimal.Decimal
}

// NewManualProvider 创建固定汇率来源
func NewManualProvider(rate decimal.Decimal) *ManualProvider {
	return &ManualProvider{rate: rate}
}

// SetRate 更新汇率 (运营调价)
func (p *ManualProvider) SetRate(rate decimal.Decimal) {
	p.mu.Lock()
	p.rate = rate
	p.mu.Unlock()
}

func (p *ManualProvider) Fetch(_ context.Context) (decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.rate.IsZero() || p.rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("manual rate not configured")
	}
	return p.rate, nil
}

func (p *ManualProvider) Name() string { return "manual" }

// CachedFeed 带 TTL 的报价缓存
// 过期报价必须先刷新再使用，刷新失败时整个调用失败，绝不退回旧价
// 时钟注入以便测试控制 TTL 到期
type CachedFeed struct {
	provider Provider
	ttl      time.Duration
	nowFn    func() time.Time

	mu     sync.Mutex
	cached *Quote
}

// NewCachedFeed 创建报价缓存
// nowFn 为空时使用 time.Now
func NewCachedFeed(provider Provider, ttl time.Duration, nowFn func() time.Time) *CachedFeed {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &CachedFeed{
		provider: provider,
		ttl:      ttl,
		nowFn:    nowFn,
	}
}

// Quote 返回当前报价
// 缓存命中且未过期直接返回；否则同步刷新
func (f *CachedFeed) Quote(ctx context.Context) (*Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.nowFn()
	if f.cached != nil && now.Sub(f.cached.FetchedAt) < f.ttl {
		return f.cached, nil
	}

	rate, err := f.provider.Fetch(ctx)
	if err != nil {
		metrics.RecordPriceRefresh(f.provider.Name(), "error")
		logger.Warn("price refresh failed", "source", f.provider.Name(), "error", err)
		return nil, errs.Wrap(errs.ErrPriceFeedUnavailable, err)
	}
	if rate.IsZero() || rate.IsNegative() {
		metrics.RecordPriceRefresh(f.provider.Name(), "invalid")
		return nil, errs.ErrPriceFeedUnavailable.WithMessagef("non-positive rate %s from %s", rate, f.provider.Name())
	}

	metrics.RecordPriceRefresh(f.provider.Name(), "ok")
	f.cached = &Quote{
		Rate:      rate,
		Source:    f.provider.Name(),
		FetchedAt: now,
	}
	return f.cached, nil
}
