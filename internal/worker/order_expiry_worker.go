package worker

import (
	"context"
	"sync"
	"time"

	"github.com/manh-exchange/manh-core/pkg/logger"
)

// OrderExpirer 订单过期接口
// 解耦 worker 与 service 包，避免循环依赖
type OrderExpirer interface {
	// ExpireDue 取消已过期的活跃订单，返回取消数量
	ExpireDue(ctx context.Context, limit int) (int, error)
}

// OrderExpiryWorkerConfig 订单过期 Worker 配置
type OrderExpiryWorkerConfig struct {
	CheckInterval time.Duration // 检查间隔，默认 30s
	BatchSize     int           // 每批取消数量，默认 100
}

// DefaultOrderExpiryWorkerConfig 返回默认配置
func DefaultOrderExpiryWorkerConfig() *OrderExpiryWorkerConfig {
	return &OrderExpiryWorkerConfig{
		CheckInterval: 30 * time.Second,
		BatchSize:     100,
	}
}

// OrderExpiryWorker 订单过期 Worker
// 定期取消 expire_at 已过但仍活跃的订单
type OrderExpiryWorker struct {
	cfg    *OrderExpiryWorkerConfig
	orders OrderExpirer
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrderExpiryWorker 创建订单过期 Worker
func NewOrderExpiryWorker(cfg *OrderExpiryWorkerConfig, orders OrderExpirer) *OrderExpiryWorker {
	if cfg == nil {
		cfg = DefaultOrderExpiryWorkerConfig()
	}
	return &OrderExpiryWorker{cfg: cfg, orders: orders}
}

// Start 启动 Worker
func (w *OrderExpiryWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.checkLoop(ctx)

	logger.Info("order expiry worker started",
		"check_interval", w.cfg.CheckInterval,
		"batch_size", w.cfg.BatchSize,
	)
}

// Stop 停止 Worker
func (w *OrderExpiryWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	logger.Info("order expiry worker stopped")
}

func (w *OrderExpiryWorker) checkLoop(ctx context.Context) {
	defer w.wg.Done()

	// 启动时立即执行一次
	w.expireDue(ctx)

	ticker := time.NewTicker(w.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.expireDue(ctx)
		}
	}
}

func (w *OrderExpiryWorker) expireDue(ctx context.Context) {
	n, err := w.orders.ExpireDue(ctx, w.cfg.BatchSize)
	if err != nil {
		logger.Error("expire due orders failed", "error", err)
		return
	}
	if n > 0 {
		logger.Info("cancelled expired orders", "count", n)
	}
}
