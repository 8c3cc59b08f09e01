// Package worker 提供后台任务处理
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/manh-exchange/manh-core/pkg/logger"
)

// InvoiceExpirer 账单过期接口
// 解耦 worker 与 service 包，避免循环依赖
type InvoiceExpirer interface {
	// ExpireDue 过期清理，返回置为 EXPIRED 的账单数
	ExpireDue(ctx context.Context) (int64, error)
}

// InvoiceExpiryWorkerConfig 账单过期 Worker 配置
type InvoiceExpiryWorkerConfig struct {
	CheckInterval time.Duration // 检查间隔，默认 1 分钟
}

// DefaultInvoiceExpiryWorkerConfig 返回默认配置
func DefaultInvoiceExpiryWorkerConfig() *InvoiceExpiryWorkerConfig {
	return &InvoiceExpiryWorkerConfig{CheckInterval: time.Minute}
}

// InvoiceExpiryWorker 账单过期 Worker
// 定期将超过支付窗口仍未确认的 PENDING 账单置为 EXPIRED
type InvoiceExpiryWorker struct {
	cfg      *InvoiceExpiryWorkerConfig
	invoices InvoiceExpirer
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewInvoiceExpiryWorker 创建账单过期 Worker
func NewInvoiceExpiryWorker(cfg *InvoiceExpiryWorkerConfig, invoices InvoiceExpirer) *InvoiceExpiryWorker {
	if cfg == nil {
		cfg = DefaultInvoiceExpiryWorkerConfig()
	}
	return &InvoiceExpiryWorker{cfg: cfg, invoices: invoices}
}

// Start 启动 Worker
func (w *InvoiceExpiryWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.checkLoop(ctx)

	logger.Info("invoice expiry worker started", "check_interval", w.cfg.CheckInterval)
}

// Stop 停止 Worker
func (w *InvoiceExpiryWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	logger.Info("invoice expiry worker stopped")
}

func (w *InvoiceExpiryWorker) checkLoop(ctx context.Context) {
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

func (w *InvoiceExpiryWorker) expireDue(ctx context.Context) {
	n, err := w.invoices.ExpireDue(ctx)
	if err != nil {
		logger.Error("expire due invoices failed", "error", err)
		return
	}
	if n > 0 {
		logger.Info("expired pending invoices", "count", n)
	}
}
