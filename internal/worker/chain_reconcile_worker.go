package worker

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/manh-exchange/manh-core/internal/chain"
	"github.com/manh-exchange/manh-core/internal/service"
	"github.com/manh-exchange/manh-core/pkg/logger"
)

// InvoiceReconciler 账单对账接口
type InvoiceReconciler interface {
	Reconcile(ctx context.Context, observed []chain.Transaction) (*service.ReconcileReport, error)
}

const (
	reconcileLockKey = "manh:reconcile:lock"
	reconcileLockTTL = 30 * time.Second
)

// ChainReconcileWorkerConfig 链上对账 Worker 配置
type ChainReconcileWorkerConfig struct {
	CheckInterval time.Duration // 检查间隔，默认 30s
	StartBlock    uint64        // 首次扫描起始区块
}

// DefaultChainReconcileWorkerConfig 返回默认配置
func DefaultChainReconcileWorkerConfig() *ChainReconcileWorkerConfig {
	return &ChainReconcileWorkerConfig{CheckInterval: 30 * time.Second}
}

// ChainReconcileWorker 链上对账 Worker
// 定期从网关拉取到国库地址的转账并与 PENDING 账单对账
// 多实例部署时以 Redis SetNX 锁保证同一时刻只有一个实例在扫描
type ChainReconcileWorker struct {
	cfg       *ChainReconcileWorkerConfig
	rdb       *redis.Client // 可为 nil (单实例部署)
	gateway   chain.Gateway
	invoices  InvoiceReconciler
	fromBlock uint64
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewChainReconcileWorker 创建链上对账 Worker
func NewChainReconcileWorker(
	cfg *ChainReconcileWorkerConfig,
	rdb *redis.Client,
	gateway chain.Gateway,
	invoices InvoiceReconciler,
) *ChainReconcileWorker {
	if cfg == nil {
		cfg = DefaultChainReconcileWorkerConfig()
	}
	return &ChainReconcileWorker{
		cfg:       cfg,
		rdb:       rdb,
		gateway:   gateway,
		invoices:  invoices,
		fromBlock: cfg.StartBlock,
	}
}

// Start 启动 Worker
func (w *ChainReconcileWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.checkLoop(ctx)

	logger.Info("chain reconcile worker started",
		"check_interval", w.cfg.CheckInterval,
		"from_block", w.fromBlock,
	)
}

// Stop 停止 Worker
func (w *ChainReconcileWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	logger.Info("chain reconcile worker stopped")
}

func (w *ChainReconcileWorker) checkLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.tryAcquireLock(ctx) {
				w.scan(ctx)
				w.releaseLock(ctx)
			}
		}
	}
}

func (w *ChainReconcileWorker) tryAcquireLock(ctx context.Context) bool {
	if w.rdb == nil {
		return true
	}
	ok, err := w.rdb.SetNX(ctx, reconcileLockKey, "locked", reconcileLockTTL).Result()
	if err != nil {
		logger.Error("acquire reconcile lock failed", "error", err)
		return false
	}
	return ok
}

func (w *ChainReconcileWorker) releaseLock(ctx context.Context) {
	if w.rdb == nil {
		return
	}
	w.rdb.Del(ctx, reconcileLockKey)
}

func (w *ChainReconcileWorker) scan(ctx context.Context) {
	transfers, nextBlock, err := w.gateway.FetchTransfers(ctx, w.fromBlock)
	if err != nil {
		logger.Error("fetch transfers failed", "from_block", w.fromBlock, "error", err)
		return
	}

	if len(transfers) > 0 {
		report, err := w.invoices.Reconcile(ctx, transfers)
		if err != nil {
			// 起点不前移，下一轮重扫同一区间；对账幂等所以重复观测无副作用
			logger.Error("reconcile failed", "from_block", w.fromBlock, "error", err)
			return
		}
		if report.Confirmed > 0 {
			logger.Info("reconcile confirmed invoices",
				"checked", report.Checked,
				"confirmed", report.Confirmed,
				"invoices", report.Invoices,
			)
		}
	}

	w.fromBlock = nextBlock
}
