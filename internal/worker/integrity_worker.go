package worker

import (
	"context"
	"sync"
	"time"

	"github.com/manh-exchange/manh-core/pkg/logger"
)

// AccountIDLister 账户 ID 分页接口
type AccountIDLister interface {
	ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
}

// IntegrityVerifier 余额/台账一致性校验接口
type IntegrityVerifier interface {
	VerifyIntegrity(ctx context.Context, accountID int64) error
}

// IntegrityWorkerConfig 完整性校验 Worker 配置
type IntegrityWorkerConfig struct {
	CheckInterval time.Duration // 检查间隔，默认 5 分钟
	BatchSize     int           // 每批账户数，默认 100
}

// DefaultIntegrityWorkerConfig 返回默认配置
func DefaultIntegrityWorkerConfig() *IntegrityWorkerConfig {
	return &IntegrityWorkerConfig{
		CheckInterval: 5 * time.Minute,
		BatchSize:     100,
	}
}

// IntegrityWorker 台账完整性校验 Worker
// 定期逐账户校验余额与台账签名金额之和一致
type IntegrityWorker struct {
	cfg         *IntegrityWorkerConfig
	accountRepo AccountIDLister
	ledger      IntegrityVerifier
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewIntegrityWorker 创建完整性校验 Worker
func NewIntegrityWorker(
	cfg *IntegrityWorkerConfig,
	accountRepo AccountIDLister,
	ledger IntegrityVerifier,
) *IntegrityWorker {
	if cfg == nil {
		cfg = DefaultIntegrityWorkerConfig()
	}
	return &IntegrityWorker{cfg: cfg, accountRepo: accountRepo, ledger: ledger}
}

// Start 启动 Worker
func (w *IntegrityWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.checkLoop(ctx)

	logger.Info("integrity worker started",
		"check_interval", w.cfg.CheckInterval,
		"batch_size", w.cfg.BatchSize,
	)
}

// Stop 停止 Worker
func (w *IntegrityWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	logger.Info("integrity worker stopped")
}

func (w *IntegrityWorker) checkLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.verifyAll(ctx)
		}
	}
}

func (w *IntegrityWorker) verifyAll(ctx context.Context) {
	start := time.Now()
	afterID := int64(0)
	checked := 0
	mismatches := 0

	for {
		ids, err := w.accountRepo.ListIDs(ctx, afterID, w.cfg.BatchSize)
		if err != nil {
			logger.Error("integrity: list accounts failed", "error", err)
			return
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			if err := w.ledger.VerifyIntegrity(ctx, id); err != nil {
				mismatches++
				logger.Error("integrity: balance/ledger mismatch", "account_id", id, "error", err)
			}
			checked++
		}
		afterID = ids[len(ids)-1]

		if len(ids) < w.cfg.BatchSize {
			break
		}
	}

	logger.Info("integrity check completed",
		"checked", checked,
		"mismatches", mismatches,
		"duration", time.Since(start),
	)
}
