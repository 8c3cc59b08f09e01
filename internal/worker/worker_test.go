package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manh-exchange/manh-core/internal/chain"
	"github.com/manh-exchange/manh-core/internal/service"
)

// fakeInvoiceExpirer 线程安全的计数桩
type fakeInvoiceExpirer struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeInvoiceExpirer) ExpireDue(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return 1, nil
}

func (f *fakeInvoiceExpirer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeOrderExpirer struct {
	mu    sync.Mutex
	calls int
	limit int
}

func (f *fakeOrderExpirer) ExpireDue(ctx context.Context, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.limit = limit
	return 0, nil
}

func TestDefaultInvoiceExpiryWorkerConfig(t *testing.T) {
	cfg := DefaultInvoiceExpiryWorkerConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, time.Minute, cfg.CheckInterval)
}

func TestDefaultOrderExpiryWorkerConfig(t *testing.T) {
	cfg := DefaultOrderExpiryWorkerConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, 30*time.Second, cfg.CheckInterval)
	assert.Equal(t, 100, cfg.BatchSize)
}

func TestDefaultIntegrityWorkerConfig(t *testing.T) {
	cfg := DefaultIntegrityWorkerConfig()

	assert.Equal(t, 5*time.Minute, cfg.CheckInterval)
	assert.Equal(t, 100, cfg.BatchSize)
}

func TestInvoiceExpiryWorker_RunsImmediatelyAndStops(t *testing.T) {
	expirer := &fakeInvoiceExpirer{}
	w := NewInvoiceExpiryWorker(&InvoiceExpiryWorkerConfig{CheckInterval: time.Hour}, expirer)

	w.Start(context.Background())
	defer w.Stop()

	require.Eventually(t, func() bool {
		return expirer.count() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestOrderExpiryWorker_PassesBatchSize(t *testing.T) {
	expirer := &fakeOrderExpirer{}
	w := NewOrderExpiryWorker(&OrderExpiryWorkerConfig{CheckInterval: time.Hour, BatchSize: 25}, expirer)

	w.Start(context.Background())
	w.Stop()

	assert.Equal(t, 1, expirer.calls)
	assert.Equal(t, 25, expirer.limit)
}

// fakeGateway 返回固定转账并推进扫描起点
type fakeGateway struct {
	transfers []chain.Transaction
	nextBlock uint64
}

func (f *fakeGateway) FetchTransfers(ctx context.Context, fromBlock uint64) ([]chain.Transaction, uint64, error) {
	return f.transfers, f.nextBlock, nil
}

type fakeReconciler struct {
	mu       sync.Mutex
	observed []chain.Transaction
}

func (f *fakeReconciler) Reconcile(ctx context.Context, observed []chain.Transaction) (*service.ReconcileReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observed = append(f.observed, observed...)
	return &service.ReconcileReport{Checked: len(observed)}, nil
}

func TestChainReconcileWorker_ScanAdvancesFromBlock(t *testing.T) {
	gw := &fakeGateway{
		transfers: []chain.Transaction{{Hash: "0xabc", Memo: "MANH|x|y"}},
		nextBlock: 120,
	}
	rec := &fakeReconciler{}
	w := NewChainReconcileWorker(&ChainReconcileWorkerConfig{CheckInterval: time.Hour, StartBlock: 100}, nil, gw, rec)

	w.scan(context.Background())

	assert.Equal(t, uint64(120), w.fromBlock)
	assert.Len(t, rec.observed, 1)
}

func TestChainReconcileWorker_LockGuardsScan(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	w := NewChainReconcileWorker(nil, rdb, nil, nil)
	ctx := context.Background()

	mock.ExpectSetNX(reconcileLockKey, "locked", reconcileLockTTL).SetVal(true)
	assert.True(t, w.tryAcquireLock(ctx))

	// 别的实例持锁时本轮跳过
	mock.ExpectSetNX(reconcileLockKey, "locked", reconcileLockTTL).SetVal(false)
	assert.False(t, w.tryAcquireLock(ctx))

	mock.ExpectDel(reconcileLockKey).SetVal(1)
	w.releaseLock(ctx)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChainReconcileWorker_NoRedisRunsUnlocked(t *testing.T) {
	w := NewChainReconcileWorker(nil, nil, nil, nil)

	assert.True(t, w.tryAcquireLock(context.Background()))
}

type fakeIDLister struct {
	ids []int64
}

func (f *fakeIDLister) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	var out []int64
	for _, id := range f.ids {
		if id > afterID && len(out) < limit {
			out = append(out, id)
		}
	}
	return out, nil
}

type fakeVerifier struct {
	checked []int64
}

func (f *fakeVerifier) VerifyIntegrity(ctx context.Context, accountID int64) error {
	f.checked = append(f.checked, accountID)
	return nil
}

func TestIntegrityWorker_VerifiesAllAccountsInPages(t *testing.T) {
	lister := &fakeIDLister{ids: []int64{1, 2, 3, 4, 5}}
	verifier := &fakeVerifier{}
	w := NewIntegrityWorker(&IntegrityWorkerConfig{CheckInterval: time.Hour, BatchSize: 2}, lister, verifier)

	w.verifyAll(context.Background())

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, verifier.checked)
}
