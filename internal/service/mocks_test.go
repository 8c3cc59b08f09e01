package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/internal/repository"
)

// passthroughTx 直通事务管理器 (测试用)
type passthroughTx struct{}

func (passthroughTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ========== Mock Account Repository ==========

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetOrCreate(ctx context.Context, accountID int64, displayName string) (*model.Account, error) {
	args := m.Called(ctx, accountID, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, accountID int64) (*model.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountRepository) GetForUpdate(ctx context.Context, accountID int64) (*model.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountRepository) SetOptIn(ctx context.Context, accountID int64, optedIn bool, displayName string) error {
	args := m.Called(ctx, accountID, optedIn, displayName)
	return args.Error(0)
}

func (m *MockAccountRepository) AddBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	args := m.Called(ctx, accountID, delta)
	return args.Error(0)
}

func (m *MockAccountRepository) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	args := m.Called(ctx, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

// ========== Mock Ledger Repository ==========

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Insert(ctx context.Context, entry *model.LedgerEntry) (bool, error) {
	args := m.Called(ctx, entry)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerRepository) GetByDedupKey(ctx context.Context, accountID int64, dedupKey string) (*model.LedgerEntry, error) {
	args := m.Called(ctx, accountID, dedupKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) SumByAccount(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepository) ListByAccount(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.LedgerEntry, error) {
	args := m.Called(ctx, accountID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) Leaderboard(ctx context.Context, scope, bucketKey string, limit int) ([]*repository.LeaderboardRow, error) {
	args := m.Called(ctx, scope, bucketKey, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.LeaderboardRow), args.Error(1)
}

// ========== Mock Invoice Repository ==========

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) ListByAccount(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.Invoice, error) {
	args := m.Called(ctx, accountID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) ListPending(ctx context.Context, nowMilli int64, limit int) ([]*model.Invoice, error) {
	args := m.Called(ctx, nowMilli, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) ConfirmPending(ctx context.Context, invoiceID, txHash string, nowMilli int64) (bool, error) {
	args := m.Called(ctx, invoiceID, txHash, nowMilli)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvoiceRepository) ExpireDue(ctx context.Context, nowMilli int64) (int64, error) {
	args := m.Called(ctx, nowMilli)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceRepository) CreatePurchase(ctx context.Context, purchase *model.Purchase) error {
	args := m.Called(ctx, purchase)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SumPurchasesByAccount(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// ========== Mock Order Repository ==========

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByOrderID(ctx context.Context, orderID string) (*model.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByAccount(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.Order, error) {
	args := m.Called(ctx, accountID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListOpenSells(ctx context.Context, limit int) ([]*model.Order, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListOpenBuys(ctx context.Context, limit int) ([]*model.Order, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Order), args.Error(1)
}

func (m *MockOrderRepository) ApplyFill(ctx context.Context, orderID string, qty decimal.Decimal) (bool, error) {
	args := m.Called(ctx, orderID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) CancelOwned(ctx context.Context, orderID string, accountID int64) (bool, error) {
	args := m.Called(ctx, orderID, accountID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) Cancel(ctx context.Context, orderID string) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) ListExpired(ctx context.Context, nowMilli int64, limit int) ([]*model.Order, error) {
	args := m.Called(ctx, nowMilli, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Order), args.Error(1)
}

// ========== Mock Trade Repository ==========

type MockTradeRepository struct {
	mock.Mock
}

func (m *MockTradeRepository) Create(ctx context.Context, trade *model.Trade) error {
	args := m.Called(ctx, trade)
	return args.Error(0)
}

func (m *MockTradeRepository) GetByTradeID(ctx context.Context, tradeID string) (*model.Trade, error) {
	args := m.Called(ctx, tradeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Trade), args.Error(1)
}

func (m *MockTradeRepository) ListByOrderID(ctx context.Context, orderID string) ([]*model.Trade, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Trade), args.Error(1)
}

func (m *MockTradeRepository) ListByAccount(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.Trade, error) {
	args := m.Called(ctx, accountID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Trade), args.Error(1)
}

func (m *MockTradeRepository) ListRecent(ctx context.Context, limit int) ([]*model.Trade, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Trade), args.Error(1)
}

// ========== Mock Withdrawal Repository ==========

type MockWithdrawalRepository struct {
	mock.Mock
}

func (m *MockWithdrawalRepository) Create(ctx context.Context, withdrawal *model.Withdrawal) error {
	args := m.Called(ctx, withdrawal)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) GetByWithdrawID(ctx context.Context, withdrawID string) (*model.Withdrawal, error) {
	args := m.Called(ctx, withdrawID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) ListByAccount(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.Withdrawal, error) {
	args := m.Called(ctx, accountID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) ListRequested(ctx context.Context, limit int) ([]*model.Withdrawal, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) UpdateStatus(ctx context.Context, withdrawID string, newStatus model.WithdrawStatus, note string) (bool, error) {
	args := m.Called(ctx, withdrawID, newStatus, note)
	return args.Bool(0), args.Error(1)
}

// ========== Mock Ledger Service ==========

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Apply(ctx context.Context, p *LedgerApplyParams) (*model.LedgerEntry, bool, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.LedgerEntry), args.Bool(1), args.Error(2)
}

func (m *MockLedgerService) GetAccount(ctx context.Context, accountID int64) (*model.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockLedgerService) GetLedger(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.LedgerEntry, error) {
	args := m.Called(ctx, accountID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LedgerEntry), args.Error(1)
}

func (m *MockLedgerService) SetOptIn(ctx context.Context, accountID int64, optedIn bool, displayName string) error {
	args := m.Called(ctx, accountID, optedIn, displayName)
	return args.Error(0)
}

func (m *MockLedgerService) Leaderboard(ctx context.Context, scope, bucketKey string, limit int) ([]*repository.LeaderboardRow, error) {
	args := m.Called(ctx, scope, bucketKey, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.LeaderboardRow), args.Error(1)
}

func (m *MockLedgerService) VerifyIntegrity(ctx context.Context, accountID int64) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

// ========== Mock Limiter / Publisher / Matching ==========

type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Allow(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

type MockEntryPublisher struct {
	mock.Mock
}

func (m *MockEntryPublisher) PublishEntry(ctx context.Context, entry *model.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type MockTradePublisher struct {
	mock.Mock
}

func (m *MockTradePublisher) PublishTrade(ctx context.Context, trade *model.Trade) error {
	args := m.Called(ctx, trade)
	return args.Error(0)
}

type MockMatchingService struct {
	mock.Mock
}

func (m *MockMatchingService) Run(ctx context.Context) ([]*model.Trade, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Trade), args.Error(1)
}
