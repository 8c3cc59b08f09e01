package handler

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/manh-exchange/manh-core/internal/chain"
	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/internal/repository"
	"github.com/manh-exchange/manh-core/internal/service"
)

// MockLedgerService 台账服务 mock
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Apply(ctx context.Context, p *service.LedgerApplyParams) (*model.LedgerEntry, bool, error) {
	args := m.Called(ctx, p)
	var entry *model.LedgerEntry
	if args.Get(0) != nil {
		entry = args.Get(0).(*model.LedgerEntry)
	}
	return entry, args.Bool(1), args.Error(2)
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

// MockAwardService 奖励服务 mock
type MockAwardService struct {
	mock.Mock
}

func (m *MockAwardService) Award(ctx context.Context, req *service.AwardRequest) (*service.AwardResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AwardResult), args.Error(1)
}

// MockInvoiceService 账单服务 mock
type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) CreateInvoice(ctx context.Context, accountID int64, sourceAmount decimal.Decimal) (*model.Invoice, error) {
	args := m.Called(ctx, accountID, sourceAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invoice), args.Error(1)
}

func (m *MockInvoiceService) GetInvoice(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invoice), args.Error(1)
}

func (m *MockInvoiceService) ListInvoices(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.Invoice, error) {
	args := m.Called(ctx, accountID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Invoice), args.Error(1)
}

func (m *MockInvoiceService) Reconcile(ctx context.Context, observed []chain.Transaction) (*service.ReconcileReport, error) {
	args := m.Called(ctx, observed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReconcileReport), args.Error(1)
}

func (m *MockInvoiceService) ExpireDue(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockOrderService 订单服务 mock
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) PlaceOrder(ctx context.Context, req *service.PlaceOrderRequest) (*service.PlaceOrderResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PlaceOrderResult), args.Error(1)
}

func (m *MockOrderService) CancelOrder(ctx context.Context, accountID int64, orderID string) (*model.Order, error) {
	args := m.Called(ctx, accountID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) ListOrders(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.Order, error) {
	args := m.Called(ctx, accountID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Order), args.Error(1)
}

func (m *MockOrderService) OrderBook(ctx context.Context, depth int) ([]*model.Order, []*model.Order, error) {
	args := m.Called(ctx, depth)
	var sells, buys []*model.Order
	if args.Get(0) != nil {
		sells = args.Get(0).([]*model.Order)
	}
	if args.Get(1) != nil {
		buys = args.Get(1).([]*model.Order)
	}
	return sells, buys, args.Error(2)
}

func (m *MockOrderService) ListTrades(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.Trade, error) {
	args := m.Called(ctx, accountID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Trade), args.Error(1)
}

func (m *MockOrderService) ListRecentTrades(ctx context.Context, limit int) ([]*model.Trade, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Trade), args.Error(1)
}

func (m *MockOrderService) ExpireDue(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

// MockWithdrawalService 提现服务 mock
type MockWithdrawalService struct {
	mock.Mock
}

func (m *MockWithdrawalService) Request(ctx context.Context, accountID int64, amount decimal.Decimal, toAddress string) (*model.Withdrawal, error) {
	args := m.Called(ctx, accountID, amount, toAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalService) Approve(ctx context.Context, withdrawID, note string) (*model.Withdrawal, error) {
	args := m.Called(ctx, withdrawID, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalService) Reject(ctx context.Context, withdrawID, note string) (*model.Withdrawal, error) {
	args := m.Called(ctx, withdrawID, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalService) Get(ctx context.Context, withdrawID string) (*model.Withdrawal, error) {
	args := m.Called(ctx, withdrawID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalService) List(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.Withdrawal, error) {
	args := m.Called(ctx, accountID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalService) ListRequested(ctx context.Context, limit int) ([]*model.Withdrawal, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Withdrawal), args.Error(1)
}

// MockLeaderboardReader 排行榜读取 mock
type MockLeaderboardReader struct {
	mock.Mock
}

func (m *MockLeaderboardReader) Get(ctx context.Context, scope, bucketKey string, limit int) ([]*repository.LeaderboardRow, error) {
	args := m.Called(ctx, scope, bucketKey, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.LeaderboardRow), args.Error(1)
}
