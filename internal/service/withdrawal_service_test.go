package service

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/pkg/errs"
)

func newWithdrawalServiceForTest(enabled bool) (WithdrawalService, *MockWithdrawalRepository, *MockInvoiceRepository, *MockLedgerService) {
	withdrawalRepo := new(MockWithdrawalRepository)
	invoiceRepo := new(MockInvoiceRepository)
	ledger := new(MockLedgerService)
	svc := NewWithdrawalService(passthroughTx{}, withdrawalRepo, invoiceRepo, ledger, WithdrawalParams{
		Enabled:          enabled,
		MinPurchaseTotal: decimal.NewFromInt(100),
	})
	return svc, withdrawalRepo, invoiceRepo, ledger
}

func TestWithdrawalService_Request_Success(t *testing.T) {
	svc, withdrawalRepo, invoiceRepo, ledger := newWithdrawalServiceForTest(true)
	ctx := context.Background()

	invoiceRepo.On("SumPurchasesByAccount", ctx, int64(42)).Return(decimal.NewFromInt(150), nil)
	withdrawalRepo.On("Create", ctx, mock.AnythingOfType("*model.Withdrawal")).Return(nil)

	var applied *LedgerApplyParams
	ledger.On("Apply", ctx, mock.Anything).
		Run(func(args mock.Arguments) { applied = args.Get(1).(*LedgerApplyParams) }).
		Return(&model.LedgerEntry{BalanceAfter: decimal.NewFromInt(50)}, true, nil)

	withdrawal, err := svc.Request(ctx, 42, decimal.NewFromInt(100), "0xdest")

	assert.NoError(t, err)
	assert.Equal(t, model.WithdrawStatusRequested, withdrawal.Status)
	// 申请即扣减
	assert.True(t, applied.Amount.Equal(decimal.NewFromInt(-100)))
	assert.Equal(t, model.EventTypeWithdrawal, applied.EventType)
	assert.True(t, strings.HasPrefix(applied.DedupKey, "wd|"))
}

func TestWithdrawalService_Request_NotEligible(t *testing.T) {
	svc, withdrawalRepo, invoiceRepo, _ := newWithdrawalServiceForTest(true)
	ctx := context.Background()

	invoiceRepo.On("SumPurchasesByAccount", ctx, int64(42)).Return(decimal.NewFromInt(50), nil)

	_, err := svc.Request(ctx, 42, decimal.NewFromInt(10), "0xdest")

	assert.True(t, errs.Is(err, errs.ErrNotEligible))
	withdrawalRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestWithdrawalService_Request_Disabled(t *testing.T) {
	svc, _, _, _ := newWithdrawalServiceForTest(false)
	ctx := context.Background()

	_, err := svc.Request(ctx, 42, decimal.NewFromInt(10), "0xdest")
	assert.True(t, errs.Is(err, errs.ErrNotEligible))
}

func TestWithdrawalService_Request_InsufficientBalance(t *testing.T) {
	svc, withdrawalRepo, invoiceRepo, ledger := newWithdrawalServiceForTest(true)
	ctx := context.Background()

	invoiceRepo.On("SumPurchasesByAccount", ctx, int64(42)).Return(decimal.NewFromInt(150), nil)
	withdrawalRepo.On("Create", ctx, mock.Anything).Return(nil)
	ledger.On("Apply", ctx, mock.Anything).Return(nil, false, errs.ErrInsufficientBalance)

	_, err := svc.Request(ctx, 42, decimal.NewFromInt(1000), "0xdest")
	assert.True(t, errs.Is(err, errs.ErrInsufficientBalance))
}

func TestWithdrawalService_Approve_Success(t *testing.T) {
	svc, withdrawalRepo, _, _ := newWithdrawalServiceForTest(true)
	ctx := context.Background()

	withdrawalRepo.On("UpdateStatus", ctx, "w1", model.WithdrawStatusSent, "paid").Return(true, nil)
	withdrawalRepo.On("GetByWithdrawID", ctx, "w1").
		Return(&model.Withdrawal{WithdrawID: "w1", Status: model.WithdrawStatusSent}, nil)

	withdrawal, err := svc.Approve(ctx, "w1", "paid")
	assert.NoError(t, err)
	assert.Equal(t, model.WithdrawStatusSent, withdrawal.Status)
}

func TestWithdrawalService_Approve_AlreadyProcessed(t *testing.T) {
	svc, withdrawalRepo, _, _ := newWithdrawalServiceForTest(true)
	ctx := context.Background()

	withdrawalRepo.On("UpdateStatus", ctx, "w1", model.WithdrawStatusSent, "").Return(false, nil)
	withdrawalRepo.On("GetByWithdrawID", ctx, "w1").
		Return(&model.Withdrawal{WithdrawID: "w1", Status: model.WithdrawStatusRejected}, nil)

	_, err := svc.Approve(ctx, "w1", "")
	assert.Error(t, err)
}

func TestWithdrawalService_Reject_RefundsBalance(t *testing.T) {
	svc, withdrawalRepo, _, ledger := newWithdrawalServiceForTest(true)
	ctx := context.Background()

	withdrawal := &model.Withdrawal{
		WithdrawID: "w1",
		AccountID:  42,
		Amount:     decimal.NewFromInt(100),
		Status:     model.WithdrawStatusRequested,
	}
	withdrawalRepo.On("GetByWithdrawID", ctx, "w1").Return(withdrawal, nil)
	withdrawalRepo.On("UpdateStatus", ctx, "w1", model.WithdrawStatusRejected, "fraud").Return(true, nil)

	var applied *LedgerApplyParams
	ledger.On("Apply", ctx, mock.Anything).
		Run(func(args mock.Arguments) { applied = args.Get(1).(*LedgerApplyParams) }).
		Return(&model.LedgerEntry{BalanceAfter: decimal.NewFromInt(150)}, true, nil)

	_, err := svc.Reject(ctx, "w1", "fraud")

	assert.NoError(t, err)
	assert.True(t, applied.Amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, model.EventTypeWithdrawalRefund, applied.EventType)
	assert.Equal(t, model.WithdrawalRefundDedupKey("w1"), applied.DedupKey)
}

func TestWithdrawalService_Reject_AlreadyProcessed(t *testing.T) {
	svc, withdrawalRepo, _, ledger := newWithdrawalServiceForTest(true)
	ctx := context.Background()

	withdrawalRepo.On("GetByWithdrawID", ctx, "w1").
		Return(&model.Withdrawal{WithdrawID: "w1", AccountID: 42, Status: model.WithdrawStatusSent}, nil)
	withdrawalRepo.On("UpdateStatus", ctx, "w1", model.WithdrawStatusRejected, "").Return(false, nil)

	_, err := svc.Reject(ctx, "w1", "")
	assert.Error(t, err)
	ledger.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything)
}
