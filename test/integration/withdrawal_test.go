package integration

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/pkg/errs"
)

const testToAddress = "0x000000000000000000000000000000000000b0b1"

func TestWithdrawal_RequiresPurchaseHistory(t *testing.T) {
	s := NewTestSuite(t)
	defer s.Cleanup()

	// 奖励余额充足但从未购买: 不符合提现资格
	s.MustAward(42, "500", map[string]interface{}{"seed": "rich"})

	_, err := s.withdrawalSvc.Request(s.ctx, 42, decimal.RequireFromString("10"), testToAddress)

	assert.True(t, errs.Is(err, errs.ErrNotEligible))
	assert.True(t, s.Balance(42).Equal(decimal.RequireFromString("500")))
}

func TestWithdrawal_RequestDeductsImmediately(t *testing.T) {
	s := NewTestSuite(t)
	defer s.Cleanup()

	// 购买 500 代币 (>= 下限 100)
	s.PurchaseTokens(42, "50")

	withdrawal, err := s.withdrawalSvc.Request(s.ctx, 42, decimal.RequireFromString("100"), testToAddress)
	require.NoError(t, err)

	assert.Equal(t, model.WithdrawStatusRequested, withdrawal.Status)
	assert.True(t, s.Balance(42).Equal(decimal.RequireFromString("400")))
	require.NoError(t, s.ledgerSvc.VerifyIntegrity(s.ctx, 42))
}

func TestWithdrawal_InsufficientBalanceRollsBack(t *testing.T) {
	s := NewTestSuite(t)
	defer s.Cleanup()

	s.PurchaseTokens(42, "50")

	// 余额 500，申请 600: 扣减失败整体回滚，不留下提现记录
	_, err := s.withdrawalSvc.Request(s.ctx, 42, decimal.RequireFromString("600"), testToAddress)

	assert.True(t, errs.Is(err, errs.ErrInsufficientBalance))
	assert.True(t, s.Balance(42).Equal(decimal.RequireFromString("500")))

	requested, err := s.withdrawalSvc.ListRequested(s.ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, requested)
}

func TestWithdrawal_ApproveIsTerminal(t *testing.T) {
	s := NewTestSuite(t)
	defer s.Cleanup()

	s.PurchaseTokens(42, "50")
	withdrawal, err := s.withdrawalSvc.Request(s.ctx, 42, decimal.RequireFromString("100"), testToAddress)
	require.NoError(t, err)

	sent, err := s.withdrawalSvc.Approve(s.ctx, withdrawal.WithdrawID, "paid out")
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawStatusSent, sent.Status)

	// 终态不可再处理
	_, err = s.withdrawalSvc.Reject(s.ctx, withdrawal.WithdrawID, "late")
	assert.Error(t, err)
	assert.True(t, s.Balance(42).Equal(decimal.RequireFromString("400")))
}

func TestWithdrawal_RejectRefundsBalance(t *testing.T) {
	s := NewTestSuite(t)
	defer s.Cleanup()

	s.PurchaseTokens(42, "50")
	withdrawal, err := s.withdrawalSvc.Request(s.ctx, 42, decimal.RequireFromString("100"), testToAddress)
	require.NoError(t, err)
	assert.True(t, s.Balance(42).Equal(decimal.RequireFromString("400")))

	rejected, err := s.withdrawalSvc.Reject(s.ctx, withdrawal.WithdrawID, "bad address")
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawStatusRejected, rejected.Status)
	assert.Equal(t, "bad address", rejected.Note)

	// 回退条目恢复余额，台账恒等式保持
	assert.True(t, s.Balance(42).Equal(decimal.RequireFromString("500")))
	require.NoError(t, s.ledgerSvc.VerifyIntegrity(s.ctx, 42))

	refund, err := s.ledgerRepo.GetByDedupKey(s.ctx, 42, model.WithdrawalRefundDedupKey(withdrawal.WithdrawID))
	require.NoError(t, err)
	assert.Equal(t, model.EventTypeWithdrawalRefund, refund.EventType)
}
