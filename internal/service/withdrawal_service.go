package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/manh-exchange/manh-core/internal/metrics"
	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/internal/repository"
	"github.com/manh-exchange/manh-core/pkg/errs"
	"github.com/manh-exchange/manh-core/pkg/logger"
)

// WithdrawalParams 提现参数
type WithdrawalParams struct {
	Enabled          bool
	MinPurchaseTotal decimal.Decimal // 提现资格: 累计购买代币数下限
}

// WithdrawalService 提现服务接口
// 申请即扣减余额；拒绝时以回退条目恢复，发放为终态
type WithdrawalService interface {
	// Request 申请提现
	// 累计购买不足下限返回 errs.ErrNotEligible
	Request(ctx context.Context, accountID int64, amount decimal.Decimal, toAddress string) (*model.Withdrawal, error)

	// Approve 标记已发放 (人工处理后调用)
	Approve(ctx context.Context, withdrawID, note string) (*model.Withdrawal, error)

	// Reject 拒绝并回退余额
	Reject(ctx context.Context, withdrawID, note string) (*model.Withdrawal, error)

	Get(ctx context.Context, withdrawID string) (*model.Withdrawal, error)
	List(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.Withdrawal, error)
	ListRequested(ctx context.Context, limit int) ([]*model.Withdrawal, error)
}

type withdrawalService struct {
	tx             TxManager
	withdrawalRepo repository.WithdrawalRepository
	invoiceRepo    repository.InvoiceRepository
	ledger         LedgerService
	params         WithdrawalParams
}

// NewWithdrawalService 创建提现服务
func NewWithdrawalService(
	tx TxManager,
	withdrawalRepo repository.WithdrawalRepository,
	invoiceRepo repository.InvoiceRepository,
	ledger LedgerService,
	params WithdrawalParams,
) WithdrawalService {
	return &withdrawalService{
		tx:             tx,
		withdrawalRepo: withdrawalRepo,
		invoiceRepo:    invoiceRepo,
		ledger:         ledger,
		params:         params,
	}
}

func (s *withdrawalService) Request(ctx context.Context, accountID int64, amount decimal.Decimal, toAddress string) (*model.Withdrawal, error) {
	if accountID <= 0 {
		return nil, errs.ErrValidation.WithMessage("invalid account id")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, errs.ErrValidation.WithMessage("amount must be positive")
	}
	if toAddress == "" {
		return nil, errs.ErrValidation.WithMessage("to_address required")
	}
	if !s.params.Enabled {
		return nil, errs.ErrNotEligible.WithMessage("withdrawals disabled")
	}

	purchased, err := s.invoiceRepo.SumPurchasesByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if purchased.LessThan(s.params.MinPurchaseTotal) {
		return nil, errs.ErrNotEligible.WithMessagef(
			"purchase total %s below withdrawal minimum %s", purchased, s.params.MinPurchaseTotal)
	}

	withdrawal := &model.Withdrawal{
		WithdrawID: uuid.NewString(),
		AccountID:  accountID,
		Amount:     amount,
		ToAddress:  toAddress,
		Status:     model.WithdrawStatusRequested,
	}

	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		if err := s.withdrawalRepo.Create(ctx, withdrawal); err != nil {
			return err
		}
		// 申请即扣减，余额不足整体回滚
		_, _, err := s.ledger.Apply(ctx, &LedgerApplyParams{
			AccountID: accountID,
			EventType: model.EventTypeWithdrawal,
			Amount:    amount.Neg(),
			DedupKey:  model.WithdrawalDedupKey(withdrawal.WithdrawID),
			Metadata:  fmt.Sprintf(`{"withdraw_id":%q}`, withdrawal.WithdrawID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordWithdrawal("requested")
	logger.Info("withdrawal requested",
		"withdraw_id", withdrawal.WithdrawID,
		"account_id", accountID,
		"amount", amount.String(),
	)
	return withdrawal, nil
}

func (s *withdrawalService) Approve(ctx context.Context, withdrawID, note string) (*model.Withdrawal, error) {
	if withdrawID == "" {
		return nil, errs.ErrValidation.WithMessage("withdraw id required")
	}

	ok, err := s.withdrawalRepo.UpdateStatus(ctx, withdrawID, model.WithdrawStatusSent, note)
	if err != nil {
		return nil, err
	}
	if !ok {
		withdrawal, err := s.withdrawalRepo.GetByWithdrawID(ctx, withdrawID)
		if err != nil {
			return nil, err
		}
		return nil, errs.ErrValidation.WithMessagef("withdrawal %s is %s", withdrawID, withdrawal.Status)
	}

	metrics.RecordWithdrawal("sent")
	logger.Info("withdrawal sent", "withdraw_id", withdrawID)
	return s.withdrawalRepo.GetByWithdrawID(ctx, withdrawID)
}

func (s *withdrawalService) Reject(ctx context.Context, withdrawID, note string) (*model.Withdrawal, error) {
	if withdrawID == "" {
		return nil, errs.ErrValidation.WithMessage("withdraw id required")
	}

	withdrawal, err := s.withdrawalRepo.GetByWithdrawID(ctx, withdrawID)
	if err != nil {
		return nil, err
	}

	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		ok, err := s.withdrawalRepo.UpdateStatus(ctx, withdrawID, model.WithdrawStatusRejected, note)
		if err != nil {
			return err
		}
		if !ok {
			return errs.ErrValidation.WithMessagef("withdrawal %s already processed", withdrawID)
		}
		// 回退扣减，回退条目以独立幂等键落账
		_, _, err = s.ledger.Apply(ctx, &LedgerApplyParams{
			AccountID: withdrawal.AccountID,
			EventType: model.EventTypeWithdrawalRefund,
			Amount:    withdrawal.Amount,
			DedupKey:  model.WithdrawalRefundDedupKey(withdrawID),
			Metadata:  fmt.Sprintf(`{"withdraw_id":%q}`, withdrawID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordWithdrawal("rejected")
	logger.Info("withdrawal rejected", "withdraw_id", withdrawID, "note", note)
	return s.withdrawalRepo.GetByWithdrawID(ctx, withdrawID)
}

func (s *withdrawalService) Get(ctx context.Context, withdrawID string) (*model.Withdrawal, error) {
	return s.withdrawalRepo.GetByWithdrawID(ctx, withdrawID)
}

func (s *withdrawalService) List(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.Withdrawal, error) {
	return s.withdrawalRepo.ListByAccount(ctx, accountID, p)
}

func (s *withdrawalService) ListRequested(ctx context.Context, limit int) ([]*model.Withdrawal, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.withdrawalRepo.ListRequested(ctx, limit)
}
