// Package service 提供业务逻辑层
package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/manh-exchange/manh-core/internal/metrics"
	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/internal/repository"
	"github.com/manh-exchange/manh-core/pkg/errs"
	"github.com/manh-exchange/manh-core/pkg/logger"
)

// TxManager 事务管理接口
// *repository.Repository 满足该接口；测试中可注入直通实现
type TxManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// LedgerApplyParams 记账参数
type LedgerApplyParams struct {
	AccountID   int64
	DisplayName string
	EventType   model.EventType
	Amount      decimal.Decimal // 带符号金额
	DedupKey    string
	BucketScope string
	BucketKey   string
	Metadata    string
}

// LedgerService 台账服务接口
// 所有余额变更的唯一入口: 台账插入与余额更新总在同一事务内
type LedgerService interface {
	// Apply 幂等记账
	// (account_id, dedup_key) 已存在时返回既有条目且 inserted=false，不报错
	// 负向变更导致余额为负时返回 errs.ErrInsufficientBalance
	Apply(ctx context.Context, p *LedgerApplyParams) (entry *model.LedgerEntry, inserted bool, err error)

	// GetAccount 获取账户 (不存在时报 errs.ErrNotFound)
	GetAccount(ctx context.Context, accountID int64) (*model.Account, error)

	// GetLedger 账户台账，时间倒序
	GetLedger(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.LedgerEntry, error)

	// SetOptIn 设置排行榜可见性
	SetOptIn(ctx context.Context, accountID int64, optedIn bool, displayName string) error

	// Leaderboard 聚合桶内排行榜，仅含已 opt-in 账户
	Leaderboard(ctx context.Context, scope, bucketKey string, limit int) ([]*repository.LeaderboardRow, error)

	// VerifyIntegrity 校验余额 == 台账签名金额之和
	VerifyIntegrity(ctx context.Context, accountID int64) error
}

type ledgerService struct {
	tx          TxManager
	accountRepo repository.AccountRepository
	ledgerRepo  repository.LedgerRepository
}

// NewLedgerService 创建台账服务
func NewLedgerService(
	tx TxManager,
	accountRepo repository.AccountRepository,
	ledgerRepo repository.LedgerRepository,
) LedgerService {
	return &ledgerService{
		tx:          tx,
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
	}
}

func (s *ledgerService) Apply(ctx context.Context, p *LedgerApplyParams) (*model.LedgerEntry, bool, error) {
	if p.AccountID <= 0 || !p.EventType.IsValid() || p.DedupKey == "" {
		return nil, false, errs.ErrValidation.WithMessage("invalid ledger apply params")
	}
	if p.Amount.IsZero() {
		return nil, false, errs.ErrValidation.WithMessage("zero amount")
	}

	var (
		entry    *model.LedgerEntry
		inserted bool
	)
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.accountRepo.GetOrCreate(ctx, p.AccountID, p.DisplayName); err != nil {
			return err
		}

		// 行锁序列化同一账户的并发记账
		account, err := s.accountRepo.GetForUpdate(ctx, p.AccountID)
		if err != nil {
			return err
		}

		balanceAfter := account.Balance.Add(p.Amount)
		if balanceAfter.IsNegative() {
			return errs.ErrInsufficientBalance.WithMessagef(
				"account %d balance %s insufficient for %s", p.AccountID, account.Balance, p.Amount)
		}

		e := &model.LedgerEntry{
			AccountID:    p.AccountID,
			EventType:    p.EventType,
			Amount:       p.Amount,
			BalanceAfter: balanceAfter,
			BucketScope:  p.BucketScope,
			BucketKey:    p.BucketKey,
			DedupKey:     p.DedupKey,
			Metadata:     p.Metadata,
		}
		ok, err := s.ledgerRepo.Insert(ctx, e)
		if err != nil {
			return err
		}
		if !ok {
			// 重复事件: 返回首次记账的条目，余额不动
			existing, err := s.ledgerRepo.GetByDedupKey(ctx, p.AccountID, p.DedupKey)
			if err != nil {
				return err
			}
			entry = existing
			inserted = false
			return nil
		}

		if err := s.accountRepo.AddBalance(ctx, p.AccountID, p.Amount); err != nil {
			return err
		}
		entry = e
		inserted = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return entry, inserted, nil
}

func (s *ledgerService) GetAccount(ctx context.Context, accountID int64) (*model.Account, error) {
	return s.accountRepo.GetByID(ctx, accountID)
}

func (s *ledgerService) GetLedger(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.LedgerEntry, error) {
	return s.ledgerRepo.ListByAccount(ctx, accountID, p)
}

func (s *ledgerService) SetOptIn(ctx context.Context, accountID int64, optedIn bool, displayName string) error {
	if accountID <= 0 {
		return errs.ErrValidation.WithMessage("invalid account id")
	}
	return s.accountRepo.SetOptIn(ctx, accountID, optedIn, displayName)
}

func (s *ledgerService) Leaderboard(ctx context.Context, scope, bucketKey string, limit int) ([]*repository.LeaderboardRow, error) {
	if scope == "" || bucketKey == "" {
		return nil, errs.ErrValidation.WithMessage("scope and bucket_key required")
	}
	return s.ledgerRepo.Leaderboard(ctx, scope, bucketKey, limit)
}

func (s *ledgerService) VerifyIntegrity(ctx context.Context, accountID int64) error {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	sum, err := s.ledgerRepo.SumByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !sum.Equal(account.Balance) {
		metrics.RecordLedgerIntegrityCritical("balance_mismatch")
		logger.Error("ledger integrity violation",
			"account_id", accountID,
			"balance", account.Balance.String(),
			"ledger_sum", sum.String(),
		)
		return errs.ErrInternal.WithMessagef(
			"account %d balance %s != ledger sum %s", accountID, account.Balance, sum)
	}
	return nil
}
