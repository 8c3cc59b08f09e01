package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/pkg/errs"
)

// AccountRepository 账户仓储接口
type AccountRepository interface {
	// GetOrCreate 获取账户，不存在时创建 (首个事件触发建户)
	GetOrCreate(ctx context.Context, accountID int64, displayName string) (*model.Account, error)

	// GetByID 获取账户
	GetByID(ctx context.Context, accountID int64) (*model.Account, error)

	// GetForUpdate 锁定并获取账户 (SELECT FOR UPDATE，须在事务内调用)
	GetForUpdate(ctx context.Context, accountID int64) (*model.Account, error)

	// SetOptIn 设置排行榜可见性，必要时建户
	SetOptIn(ctx context.Context, accountID int64, optedIn bool, displayName string) error

	// AddBalance 余额增减，负向变更以 balance + delta >= 0 保护
	// 行不存在或余额不足时返回 errs.ErrInsufficientBalance
	AddBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error

	// ListIDs 按主键升序分页返回账户 ID (afterID 为上一页末尾)
	ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
}

type accountRepository struct {
	*Repository
}

// NewAccountRepository 创建账户仓储
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{Repository: NewRepository(db)}
}

func (r *accountRepository) GetOrCreate(ctx context.Context, accountID int64, displayName string) (*model.Account, error) {
	account := &model.Account{
		ID:          accountID,
		DisplayName: displayName,
		Balance:     decimal.Zero,
	}

	// ON CONFLICT DO NOTHING: 并发首次写入只有一个生效
	result := r.DB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(account)
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		// 已存在，重新读取
		return r.GetByID(ctx, accountID)
	}
	return account, nil
}

func (r *accountRepository) GetByID(ctx context.Context, accountID int64) (*model.Account, error) {
	var account model.Account
	err := r.DB(ctx).Where("id = ?", accountID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrNotFound.WithMessagef("account %d not found", accountID)
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) GetForUpdate(ctx context.Context, accountID int64) (*model.Account, error) {
	var account model.Account
	err := lockForUpdate(r.DB(ctx)).Where("id = ?", accountID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrNotFound.WithMessagef("account %d not found", accountID)
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) SetOptIn(ctx context.Context, accountID int64, optedIn bool, displayName string) error {
	return r.Transaction(ctx, func(ctx context.Context) error {
		if _, err := r.GetOrCreate(ctx, accountID, displayName); err != nil {
			return err
		}
		updates := map[string]interface{}{
			"opted_in":   optedIn,
			"updated_at": time.Now().UnixMilli(),
		}
		if displayName != "" {
			updates["display_name"] = displayName
		}
		return r.DB(ctx).Model(&model.Account{}).
			Where("id = ?", accountID).
			Updates(updates).Error
	})
}

func (r *accountRepository) AddBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	// 条件更新即并发保护: balance + delta >= 0 不满足时不落行
	result := r.DB(ctx).Exec(`
		UPDATE accounts
		SET balance = balance + ?, updated_at = ?
		WHERE id = ? AND balance + ? >= 0`,
		delta, time.Now().UnixMilli(), accountID, delta,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrInsufficientBalance.WithMessagef("account %d balance change %s rejected", accountID, delta)
	}
	return nil
}

func (r *accountRepository) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	var ids []int64
	err := r.DB(ctx).Model(&model.Account{}).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
