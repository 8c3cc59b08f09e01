package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/pkg/errs"
)

// WithdrawalRepository 提现仓储接口
type WithdrawalRepository interface {
	Create(ctx context.Context, withdrawal *model.Withdrawal) error
	GetByWithdrawID(ctx context.Context, withdrawID string) (*model.Withdrawal, error)
	ListByAccount(ctx context.Context, accountID int64, p *Pagination) ([]*model.Withdrawal, error)
	ListRequested(ctx context.Context, limit int) ([]*model.Withdrawal, error)

	// UpdateStatus 条件更新状态，REQUESTED 为唯一可转出状态
	// 未落行返回 false (已终结或不存在)
	UpdateStatus(ctx context.Context, withdrawID string, newStatus model.WithdrawStatus, note string) (bool, error)
}

type withdrawalRepository struct {
	*Repository
}

// NewWithdrawalRepository 创建提现仓储
func NewWithdrawalRepository(db *gorm.DB) WithdrawalRepository {
	return &withdrawalRepository{Repository: NewRepository(db)}
}

func (r *withdrawalRepository) Create(ctx context.Context, withdrawal *model.Withdrawal) error {
	return r.DB(ctx).Create(withdrawal).Error
}

func (r *withdrawalRepository) GetByWithdrawID(ctx context.Context, withdrawID string) (*model.Withdrawal, error) {
	var withdrawal model.Withdrawal
	err := r.DB(ctx).Where("withdraw_id = ?", withdrawID).First(&withdrawal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrNotFound.WithMessagef("withdrawal %s not found", withdrawID)
	}
	if err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

func (r *withdrawalRepository) ListByAccount(ctx context.Context, accountID int64, p *Pagination) ([]*model.Withdrawal, error) {
	var withdrawals []*model.Withdrawal
	query := r.DB(ctx).Where("account_id = ?", accountID).Order("id DESC")
	if p != nil {
		query = query.Offset(p.Offset()).Limit(p.Limit())
	}
	if err := query.Find(&withdrawals).Error; err != nil {
		return nil, err
	}
	return withdrawals, nil
}

func (r *withdrawalRepository) ListRequested(ctx context.Context, limit int) ([]*model.Withdrawal, error) {
	var withdrawals []*model.Withdrawal
	err := r.DB(ctx).
		Where("status = ?", model.WithdrawStatusRequested).
		Order("id ASC").
		Limit(limit).
		Find(&withdrawals).Error
	if err != nil {
		return nil, err
	}
	return withdrawals, nil
}

func (r *withdrawalRepository) UpdateStatus(ctx context.Context, withdrawID string, newStatus model.WithdrawStatus, note string) (bool, error) {
	result := r.DB(ctx).Model(&model.Withdrawal{}).
		Where("withdraw_id = ? AND status = ?", withdrawID, model.WithdrawStatusRequested).
		Updates(map[string]interface{}{
			"status":       newStatus,
			"note":         note,
			"processed_at": time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
