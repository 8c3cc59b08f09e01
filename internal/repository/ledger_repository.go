package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/pkg/errs"
)

// LeaderboardRow 排行榜聚合结果
type LeaderboardRow struct {
	AccountID   int64           `json:"account_id"`
	DisplayName string          `json:"display_name"`
	Total       decimal.Decimal `json:"total"`
}

// LedgerRepository 台账仓储接口
// 台账只追加，无 Update/Delete 操作
type LedgerRepository interface {
	// Insert 幂等插入台账条目
	// (account_id, dedup_key) 冲突时不落行，返回 inserted=false
	Insert(ctx context.Context, entry *model.LedgerEntry) (inserted bool, err error)

	// GetByDedupKey 按去重键查询
	GetByDedupKey(ctx context.Context, accountID int64, dedupKey string) (*model.LedgerEntry, error)

	// SumByAccount 账户台账签名金额之和 (对账用，应恒等于物化余额)
	SumByAccount(ctx context.Context, accountID int64) (decimal.Decimal, error)

	// ListByAccount 按时间倒序列出账户台账
	ListByAccount(ctx context.Context, accountID int64, p *Pagination) ([]*model.LedgerEntry, error)

	// Leaderboard 指定聚合桶内各账户金额总和，仅含已 opt-in 账户，降序
	Leaderboard(ctx context.Context, scope, bucketKey string, limit int) ([]*LeaderboardRow, error)
}

type ledgerRepository struct {
	*Repository
}

// NewLedgerRepository 创建台账仓储
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{Repository: NewRepository(db)}
}

func (r *ledgerRepository) Insert(ctx context.Context, entry *model.LedgerEntry) (bool, error) {
	result := r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "dedup_key"}},
		DoNothing: true,
	}).Create(entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *ledgerRepository) GetByDedupKey(ctx context.Context, accountID int64, dedupKey string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := r.DB(ctx).
		Where("account_id = ? AND dedup_key = ?", accountID, dedupKey).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrNotFound.WithMessage("ledger entry not found")
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *ledgerRepository) SumByAccount(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.DB(ctx).Model(&model.LedgerEntry{}).
		Select("SUM(amount)").
		Where("account_id = ?", accountID).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func (r *ledgerRepository) ListByAccount(ctx context.Context, accountID int64, p *Pagination) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	query := r.DB(ctx).Where("account_id = ?", accountID).Order("id DESC")
	if p != nil {
		query = query.Offset(p.Offset()).Limit(p.Limit())
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *ledgerRepository) Leaderboard(ctx context.Context, scope, bucketKey string, limit int) ([]*LeaderboardRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var rows []*LeaderboardRow
	err := r.DB(ctx).
		Table("ledger_entries AS l").
		Select("l.account_id, a.display_name, SUM(l.amount) AS total").
		Joins("JOIN accounts a ON a.id = l.account_id").
		Where("l.bucket_scope = ? AND l.bucket_key = ? AND a.opted_in = ?", scope, bucketKey, true).
		Group("l.account_id, a.display_name").
		Order("total DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
