package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/pkg/errs"
)

// TradeRepository 成交仓储接口
// 成交记录创建后不可变
type TradeRepository interface {
	Create(ctx context.Context, trade *model.Trade) error
	GetByTradeID(ctx context.Context, tradeID string) (*model.Trade, error)
	ListByOrderID(ctx context.Context, orderID string) ([]*model.Trade, error)
	ListByAccount(ctx context.Context, accountID int64, p *Pagination) ([]*model.Trade, error)
	ListRecent(ctx context.Context, limit int) ([]*model.Trade, error)
}

type tradeRepository struct {
	*Repository
}

// NewTradeRepository 创建成交仓储
func NewTradeRepository(db *gorm.DB) TradeRepository {
	return &tradeRepository{Repository: NewRepository(db)}
}

func (r *tradeRepository) Create(ctx context.Context, trade *model.Trade) error {
	return r.DB(ctx).Create(trade).Error
}

func (r *tradeRepository) GetByTradeID(ctx context.Context, tradeID string) (*model.Trade, error) {
	var trade model.Trade
	err := r.DB(ctx).Where("trade_id = ?", tradeID).First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrNotFound.WithMessagef("trade %s not found", tradeID)
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

func (r *tradeRepository) ListByOrderID(ctx context.Context, orderID string) ([]*model.Trade, error) {
	var trades []*model.Trade
	err := r.DB(ctx).
		Where("sell_order_id = ? OR buy_order_id = ?", orderID, orderID).
		Order("id ASC").
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}

func (r *tradeRepository) ListByAccount(ctx context.Context, accountID int64, p *Pagination) ([]*model.Trade, error) {
	var trades []*model.Trade
	query := r.DB(ctx).
		Where("seller_id = ? OR buyer_id = ?", accountID, accountID).
		Order("id DESC")
	if p != nil {
		query = query.Offset(p.Offset()).Limit(p.Limit())
	}
	if err := query.Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

func (r *tradeRepository) ListRecent(ctx context.Context, limit int) ([]*model.Trade, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var trades []*model.Trade
	err := r.DB(ctx).Order("id DESC").Limit(limit).Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}
