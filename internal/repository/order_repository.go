package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/pkg/errs"
)

// OrderRepository 订单仓储接口
type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	GetByOrderID(ctx context.Context, orderID string) (*model.Order, error)
	ListByAccount(ctx context.Context, accountID int64, p *Pagination) ([]*model.Order, error)

	// ListOpenSells 活跃卖单，价格升序，同价先到先得 (价格-时间优先)
	ListOpenSells(ctx context.Context, limit int) ([]*model.Order, error)

	// ListOpenBuys 活跃买单，价格降序，同价先到先得
	ListOpenBuys(ctx context.Context, limit int) ([]*model.Order, error)

	// ApplyFill 推进订单成交量
	// filled + qty == amount 时置 FILLED，否则 PARTIAL
	// 仅作用于活跃订单且不允许超额成交，未落行返回 false
	ApplyFill(ctx context.Context, orderID string, qty decimal.Decimal) (bool, error)

	// CancelOwned 所有者取消: 仅本人的 open/partial 订单落行
	CancelOwned(ctx context.Context, orderID string, accountID int64) (bool, error)

	// Cancel 系统取消 (结算期余额校验失败、订单到期)
	Cancel(ctx context.Context, orderID string) (bool, error)

	// ListExpired 已过期的活跃订单
	ListExpired(ctx context.Context, nowMilli int64, limit int) ([]*model.Order, error)
}

type orderRepository struct {
	*Repository
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{Repository: NewRepository(db)}
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return r.DB(ctx).Create(order).Error
}

func (r *orderRepository) GetByOrderID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.DB(ctx).Where("order_id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrNotFound.WithMessagef("order %s not found", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) ListByAccount(ctx context.Context, accountID int64, p *Pagination) ([]*model.Order, error) {
	var orders []*model.Order
	query := r.DB(ctx).Where("account_id = ?", accountID).Order("id DESC")
	if p != nil {
		query = query.Offset(p.Offset()).Limit(p.Limit())
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) ListOpenSells(ctx context.Context, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.DB(ctx).
		Where("side = ? AND status IN ?", model.OrderSideSell,
			[]model.OrderStatus{model.OrderStatusOpen, model.OrderStatusPartial}).
		Order("price ASC, created_at ASC, id ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) ListOpenBuys(ctx context.Context, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.DB(ctx).
		Where("side = ? AND status IN ?", model.OrderSideBuy,
			[]model.OrderStatus{model.OrderStatusOpen, model.OrderStatusPartial}).
		Order("price DESC, created_at ASC, id ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) ApplyFill(ctx context.Context, orderID string, qty decimal.Decimal) (bool, error) {
	result := r.DB(ctx).Exec(`
		UPDATE p2p_orders
		SET filled_amount = filled_amount + ?,
		    status = CASE WHEN filled_amount + ? >= amount THEN ? ELSE ? END,
		    updated_at = ?
		WHERE order_id = ?
		  AND status IN (?, ?)
		  AND filled_amount + ? <= amount`,
		qty, qty, model.OrderStatusFilled, model.OrderStatusPartial,
		time.Now().UnixMilli(), orderID,
		model.OrderStatusOpen, model.OrderStatusPartial, qty,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *orderRepository) CancelOwned(ctx context.Context, orderID string, accountID int64) (bool, error) {
	result := r.DB(ctx).Model(&model.Order{}).
		Where("order_id = ? AND account_id = ? AND status IN ?", orderID, accountID,
			[]model.OrderStatus{model.OrderStatusOpen, model.OrderStatusPartial}).
		Update("status", model.OrderStatusCancelled)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *orderRepository) Cancel(ctx context.Context, orderID string) (bool, error) {
	result := r.DB(ctx).Model(&model.Order{}).
		Where("order_id = ? AND status IN ?", orderID,
			[]model.OrderStatus{model.OrderStatusOpen, model.OrderStatusPartial}).
		Update("status", model.OrderStatusCancelled)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *orderRepository) ListExpired(ctx context.Context, nowMilli int64, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.DB(ctx).
		Where("expire_at > 0 AND expire_at <= ? AND status IN ?", nowMilli,
			[]model.OrderStatus{model.OrderStatusOpen, model.OrderStatusPartial}).
		Order("expire_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
