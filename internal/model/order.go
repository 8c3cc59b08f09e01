package model

import (
	"github.com/shopspring/decimal"
)

// OrderStatus 订单状态
type OrderStatus int8

const (
	OrderStatusOpen      OrderStatus = 1 // 挂单中
	OrderStatusPartial   OrderStatus = 2 // 部分成交
	OrderStatusFilled    OrderStatus = 3 // 完全成交
	OrderStatusCancelled OrderStatus = 4 // 已取消
)

// String 返回状态的字符串表示
func (s OrderStatus) String() string {
	switch s {
	case OrderStatusOpen:
		return "OPEN"
	case OrderStatusPartial:
		return "PARTIAL"
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal 判断是否为终态
// FILLED / CANCELLED 不再转换
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled
}

// OrderSide 订单方向
type OrderSide int8

const (
	OrderSideBuy  OrderSide = 1 // 买入
	OrderSideSell OrderSide = 2 // 卖出
)

func (s OrderSide) String() string {
	if s == OrderSideBuy {
		return "BUY"
	}
	return "SELL"
}

// ParseOrderSide 解析方向字符串
func ParseOrderSide(v string) (OrderSide, bool) {
	switch v {
	case "buy", "BUY":
		return OrderSideBuy, true
	case "sell", "SELL":
		return OrderSideSell, true
	default:
		return 0, false
	}
}

// Order 场内订单
// 状态机: open → {partial → filled | cancelled}, open → {filled | cancelled}
// 对应数据库表 p2p_orders
type Order struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID      string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_id"`
	AccountID    int64           `gorm:"index;not null" json:"account_id"`
	Side         OrderSide       `gorm:"type:smallint;not null" json:"side"`
	Price        decimal.Decimal `gorm:"type:decimal(36,9);not null" json:"price"`           // 限价 (结算货币计价)
	Amount       decimal.Decimal `gorm:"type:decimal(36,9);not null" json:"amount"`          // 委托数量
	FilledAmount decimal.Decimal `gorm:"type:decimal(36,9);not null;default:0" json:"filled_amount"`
	Status       OrderStatus     `gorm:"type:smallint;index;not null;default:1" json:"status"`
	ExpireAt     int64           `gorm:"type:bigint" json:"expire_at"` // 可选过期时间 (毫秒)，0 表示不过期
	CreatedAt    int64           `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"`
	UpdatedAt    int64           `gorm:"type:bigint;not null;autoUpdateTime:milli" json:"updated_at"`
}

// TableName 返回表名
func (Order) TableName() string {
	return "p2p_orders"
}

// CanTransitionTo 检查状态转换是否合法
func (o *Order) CanTransitionTo(newStatus OrderStatus) bool {
	transitions := map[OrderStatus][]OrderStatus{
		OrderStatusOpen:    {OrderStatusPartial, OrderStatusFilled, OrderStatusCancelled},
		OrderStatusPartial: {OrderStatusFilled, OrderStatusCancelled},
	}

	allowed, exists := transitions[o.Status]
	if !exists {
		return false // 终态不能转换
	}

	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// CanCancel 检查订单是否可以取消
func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusOpen || o.Status == OrderStatusPartial
}

// Remaining 剩余未成交数量
func (o *Order) Remaining() decimal.Decimal {
	return o.Amount.Sub(o.FilledAmount)
}
