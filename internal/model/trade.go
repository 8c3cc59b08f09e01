package model

import (
	"github.com/shopspring/decimal"
)

// Trade 撮合成交记录
// 每个撮合数量切片恰好一条，创建后不可变
// trade_id 同时作为双方台账条目的幂等键来源
// 对应数据库表 p2p_trades
type Trade struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TradeID     string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"trade_id"`
	SellOrderID string          `gorm:"type:varchar(64);index;not null" json:"sell_order_id"`
	BuyOrderID  string          `gorm:"type:varchar(64);index;not null" json:"buy_order_id"`
	SellerID    int64           `gorm:"index;not null" json:"seller_id"`
	BuyerID     int64           `gorm:"index;not null" json:"buyer_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(36,9);not null" json:"amount"`
	Price       decimal.Decimal `gorm:"type:decimal(36,9);not null" json:"price"` // 成交价 = 卖方 (maker) 限价
	CreatedAt   int64           `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"`
}

// TableName 返回表名
func (Trade) TableName() string {
	return "p2p_trades"
}

// QuoteValue 成交的计价金额 = amount * price
func (t *Trade) QuoteValue() decimal.Decimal {
	return t.Amount.Mul(t.Price)
}
