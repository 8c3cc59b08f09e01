package model

import (
	"github.com/shopspring/decimal"
)

// InvoiceStatus 账单状态
type InvoiceStatus int8

const (
	InvoiceStatusPending   InvoiceStatus = 0 // 待支付
	InvoiceStatusConfirmed InvoiceStatus = 1 // 已确认 (链上支付已对账)
	InvoiceStatusExpired   InvoiceStatus = 2 // 已过期
)

// String 返回状态的字符串表示
func (s InvoiceStatus) String() string {
	switch s {
	case InvoiceStatusPending:
		return "PENDING"
	case InvoiceStatusConfirmed:
		return "CONFIRMED"
	case InvoiceStatusExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal 判断是否为终态
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusConfirmed || s == InvoiceStatusExpired
}

// Invoice 购买账单
// PENDING → CONFIRMED 仅发生一次，由条件更新保证
// 过期账单逻辑上 EXPIRED，即使之后出现匹配支付也不再确认
// 对应数据库表 invoices
type Invoice struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	InvoiceID    string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"invoice_id"` // 24 位十六进制
	AccountID    int64           `gorm:"index;not null" json:"account_id"`
	SourceAmount decimal.Decimal `gorm:"type:decimal(36,9);not null" json:"source_amount"` // 结算货币金额
	TokenAmount  decimal.Decimal `gorm:"type:decimal(36,9);not null" json:"token_amount"`  // source / token_price, 9 位小数
	ChainAmount  decimal.Decimal `gorm:"type:decimal(36,9);not null" json:"chain_amount"`  // source / rate, 向上取整到 9 位小数
	Rate         decimal.Decimal `gorm:"type:decimal(36,9);not null" json:"rate"`          // 下单时使用的汇率
	Address      string          `gorm:"type:varchar(128);not null" json:"address"`        // 收款地址
	Memo         string          `gorm:"type:varchar(128);uniqueIndex;not null" json:"memo"` // 支付备注，链上支付与账单的唯一关联
	Status       InvoiceStatus   `gorm:"type:smallint;index;not null;default:0" json:"status"`
	TxHash       string          `gorm:"type:varchar(128)" json:"tx_hash"` // 确认该账单的链上交易
	CreatedAt    int64           `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"`
	ExpiresAt    int64           `gorm:"type:bigint;index;not null" json:"expires_at"` // 毫秒
	ConfirmedAt  int64           `gorm:"type:bigint" json:"confirmed_at"`
}

// TableName 返回表名
func (Invoice) TableName() string {
	return "invoices"
}

// IsExpiredAt 判断在给定时间点是否已过期
func (i *Invoice) IsExpiredAt(nowMilli int64) bool {
	return nowMilli >= i.ExpiresAt
}

// Purchase 购买记录
// 每个已确认账单恰好一行，账户购买总额用于提现资格判定
// 对应数据库表 purchases
type Purchase struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	InvoiceID   string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"invoice_id"`
	AccountID   int64           `gorm:"index;not null" json:"account_id"`
	TokenAmount decimal.Decimal `gorm:"type:decimal(36,9);not null" json:"token_amount"`
	ChainAmount decimal.Decimal `gorm:"type:decimal(36,9);not null" json:"chain_amount"`
	TxHash      string          `gorm:"type:varchar(128)" json:"tx_hash"`
	CreatedAt   int64           `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"`
}

// TableName 返回表名
func (Purchase) TableName() string {
	return "purchases"
}
