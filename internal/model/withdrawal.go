package model

import (
	"github.com/shopspring/decimal"
)

// WithdrawStatus 提现状态
type WithdrawStatus int8

const (
	WithdrawStatusRequested WithdrawStatus = 0 // 已申请 (余额已扣减，待人工处理)
	WithdrawStatusSent      WithdrawStatus = 1 // 已发放
	WithdrawStatusRejected  WithdrawStatus = 2 // 已拒绝 (余额已回退)
)

func (s WithdrawStatus) String() string {
	switch s {
	case WithdrawStatusRequested:
		return "REQUESTED"
	case WithdrawStatusSent:
		return "SENT"
	case WithdrawStatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal 判断是否为终态
func (s WithdrawStatus) IsTerminal() bool {
	return s == WithdrawStatusSent || s == WithdrawStatusRejected
}

// Withdrawal 提现记录
// 申请时扣减余额并写入 withdrawal 台账条目，拒绝时以 withdrawal_refund 条目回退
// 对应数据库表 withdrawals
type Withdrawal struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	WithdrawID  string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"withdraw_id"`
	AccountID   int64           `gorm:"index;not null" json:"account_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(36,9);not null" json:"amount"`
	ToAddress   string          `gorm:"type:varchar(128);not null" json:"to_address"`
	Status      WithdrawStatus  `gorm:"type:smallint;index;not null;default:0" json:"status"`
	Note        string          `gorm:"type:varchar(255)" json:"note"` // 人工处理备注
	CreatedAt   int64           `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"`
	ProcessedAt int64           `gorm:"type:bigint" json:"processed_at"`
}

// TableName 返回表名
func (Withdrawal) TableName() string {
	return "withdrawals"
}
