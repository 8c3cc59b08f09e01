// Package model 定义核心服务的数据模型
package model

import (
	"github.com/shopspring/decimal"
)

// Account 用户账户
// 余额为物化值，仅允许与台账写入在同一事务内变更
// 对应数据库表 accounts
type Account struct {
	ID          int64           `gorm:"primaryKey" json:"id"`                              // 外部用户 ID (不自增)
	DisplayName string          `gorm:"type:varchar(64)" json:"display_name"`              // 排行榜展示名
	Balance     decimal.Decimal `gorm:"type:decimal(36,9);not null;default:0" json:"balance"` // 当前余额 (== 台账签名金额之和)
	OptedIn     bool            `gorm:"not null;default:false" json:"opted_in"`            // 排行榜可见性开关，不影响余额
	CreatedAt   int64           `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"`
	UpdatedAt   int64           `gorm:"type:bigint;not null;autoUpdateTime:milli" json:"updated_at"`
}

// TableName 返回表名
func (Account) TableName() string {
	return "accounts"
}

// DerivedScore 派生积分 = floor(balance * 100)
// 读时计算，不落库
func (a *Account) DerivedScore() int64 {
	return a.Balance.Mul(decimal.NewFromInt(100)).Floor().IntPart()
}
