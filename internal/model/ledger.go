package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// EventType 台账事件类型
// 闭合枚举，边界校验后入库，避免自由字符串污染去重键
type EventType int8

const (
	EventTypeReferral         EventType = 1 // 推荐奖励
	EventTypePurchase         EventType = 2 // 链上购买入账
	EventTypeWithdrawal       EventType = 3 // 提现扣减
	EventTypeWithdrawalRefund EventType = 4 // 提现拒绝回退
	EventTypeP2PTrade         EventType = 5 // 场内撮合成交
	EventTypeManualAward      EventType = 6 // 人工发放
)

// String 返回事件类型的字符串表示
// 该字符串参与去重键计算，一经发布不可更改
func (t EventType) String() string {
	switch t {
	case EventTypeReferral:
		return "referral"
	case EventTypePurchase:
		return "purchase"
	case EventTypeWithdrawal:
		return "withdrawal"
	case EventTypeWithdrawalRefund:
		return "withdrawal_refund"
	case EventTypeP2PTrade:
		return "p2p_trade"
	case EventTypeManualAward:
		return "manual_award"
	default:
		return "unknown"
	}
}

// ParseEventType 解析事件类型字符串
func ParseEventType(s string) (EventType, bool) {
	switch s {
	case "referral":
		return EventTypeReferral, true
	case "purchase":
		return EventTypePurchase, true
	case "withdrawal":
		return EventTypeWithdrawal, true
	case "withdrawal_refund":
		return EventTypeWithdrawalRefund, true
	case "p2p_trade":
		return EventTypeP2PTrade, true
	case "manual_award":
		return EventTypeManualAward, true
	default:
		return 0, false
	}
}

// IsValid 检查事件类型是否合法
func (t EventType) IsValid() bool {
	return t >= EventTypeReferral && t <= EventTypeManualAward
}

// AffectsLeaderboard 该事件类型是否计入排行榜
// 计入排行榜的事件要求账户已 opt-in；购买/提现类不受此限制
func (t EventType) AffectsLeaderboard() bool {
	switch t {
	case EventTypeReferral, EventTypeManualAward:
		return true
	default:
		return false
	}
}

// LedgerEntry 台账条目
// 只追加，永不更新或删除
// (account_id, dedup_key) 唯一约束是幂等性的唯一保证
// 对应数据库表 ledger_entries
type LedgerEntry struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID    int64           `gorm:"index;not null;uniqueIndex:uq_account_dedup,priority:1" json:"account_id"`
	EventType    EventType       `gorm:"type:smallint;not null" json:"event_type"`
	Amount       decimal.Decimal `gorm:"type:decimal(36,9);not null" json:"amount"`        // 带符号金额，9 位小数
	BalanceAfter decimal.Decimal `gorm:"type:decimal(36,9);not null" json:"balance_after"` // 记账后余额快照
	BucketScope  string          `gorm:"type:varchar(16);index:idx_bucket,priority:1" json:"bucket_scope"` // 排行榜聚合范围 (daily/weekly/...)
	BucketKey    string          `gorm:"type:varchar(32);index:idx_bucket,priority:2" json:"bucket_key"`   // 排行榜聚合键 (如 2026-08-31)
	DedupKey     string          `gorm:"type:varchar(64);not null;uniqueIndex:uq_account_dedup,priority:2" json:"dedup_key"`
	Metadata     string          `gorm:"type:text" json:"metadata"` // 自由格式 JSON
	CreatedAt    int64           `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"`
}

// TableName 返回表名
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// CanonicalFingerprint 返回指纹的规范化 JSON
// encoding/json 对 map 键按字典序编码，保证同一指纹得到同一字节串
func CanonicalFingerprint(fp map[string]interface{}) (string, error) {
	if fp == nil {
		fp = map[string]interface{}{}
	}
	data, err := json.Marshal(fp)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ComputeDedupKey 计算去重键
// dedup_key = sha256(account_id | event_type | bucket | canonical-json(fingerprint))
func ComputeDedupKey(accountID int64, eventType EventType, bucket string, fp map[string]interface{}) (string, error) {
	canonical, err := CanonicalFingerprint(fp)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s|%s", accountID, eventType, bucket, canonical)))
	return hex.EncodeToString(sum[:]), nil
}

// TradeDedupKey 成交结算的台账幂等键
// 成交结算不走奖励引擎的去重路径，直接以 trade_id 为天然幂等键
// side 取 "sell" / "buy"
func TradeDedupKey(tradeID, side string) string {
	return fmt.Sprintf("p2p|%s|%s", tradeID, side)
}

// WithdrawalDedupKey 提现台账幂等键
func WithdrawalDedupKey(withdrawalID string) string {
	return fmt.Sprintf("wd|%s", withdrawalID)
}

// WithdrawalRefundDedupKey 提现回退台账幂等键
func WithdrawalRefundDedupKey(withdrawalID string) string {
	return fmt.Sprintf("wdrefund|%s", withdrawalID)
}
