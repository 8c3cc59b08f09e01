// Package publisher 提供 Kafka 消息发布功能
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/manh-exchange/manh-core/internal/kafka"
	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/pkg/logger"
)

// KafkaProducer Kafka 生产者接口
type KafkaProducer interface {
	SendWithContext(ctx context.Context, topic string, key, value []byte) error
}

// LedgerPublisher 台账条目发布者
// 提交后发布，尽力而为；数据库是事实来源
type LedgerPublisher struct {
	producer KafkaProducer
}

// NewLedgerPublisher 创建台账发布者
func NewLedgerPublisher(producer KafkaProducer) *LedgerPublisher {
	return &LedgerPublisher{producer: producer}
}

// LedgerEntryMessage 台账条目消息
type LedgerEntryMessage struct {
	AccountID    int64  `json:"account_id"`
	EventType    string `json:"event_type"`
	Amount       string `json:"amount"`
	BalanceAfter string `json:"balance_after"`
	DedupKey     string `json:"dedup_key"`
	BucketScope  string `json:"bucket_scope,omitempty"`
	BucketKey    string `json:"bucket_key,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

// PublishEntry 发布台账条目
func (p *LedgerPublisher) PublishEntry(ctx context.Context, entry *model.LedgerEntry) error {
	if p.producer == nil {
		return nil // Kafka 未启用
	}

	msg := &LedgerEntryMessage{
		AccountID:    entry.AccountID,
		EventType:    entry.EventType.String(),
		Amount:       entry.Amount.String(),
		BalanceAfter: entry.BalanceAfter.String(),
		DedupKey:     entry.DedupKey,
		BucketScope:  entry.BucketScope,
		BucketKey:    entry.BucketKey,
		Timestamp:    time.Now().UnixMilli(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal ledger entry message: %w", err)
	}

	// 使用 account_id 作为 key，保证同一账户的消息有序
	key := []byte(fmt.Sprintf("%d", entry.AccountID))

	if err := p.producer.SendWithContext(ctx, kafka.TopicLedgerEntries, key, data); err != nil {
		logger.Error("publish ledger entry failed",
			"account_id", entry.AccountID,
			"dedup_key", entry.DedupKey,
			"error", err,
		)
		return fmt.Errorf("send ledger entry: %w", err)
	}

	return nil
}
