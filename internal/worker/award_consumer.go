package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/manh-exchange/manh-core/internal/kafka"
	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/internal/service"
	"github.com/manh-exchange/manh-core/pkg/errs"
	"github.com/manh-exchange/manh-core/pkg/logger"
)

// Awarder 奖励发放接口
type Awarder interface {
	Award(ctx context.Context, req *service.AwardRequest) (*service.AwardResult, error)
}

// AwardEventMessage 上游服务投递的奖励事件
type AwardEventMessage struct {
	AccountID   int64                  `json:"account_id"`
	DisplayName string                 `json:"display_name"`
	EventType   string                 `json:"event_type"`
	Amount      string                 `json:"amount"`
	BucketScope string                 `json:"bucket_scope"`
	BucketKey   string                 `json:"bucket_key"`
	Fingerprint map[string]interface{} `json:"fingerprint"`
	Metadata    string                 `json:"metadata"`
}

// AwardConsumer 奖励事件消费处理器
// 至少一次投递由幂等记账兜底: 重复投递返回首次记账结果，不会重复加余额
type AwardConsumer struct {
	awards Awarder
}

// NewAwardConsumer 创建奖励事件消费处理器
func NewAwardConsumer(awards Awarder) *AwardConsumer {
	return &AwardConsumer{awards: awards}
}

// Handle 实现 kafka.Handler
func (c *AwardConsumer) Handle(ctx context.Context, msg *kafka.Message) error {
	var event AwardEventMessage
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// 畸形消息无法通过重试修复
		return errs.ErrValidation.WithMessagef("malformed award event: %v", err)
	}

	eventType, ok := model.ParseEventType(event.EventType)
	if !ok {
		return errs.ErrValidation.WithMessagef("unknown event_type %s", event.EventType)
	}

	amount, err := decimal.NewFromString(event.Amount)
	if err != nil {
		return errs.ErrValidation.WithMessagef("invalid amount %s", event.Amount)
	}

	result, err := c.awards.Award(ctx, &service.AwardRequest{
		AccountID:   event.AccountID,
		DisplayName: event.DisplayName,
		EventType:   eventType,
		Amount:      amount,
		BucketScope: event.BucketScope,
		BucketKey:   event.BucketKey,
		Fingerprint: event.Fingerprint,
		Metadata:    event.Metadata,
	})
	if err != nil {
		var bizErr *errs.Error
		if !errors.As(err, &bizErr) {
			// 裸的存储层错误按暂态处理，退避后重投
			return errs.Wrap(errs.ErrTransientStore, err)
		}
		return err
	}

	if result.Duplicate {
		logger.Debug("award event already credited",
			"account_id", event.AccountID,
			"dedup_key", result.DedupKey,
		)
	}
	return nil
}
