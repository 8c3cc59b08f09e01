package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/manh-exchange/manh-core/internal/metrics"
	"github.com/manh-exchange/manh-core/pkg/errs"
	"github.com/manh-exchange/manh-core/pkg/logger"
)

// RetryConfig 重试配置
type RetryConfig struct {
	MaxRetries     int           // 最大重试次数
	InitialBackoff time.Duration // 初始退避时间
	MaxBackoff     time.Duration // 最大退避时间
	BackoffFactor  float64       // 退避因子
}

// DefaultRetryConfig 默认重试配置
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
	}
}

// DeadLetterMessage 死信消息
type DeadLetterMessage struct {
	OriginalTopic string `json:"original_topic"`
	Key           []byte `json:"key"`
	Value         []byte `json:"value"`
	Partition     int32  `json:"partition"`
	Offset        int64  `json:"offset"`
	RetryCount    int    `json:"retry_count"`
	LastError     string `json:"last_error"`
	FailedAt      int64  `json:"failed_at"`
}

// MessageProducer Kafka 生产者接口 (用于发送死信)
type MessageProducer interface {
	SendWithContext(ctx context.Context, topic string, key, value []byte) error
}

// RetryConsumerGroup 带重试的消费者组
// 可重试性由 errs.IsRetryable 判定: 业务拒绝 (校验失败、资格不足) 直接进死信，
// 暂态错误 (存储不可用等) 退避重试，超限后进死信
type RetryConsumerGroup struct {
	*ConsumerGroup
	retryConfig     *RetryConfig
	deadLetterTopic string
	producer        MessageProducer
	mu              sync.RWMutex
}

// RetryConsumerConfig 带重试的消费者配置
type RetryConsumerConfig struct {
	ConsumerConfig
	RetryConfig     *RetryConfig
	DeadLetterTopic string          // 死信队列 topic，默认 TopicDeadLetter
	Producer        MessageProducer // 用于发送死信
}

// NewRetryConsumerGroup 创建带重试的消费者组
func NewRetryConsumerGroup(cfg *RetryConsumerConfig) (*RetryConsumerGroup, error) {
	cg, err := NewConsumerGroup(&cfg.ConsumerConfig)
	if err != nil {
		return nil, err
	}

	retryConfig := cfg.RetryConfig
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
	}

	deadLetterTopic := cfg.DeadLetterTopic
	if deadLetterTopic == "" {
		deadLetterTopic = TopicDeadLetter
	}

	return &RetryConsumerGroup{
		ConsumerGroup:   cg,
		retryConfig:     retryConfig,
		deadLetterTopic: deadLetterTopic,
		producer:        cfg.Producer,
	}, nil
}

// NewRetryConsumerGroupWithDLQ 创建带死信队列的消费者组 (默认配置)
func NewRetryConsumerGroupWithDLQ(
	brokers []string,
	groupID string,
	topics []string,
	producer MessageProducer,
) (*RetryConsumerGroup, error) {
	return NewRetryConsumerGroup(&RetryConsumerConfig{
		ConsumerConfig: ConsumerConfig{
			Brokers:       brokers,
			GroupID:       groupID,
			Topics:        topics,
			InitialOffset: sarama.OffsetOldest,
		},
		RetryConfig:     DefaultRetryConfig(),
		DeadLetterTopic: TopicDeadLetter,
		Producer:        producer,
	})
}

// RegisterRetryHandler 注册带重试逻辑的处理器
func (c *RetryConsumerGroup) RegisterRetryHandler(topic string, handler Handler) {
	c.ConsumerGroup.RegisterHandler(topic, HandlerFunc(func(ctx context.Context, msg *Message) error {
		return c.handleWithRetry(ctx, msg, handler)
	}))
}

func (c *RetryConsumerGroup) handleWithRetry(ctx context.Context, msg *Message, handler Handler) error {
	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		err := handler.Handle(ctx, msg)
		if err == nil {
			if attempt > 0 {
				logger.Info("message processed after retry",
					"topic", msg.Topic,
					"offset", msg.Offset,
					"attempts", attempt+1,
				)
				metrics.RecordKafkaRetry(msg.Topic, "success")
			}
			return nil
		}

		if !errs.IsRetryable(err) {
			logger.Warn("non-retryable error, sending to DLQ",
				"topic", msg.Topic,
				"offset", msg.Offset,
				"error", err,
			)
			c.sendToDeadLetter(ctx, msg, attempt, err)
			metrics.RecordKafkaRetry(msg.Topic, "non_retryable")
			return nil // 确认消息，不再重投
		}

		if attempt == c.retryConfig.MaxRetries {
			logger.Error("max retries exceeded, sending to DLQ",
				"topic", msg.Topic,
				"offset", msg.Offset,
				"max_retries", c.retryConfig.MaxRetries,
				"error", err,
			)
			c.sendToDeadLetter(ctx, msg, attempt+1, err)
			metrics.RecordKafkaRetry(msg.Topic, "max_retries_exceeded")
			return nil
		}

		backoff := c.calculateBackoff(attempt)
		logger.Warn("retrying message",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)
		metrics.RecordKafkaRetry(msg.Topic, "retry")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil
}

func (c *RetryConsumerGroup) calculateBackoff(attempt int) time.Duration {
	backoff := float64(c.retryConfig.InitialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= c.retryConfig.BackoffFactor
	}
	if backoff > float64(c.retryConfig.MaxBackoff) {
		backoff = float64(c.retryConfig.MaxBackoff)
	}
	return time.Duration(backoff)
}

func (c *RetryConsumerGroup) sendToDeadLetter(ctx context.Context, msg *Message, retryCount int, lastErr error) {
	if c.producer == nil {
		logger.Warn("no producer available for DLQ, message dropped",
			"topic", msg.Topic,
			"offset", msg.Offset,
		)
		return
	}

	dlqMsg := &DeadLetterMessage{
		OriginalTopic: msg.Topic,
		Key:           msg.Key,
		Value:         msg.Value,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		RetryCount:    retryCount,
		LastError:     lastErr.Error(),
		FailedAt:      time.Now().UnixMilli(),
	}

	data, err := json.Marshal(dlqMsg)
	if err != nil {
		logger.Error("marshal DLQ message failed", "topic", msg.Topic, "error", err)
		return
	}

	if err := c.producer.SendWithContext(ctx, c.deadLetterTopic, msg.Key, data); err != nil {
		logger.Error("send to DLQ failed",
			"topic", msg.Topic,
			"dlq_topic", c.deadLetterTopic,
			"offset", msg.Offset,
			"error", err,
		)
		return
	}

	metrics.RecordKafkaDeadLetter(msg.Topic)
}
