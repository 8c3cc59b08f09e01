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

// TradePublisher 撮合成交发布者
type TradePublisher struct {
	producer KafkaProducer
}

// NewTradePublisher 创建成交发布者
func NewTradePublisher(producer KafkaProducer) *TradePublisher {
	return &TradePublisher{producer: producer}
}

// TradeMessage 成交消息
type TradeMessage struct {
	TradeID     string `json:"trade_id"`
	SellOrderID string `json:"sell_order_id"`
	BuyOrderID  string `json:"buy_order_id"`
	SellerID    int64  `json:"seller_id"`
	BuyerID     int64  `json:"buyer_id"`
	Amount      string `json:"amount"`
	Price       string `json:"price"`
	Timestamp   int64  `json:"timestamp"`
}

// PublishTrade 发布成交
func (p *TradePublisher) PublishTrade(ctx context.Context, trade *model.Trade) error {
	if p.producer == nil {
		return nil // Kafka 未启用
	}

	msg := &TradeMessage{
		TradeID:     trade.TradeID,
		SellOrderID: trade.SellOrderID,
		BuyOrderID:  trade.BuyOrderID,
		SellerID:    trade.SellerID,
		BuyerID:     trade.BuyerID,
		Amount:      trade.Amount.String(),
		Price:       trade.Price.String(),
		Timestamp:   time.Now().UnixMilli(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal trade message: %w", err)
	}

	if err := p.producer.SendWithContext(ctx, kafka.TopicTrades, []byte(trade.TradeID), data); err != nil {
		logger.Error("publish trade failed", "trade_id", trade.TradeID, "error", err)
		return fmt.Errorf("send trade: %w", err)
	}

	return nil
}
