package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Core Service Metrics - 核心服务监控指标
var (
	// AwardsTotal 奖励事件总数 (按事件类型、结果分组)
	AwardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "manh",
			Subsystem: "core",
			Name:      "awards_total",
			Help:      "奖励事件总数，按事件类型和结果(credited/duplicate/rate_limited/rejected)分组",
		},
		[]string{"event_type", "result"},
	)

	// AwardLatency 奖励处理延迟
	AwardLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "manh",
			Subsystem: "core",
			Name:      "award_latency_seconds",
			Help:      "奖励处理延迟(秒)，按事件类型分组",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to 16s
		},
		[]string{"event_type"},
	)

	// InvoicesTotal 账单总数
	InvoicesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "manh",
			Subsystem: "core",
			Name:      "invoices_total",
			Help:      "账单总数，按状态(created/confirmed/expired)分组",
		},
		[]string{"status"},
	)

	// ReconcileChecked 对账检查的链上交易数
	ReconcileChecked = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "manh",
			Subsystem: "core",
			Name:      "reconcile_checked_total",
			Help:      "对账检查的链上交易总数",
		},
	)

	// ReconcileConfirmed 对账确认的账单数
	ReconcileConfirmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "manh",
			Subsystem: "core",
			Name:      "reconcile_confirmed_total",
			Help:      "对账确认的账单总数",
		},
	)

	// OrdersTotal 订单总数
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "manh",
			Subsystem: "core",
			Name:      "orders_total",
			Help:      "订单总数，按状态(created/filled/cancelled/expired)和方向分组",
		},
		[]string{"status", "side"},
	)

	// TradesTotal 成交总数
	TradesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "manh",
			Subsystem: "core",
			Name:      "trades_total",
			Help:      "撮合成交总笔数",
		},
	)

	// TradeVolume 成交数量累计
	TradeVolume = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "manh",
			Subsystem: "core",
			Name:      "trade_volume_total",
			Help:      "撮合成交代币数量累计",
		},
	)

	// WithdrawalsTotal 提现总数
	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "manh",
			Subsystem: "core",
			Name:      "withdrawals_total",
			Help:      "提现总数，按状态(requested/sent/rejected)分组",
		},
		[]string{"status"},
	)

	// PriceRefreshTotal 汇率刷新次数
	PriceRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "manh",
			Subsystem: "core",
			Name:      "price_refresh_total",
			Help:      "汇率刷新次数，按来源和结果(ok/error/invalid)分组",
		},
		[]string{"source", "result"},
	)

	// LedgerIntegrityCritical 台账一致性严重错误
	LedgerIntegrityCritical = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "manh",
			Subsystem: "core",
			Name:      "ledger_integrity_critical_total",
			Help:      "台账一致性严重错误 (余额与台账和不一致等)",
		},
		[]string{"reason"},
	)

	// KafkaRetryTotal 消费重试次数
	KafkaRetryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "manh",
			Subsystem: "core",
			Name:      "kafka_retry_total",
			Help:      "Kafka 消费重试次数，按 topic 和结果(retry/success/non_retryable/max_retries_exceeded)分组",
		},
		[]string{"topic", "result"},
	)

	// KafkaDeadLetterTotal 死信消息数
	KafkaDeadLetterTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "manh",
			Subsystem: "core",
			Name:      "kafka_dead_letter_total",
			Help:      "进入死信队列的消息数，按原 topic 分组",
		},
		[]string{"topic"},
	)
)

// ========== Helper functions 辅助函数 ==========

// RecordAward 记录奖励结果
// result 取值: credited, duplicate, rate_limited, rejected
func RecordAward(eventType, result string) {
	AwardsTotal.WithLabelValues(eventType, result).Inc()
}

// RecordInvoice 记录账单状态变化
// status 取值: created, confirmed, expired
func RecordInvoice(status string) {
	InvoicesTotal.WithLabelValues(status).Inc()
}

// RecordOrder 记录订单状态变化
// status 取值: created, filled, cancelled, expired
func RecordOrder(status, side string) {
	OrdersTotal.WithLabelValues(status, side).Inc()
}

// RecordTrade 记录成交
func RecordTrade(volume float64) {
	TradesTotal.Inc()
	TradeVolume.Add(volume)
}

// RecordWithdrawal 记录提现状态变化
func RecordWithdrawal(status string) {
	WithdrawalsTotal.WithLabelValues(status).Inc()
}

// RecordPriceRefresh 记录汇率刷新
func RecordPriceRefresh(source, result string) {
	PriceRefreshTotal.WithLabelValues(source, result).Inc()
}

// RecordLedgerIntegrityCritical 记录台账一致性严重错误
func RecordLedgerIntegrityCritical(reason string) {
	LedgerIntegrityCritical.WithLabelValues(reason).Inc()
}

// RecordKafkaRetry 记录消费重试结果
func RecordKafkaRetry(topic, result string) {
	KafkaRetryTotal.WithLabelValues(topic, result).Inc()
}

// RecordKafkaDeadLetter 记录死信消息
func RecordKafkaDeadLetter(topic string) {
	KafkaDeadLetterTotal.WithLabelValues(topic).Inc()
}
