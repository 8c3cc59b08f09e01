package kafka

// Kafka topic 名称
const (
	// TopicLedgerEntries 台账条目 (core → 下游消费方)
	TopicLedgerEntries = "ledger-entries"

	// TopicTrades 撮合成交 (core → 下游消费方)
	TopicTrades = "p2p-trades"

	// TopicAwardEvents 奖励事件 (上游服务 → core)
	TopicAwardEvents = "award-events"

	// TopicDeadLetter 死信队列
	TopicDeadLetter = "manh-core-dlq"
)
