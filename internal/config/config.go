package config

import (
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config 服务配置
type Config struct {
	Service    ServiceConfig    `yaml:"service" json:"service"`
	Database   DatabaseConfig   `yaml:"database" json:"database"`
	Redis      RedisConfig      `yaml:"redis" json:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka" json:"kafka"`
	Log        LogConfig        `yaml:"log" json:"log"`
	Award      AwardConfig      `yaml:"award" json:"award"`
	Invoice    InvoiceConfig    `yaml:"invoice" json:"invoice"`
	PriceFeed  PriceFeedConfig  `yaml:"price_feed" json:"price_feed"`
	Withdrawal WithdrawalConfig `yaml:"withdrawal" json:"withdrawal"`
	Chain      ChainConfig      `yaml:"chain" json:"chain"`
	Worker     WorkerConfig     `yaml:"worker" json:"worker"`
	Internal   InternalConfig   `yaml:"internal" json:"internal"`
}

// ServiceConfig 服务配置
type ServiceConfig struct {
	Name     string `yaml:"name" json:"name"`
	HTTPPort int    `yaml:"http_port" json:"http_port"`
	Env      string `yaml:"env" json:"env"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host                   string `yaml:"host" json:"host"`
	Port                   int    `yaml:"port" json:"port"`
	User                   string `yaml:"user" json:"user"`
	Password               string `yaml:"password" json:"password"`
	Database               string `yaml:"database" json:"database"`
	MaxIdleConns           int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns           int    `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" json:"conn_max_lifetime_minutes"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
	// LeaderboardTTLSec 排行榜快照 TTL (秒)
	LeaderboardTTLSec int `yaml:"leaderboard_ttl_sec" json:"leaderboard_ttl_sec"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Brokers []string `yaml:"brokers" json:"brokers"`
	// ConsumerGroup 奖励事件消费组 ID
	ConsumerGroup string `yaml:"consumer_group" json:"consumer_group"`
	// ConsumeAwardEvents 是否消费上游奖励事件 topic
	ConsumeAwardEvents bool `yaml:"consume_award_events" json:"consume_award_events"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// AwardConfig 奖励引擎配置
type AwardConfig struct {
	// RateLimitWindowSec 限流滑动窗口 (秒)
	RateLimitWindowSec int `yaml:"rate_limit_window_sec" json:"rate_limit_window_sec"`
	// RateLimitMax 窗口内允许的事件数
	RateLimitMax int `yaml:"rate_limit_max" json:"rate_limit_max"`
}

// InvoiceConfig 账单配置
type InvoiceConfig struct {
	// TokenPrice 代币结算价 (结算货币 / 代币)
	TokenPrice decimal.Decimal `yaml:"token_price" json:"token_price"`
	// TTLMinutes 账单有效期 (分钟)
	TTLMinutes int `yaml:"ttl_minutes" json:"ttl_minutes"`
	// TolerancePct 链上支付容差 (占应付金额比例，如 0.01)
	TolerancePct decimal.Decimal `yaml:"tolerance_pct" json:"tolerance_pct"`
	// SigningSecret 支付备注 HMAC 密钥
	SigningSecret string `yaml:"signing_secret" json:"signing_secret"`
	// TreasuryAddress 收款地址
	TreasuryAddress string `yaml:"treasury_address" json:"treasury_address"`
	// ReconcileBatchSize 单次对账扫描的 PENDING 账单数上限
	ReconcileBatchSize int `yaml:"reconcile_batch_size" json:"reconcile_batch_size"`
}

// PriceFeedConfig 汇率来源配置
type PriceFeedConfig struct {
	Source      string          `yaml:"source" json:"source"` // manual, coingecko
	ManualRate  decimal.Decimal `yaml:"manual_rate" json:"manual_rate"`
	CacheTTLSec int             `yaml:"cache_ttl_sec" json:"cache_ttl_sec"`
	Endpoint    string          `yaml:"endpoint" json:"endpoint"`
	AssetID     string          `yaml:"asset_id" json:"asset_id"`
	VsCurrency  string          `yaml:"vs_currency" json:"vs_currency"`
}

// WithdrawalConfig 提现配置
type WithdrawalConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// MinPurchaseTotal 提现资格: 累计购买代币数下限
	MinPurchaseTotal decimal.Decimal `yaml:"min_purchase_total" json:"min_purchase_total"`
}

// ChainConfig 链上观测配置
type ChainConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	RPCURL        string `yaml:"rpc_url" json:"rpc_url"`
	Confirmations uint64 `yaml:"confirmations" json:"confirmations"`
	StartBlock    uint64 `yaml:"start_block" json:"start_block"`
	MaxBlockSpan  uint64 `yaml:"max_block_span" json:"max_block_span"`
	Decimals      int32  `yaml:"decimals" json:"decimals"`
}

// WorkerConfig 后台任务配置
type WorkerConfig struct {
	InvoiceExpiry ExpiryWorkerConfig `yaml:"invoice_expiry" json:"invoice_expiry"`
	OrderExpiry   ExpiryWorkerConfig `yaml:"order_expiry" json:"order_expiry"`
	Reconcile     ExpiryWorkerConfig `yaml:"reconcile" json:"reconcile"`
	Integrity     ExpiryWorkerConfig `yaml:"integrity" json:"integrity"`
}

// ExpiryWorkerConfig 扫描型后台任务配置
type ExpiryWorkerConfig struct {
	Enabled          bool `yaml:"enabled" json:"enabled"`
	CheckIntervalSec int  `yaml:"check_interval_sec" json:"check_interval_sec"`
	BatchSize        int  `yaml:"batch_size" json:"batch_size"`
}

// InternalConfig 特权调用配置
type InternalConfig struct {
	// Secret 特权端点共享密钥 (X-Internal-Secret)
	Secret string `yaml:"secret" json:"secret"`
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := defaultConfig()

	// 尝试从配置文件加载
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// 从环境变量覆盖
	loadFromEnv(cfg)

	return cfg, nil
}

// defaultConfig 返回默认配置
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "manh-core",
			HTTPPort: 8080,
			Env:      "dev",
		},
		Database: DatabaseConfig{
			Host:                   "localhost",
			Port:                   5432,
			User:                   "postgres",
			Password:               "postgres",
			Database:               "manh_core",
			MaxIdleConns:           10,
			MaxOpenConns:           100,
			ConnMaxLifetimeMinutes: 30,
		},
		Redis: RedisConfig{
			Enabled:           false,
			Host:              "localhost",
			Port:              6379,
			Password:          "",
			DB:                0,
			PoolSize:          100,
			LeaderboardTTLSec: 30,
		},
		Kafka: KafkaConfig{
			Enabled:            false,
			Brokers:            []string{"localhost:9092"},
			ConsumerGroup:      "manh-core",
			ConsumeAwardEvents: false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Award: AwardConfig{
			RateLimitWindowSec: 60,
			RateLimitMax:       8,
		},
		Invoice: InvoiceConfig{
			TokenPrice:         decimal.NewFromFloat(0.1), // 1 代币 = 0.1 结算货币
			TTLMinutes:         15,
			TolerancePct:       decimal.NewFromFloat(0.01),
			SigningSecret:      "dev-secret-change-me",
			TreasuryAddress:    "0x0000000000000000000000000000000000000000",
			ReconcileBatchSize: 200,
		},
		PriceFeed: PriceFeedConfig{
			Source:      "manual",
			ManualRate:  decimal.NewFromFloat(5.0),
			CacheTTLSec: 60,
			AssetID:     "the-open-network",
			VsCurrency:  "ils",
		},
		Withdrawal: WithdrawalConfig{
			Enabled:          true,
			MinPurchaseTotal: decimal.NewFromInt(100),
		},
		Chain: ChainConfig{
			Enabled:       false,
			RPCURL:        "http://localhost:8545",
			Confirmations: 12,
			MaxBlockSpan:  100,
			Decimals:      9,
		},
		Worker: WorkerConfig{
			InvoiceExpiry: ExpiryWorkerConfig{
				Enabled:          true,
				CheckIntervalSec: 60,
				BatchSize:        200,
			},
			OrderExpiry: ExpiryWorkerConfig{
				Enabled:          true,
				CheckIntervalSec: 30,
				BatchSize:        100,
			},
			Reconcile: ExpiryWorkerConfig{
				Enabled:          false,
				CheckIntervalSec: 30,
				BatchSize:        200,
			},
			Integrity: ExpiryWorkerConfig{
				Enabled:          true,
				CheckIntervalSec: 300,
				BatchSize:        100,
			},
		},
		Internal: InternalConfig{
			Secret: "dev-internal-secret",
		},
	}
}

// loadFromEnv 从环境变量加载配置
func loadFromEnv(cfg *Config) {
	// 数据库配置
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Database.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if database := os.Getenv("DB_DATABASE"); database != "" {
		cfg.Database.Database = database
	}

	// Redis 配置
	if enabled := os.Getenv("REDIS_ENABLED"); enabled == "true" {
		cfg.Redis.Enabled = true
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.Redis.Host = host
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	// Kafka 配置
	if enabled := os.Getenv("KAFKA_ENABLED"); enabled == "true" {
		cfg.Kafka.Enabled = true
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = []string{brokers}
	}

	// 密钥
	if secret := os.Getenv("INVOICE_SIGNING_SECRET"); secret != "" {
		cfg.Invoice.SigningSecret = secret
	}
	if secret := os.Getenv("INTERNAL_SECRET"); secret != "" {
		cfg.Internal.Secret = secret
	}

	// 链上观测
	if enabled := os.Getenv("CHAIN_ENABLED"); enabled == "true" {
		cfg.Chain.Enabled = true
	}
	if url := os.Getenv("CHAIN_RPC_URL"); url != "" {
		cfg.Chain.RPCURL = url
	}
}
