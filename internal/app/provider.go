package app

import (
	"time"

	"github.com/manh-exchange/manh-core/internal/config"
	"github.com/manh-exchange/manh-core/internal/pricefeed"
	"github.com/manh-exchange/manh-core/internal/ratelimit"
	"github.com/manh-exchange/manh-core/internal/service"
)

// 配置到服务参数的装配

// invoiceParams 账单服务参数
func invoiceParams(cfg *config.Config) service.InvoiceParams {
	return service.InvoiceParams{
		TokenPrice:      cfg.Invoice.TokenPrice,
		TTL:             time.Duration(cfg.Invoice.TTLMinutes) * time.Minute,
		TolerancePct:    cfg.Invoice.TolerancePct,
		TreasuryAddress: cfg.Invoice.TreasuryAddress,
		BatchSize:       cfg.Invoice.ReconcileBatchSize,
	}
}

// withdrawalParams 提现服务参数
func withdrawalParams(cfg *config.Config) service.WithdrawalParams {
	return service.WithdrawalParams{
		Enabled:          cfg.Withdrawal.Enabled,
		MinPurchaseTotal: cfg.Withdrawal.MinPurchaseTotal,
	}
}

// rateLimitConfig 奖励限流配置
func rateLimitConfig(cfg *config.Config) ratelimit.Config {
	return ratelimit.Config{
		Window: time.Duration(cfg.Award.RateLimitWindowSec) * time.Second,
		Limit:  cfg.Award.RateLimitMax,
		Prefix: "manh:rl",
	}
}

// priceProvider 根据配置选择汇率来源
func priceProvider(cfg *config.Config) pricefeed.Provider {
	if cfg.PriceFeed.Source == "coingecko" {
		return pricefeed.NewCoinGeckoProvider(
			cfg.PriceFeed.Endpoint,
			cfg.PriceFeed.AssetID,
			cfg.PriceFeed.VsCurrency,
		)
	}
	return pricefeed.NewManualProvider(cfg.PriceFeed.ManualRate)
}
