// Package app 提供应用生命周期管理
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/manh-exchange/manh-core/internal/cache"
	"github.com/manh-exchange/manh-core/internal/chain"
	"github.com/manh-exchange/manh-core/internal/config"
	"github.com/manh-exchange/manh-core/internal/handler"
	"github.com/manh-exchange/manh-core/internal/kafka"
	"github.com/manh-exchange/manh-core/internal/pricefeed"
	"github.com/manh-exchange/manh-core/internal/publisher"
	"github.com/manh-exchange/manh-core/internal/ratelimit"
	"github.com/manh-exchange/manh-core/internal/repository"
	"github.com/manh-exchange/manh-core/internal/service"
	"github.com/manh-exchange/manh-core/internal/worker"
	"github.com/manh-exchange/manh-core/pkg/logger"
)

// App 应用实例
type App struct {
	cfg *config.Config

	// 基础设施
	db  *gorm.DB
	rdb *redis.Client

	// Kafka
	producer *kafka.Producer
	consumer *kafka.RetryConsumerGroup

	// HTTP
	httpServer *http.Server

	// 仓储层
	txManager      *repository.Repository
	accountRepo    repository.AccountRepository
	ledgerRepo     repository.LedgerRepository
	invoiceRepo    repository.InvoiceRepository
	orderRepo      repository.OrderRepository
	tradeRepo      repository.TradeRepository
	withdrawalRepo repository.WithdrawalRepository

	// 服务层
	ledgerSvc     service.LedgerService
	awardSvc      service.AwardService
	invoiceSvc    service.InvoiceService
	matchingSvc   service.MatchingService
	orderSvc      service.OrderService
	withdrawalSvc service.WithdrawalService

	// 消息发布者
	ledgerPublisher *publisher.LedgerPublisher
	tradePublisher  *publisher.TradePublisher

	// 排行榜缓存
	leaderboard *cache.LeaderboardCache

	// 链上观测
	gateway chain.Gateway

	// Workers
	invoiceExpiryWorker  *worker.InvoiceExpiryWorker
	orderExpiryWorker    *worker.OrderExpiryWorker
	chainReconcileWorker *worker.ChainReconcileWorker
	integrityWorker      *worker.IntegrityWorker

	// 生命周期
	ctx    context.Context
	cancel context.CancelFunc
}

// New 创建应用实例
func New(cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run 启动应用并阻塞到退出信号
func (a *App) Run() error {
	if err := a.initInfra(); err != nil {
		return fmt.Errorf("init infrastructure: %w", err)
	}

	if err := AutoMigrate(a.db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	a.initRepositories()
	a.initServices()

	if err := a.initGateway(); err != nil {
		return fmt.Errorf("init chain gateway: %w", err)
	}

	a.initWorkers()
	a.startWorkers()

	if err := a.startConsumer(); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	a.startHTTPServer()

	logger.Info("application started",
		"service", a.cfg.Service.Name,
		"http_port", a.cfg.Service.HTTPPort,
	)

	a.waitForShutdown()
	a.shutdown()
	return nil
}

// initInfra 初始化数据库/Redis/Kafka
func (a *App) initInfra() error {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		a.cfg.Database.Host,
		a.cfg.Database.Port,
		a.cfg.Database.User,
		a.cfg.Database.Password,
		a.cfg.Database.Database,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(a.cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(a.cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(a.cfg.Database.ConnMaxLifetimeMinutes) * time.Minute)
	a.db = db

	if a.cfg.Redis.Enabled {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", a.cfg.Redis.Host, a.cfg.Redis.Port),
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
			PoolSize: a.cfg.Redis.PoolSize,
		})
		if err := a.rdb.Ping(a.ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
	}

	if a.cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(kafka.DefaultProducerConfig(a.cfg.Kafka.Brokers))
		if err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		a.producer = producer
	}

	return nil
}

// initRepositories 初始化仓储层
func (a *App) initRepositories() {
	a.txManager = repository.NewRepository(a.db)
	a.accountRepo = repository.NewAccountRepository(a.db)
	a.ledgerRepo = repository.NewLedgerRepository(a.db)
	a.invoiceRepo = repository.NewInvoiceRepository(a.db)
	a.orderRepo = repository.NewOrderRepository(a.db)
	a.tradeRepo = repository.NewTradeRepository(a.db)
	a.withdrawalRepo = repository.NewWithdrawalRepository(a.db)
}

// initServices 初始化服务层
func (a *App) initServices() {
	if a.producer != nil {
		a.ledgerPublisher = publisher.NewLedgerPublisher(a.producer)
		a.tradePublisher = publisher.NewTradePublisher(a.producer)
	} else {
		a.ledgerPublisher = publisher.NewLedgerPublisher(nil)
		a.tradePublisher = publisher.NewTradePublisher(nil)
	}

	a.ledgerSvc = service.NewLedgerService(a.txManager, a.accountRepo, a.ledgerRepo)

	var limiter ratelimit.Limiter
	if a.rdb != nil {
		limiter = ratelimit.NewSlidingWindow(a.rdb, rateLimitConfig(a.cfg))
	} else {
		limiter = ratelimit.NewMemoryWindow(rateLimitConfig(a.cfg), nil)
	}
	a.awardSvc = service.NewAwardService(a.ledgerSvc, limiter, a.ledgerPublisher)

	feed := pricefeed.NewCachedFeed(
		priceProvider(a.cfg),
		time.Duration(a.cfg.PriceFeed.CacheTTLSec)*time.Second,
		nil,
	)
	signer := chain.NewMemoSigner(a.cfg.Invoice.SigningSecret)
	a.invoiceSvc = service.NewInvoiceService(
		a.txManager, a.invoiceRepo, a.accountRepo, a.ledgerSvc,
		feed, signer, invoiceParams(a.cfg), nil,
	)

	a.matchingSvc = service.NewMatchingService(
		a.txManager, a.orderRepo, a.tradeRepo, a.accountRepo, a.ledgerSvc, a.tradePublisher,
	)
	a.orderSvc = service.NewOrderService(
		a.orderRepo, a.tradeRepo, a.accountRepo, a.matchingSvc, nil,
	)

	a.withdrawalSvc = service.NewWithdrawalService(
		a.txManager, a.withdrawalRepo, a.invoiceRepo, a.ledgerSvc, withdrawalParams(a.cfg),
	)

	a.leaderboard = cache.NewLeaderboardCache(
		a.rdb,
		time.Duration(a.cfg.Redis.LeaderboardTTLSec)*time.Second,
		a.ledgerSvc.Leaderboard,
	)
}

// initGateway 初始化链上观测网关
func (a *App) initGateway() error {
	if !a.cfg.Chain.Enabled {
		return nil
	}
	gateway, err := chain.NewEthGateway(a.ctx, &chain.EthGatewayConfig{
		RPCURL:        a.cfg.Chain.RPCURL,
		Treasury:      a.cfg.Invoice.TreasuryAddress,
		Confirmations: a.cfg.Chain.Confirmations,
		MaxBlockSpan:  a.cfg.Chain.MaxBlockSpan,
		Decimals:      a.cfg.Chain.Decimals,
	})
	if err != nil {
		return err
	}
	a.gateway = gateway
	return nil
}

// initWorkers 初始化后台任务
func (a *App) initWorkers() {
	if a.cfg.Worker.InvoiceExpiry.Enabled {
		a.invoiceExpiryWorker = worker.NewInvoiceExpiryWorker(&worker.InvoiceExpiryWorkerConfig{
			CheckInterval: time.Duration(a.cfg.Worker.InvoiceExpiry.CheckIntervalSec) * time.Second,
		}, a.invoiceSvc)
	}

	if a.cfg.Worker.OrderExpiry.Enabled {
		a.orderExpiryWorker = worker.NewOrderExpiryWorker(&worker.OrderExpiryWorkerConfig{
			CheckInterval: time.Duration(a.cfg.Worker.OrderExpiry.CheckIntervalSec) * time.Second,
			BatchSize:     a.cfg.Worker.OrderExpiry.BatchSize,
		}, a.orderSvc)
	}

	if a.cfg.Worker.Reconcile.Enabled && a.gateway != nil {
		a.chainReconcileWorker = worker.NewChainReconcileWorker(&worker.ChainReconcileWorkerConfig{
			CheckInterval: time.Duration(a.cfg.Worker.Reconcile.CheckIntervalSec) * time.Second,
			StartBlock:    a.cfg.Chain.StartBlock,
		}, a.rdb, a.gateway, a.invoiceSvc)
	}

	if a.cfg.Worker.Integrity.Enabled {
		a.integrityWorker = worker.NewIntegrityWorker(&worker.IntegrityWorkerConfig{
			CheckInterval: time.Duration(a.cfg.Worker.Integrity.CheckIntervalSec) * time.Second,
			BatchSize:     a.cfg.Worker.Integrity.BatchSize,
		}, a.accountRepo, a.ledgerSvc)
	}
}

// startWorkers 启动后台任务
func (a *App) startWorkers() {
	if a.invoiceExpiryWorker != nil {
		a.invoiceExpiryWorker.Start(a.ctx)
	}
	if a.orderExpiryWorker != nil {
		a.orderExpiryWorker.Start(a.ctx)
	}
	if a.chainReconcileWorker != nil {
		a.chainReconcileWorker.Start(a.ctx)
	}
	if a.integrityWorker != nil {
		a.integrityWorker.Start(a.ctx)
	}
}

// startConsumer 启动奖励事件消费
func (a *App) startConsumer() error {
	if !a.cfg.Kafka.Enabled || !a.cfg.Kafka.ConsumeAwardEvents {
		return nil
	}

	consumer, err := kafka.NewRetryConsumerGroupWithDLQ(
		a.cfg.Kafka.Brokers,
		a.cfg.Kafka.ConsumerGroup,
		[]string{kafka.TopicAwardEvents},
		a.producer,
	)
	if err != nil {
		return err
	}
	consumer.RegisterRetryHandler(kafka.TopicAwardEvents, worker.NewAwardConsumer(a.awardSvc))

	if err := consumer.Start(a.ctx); err != nil {
		return err
	}
	a.consumer = consumer
	return nil
}

// startHTTPServer 启动 HTTP 服务
func (a *App) startHTTPServer() {
	router := handler.NewRouter(&handler.Handlers{
		Account:    handler.NewAccountHandler(a.ledgerSvc, a.leaderboard),
		Award:      handler.NewAwardHandler(a.awardSvc),
		Invoice:    handler.NewInvoiceHandler(a.invoiceSvc),
		Order:      handler.NewOrderHandler(a.orderSvc),
		Withdrawal: handler.NewWithdrawalHandler(a.withdrawalSvc),
		Health:     handler.NewHealthHandler(a.db),
	}, a.cfg.Internal.Secret)

	a.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Service.HTTPPort),
		Handler: router,
	}

	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()
}

// waitForShutdown 阻塞到退出信号
func (a *App) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutdown signal received", "signal", sig.String())
}

// shutdown 优雅停机
// 顺序: HTTP 入口 → 消费者 → 后台任务 → 生产者 → 连接
func (a *App) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", "error", err)
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(); err != nil {
			logger.Error("consumer stop failed", "error", err)
		}
	}

	a.cancel()
	if a.invoiceExpiryWorker != nil {
		a.invoiceExpiryWorker.Stop()
	}
	if a.orderExpiryWorker != nil {
		a.orderExpiryWorker.Stop()
	}
	if a.chainReconcileWorker != nil {
		a.chainReconcileWorker.Stop()
	}
	if a.integrityWorker != nil {
		a.integrityWorker.Stop()
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			logger.Error("producer close failed", "error", err)
		}
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			logger.Error("redis close failed", "error", err)
		}
	}

	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("application stopped")
}
