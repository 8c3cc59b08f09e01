package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/manh-exchange/manh-core/internal/metrics"
	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/internal/ratelimit"
	"github.com/manh-exchange/manh-core/pkg/errs"
	"github.com/manh-exchange/manh-core/pkg/logger"
)

// AwardRequest 奖励事件
type AwardRequest struct {
	AccountID   int64
	DisplayName string
	EventType   model.EventType
	Amount      decimal.Decimal
	BucketScope string                 // 聚合范围 (daily/weekly/alltime)
	BucketKey   string                 // 聚合键 (如 2026-08-31)
	Fingerprint map[string]interface{} // 事件指纹，参与去重键计算
	Metadata    string
}

// AwardResult 奖励结果
type AwardResult struct {
	DedupKey  string          `json:"dedup_key"`
	Duplicate bool            `json:"duplicate"` // true 表示该事件此前已记账，余额未变
	Balance   decimal.Decimal `json:"balance"`   // 记账后余额 (重复时为首次记账后余额)
	Entry     *model.LedgerEntry `json:"entry"`
}

// EntryPublisher 台账条目发布接口
type EntryPublisher interface {
	PublishEntry(ctx context.Context, entry *model.LedgerEntry) error
}

// AwardService 奖励引擎接口
type AwardService interface {
	// Award 幂等发放奖励
	// 重复事件返回首次记账的去重键，不报错
	Award(ctx context.Context, req *AwardRequest) (*AwardResult, error)
}

type awardService struct {
	ledger    LedgerService
	limiter   ratelimit.Limiter
	publisher EntryPublisher
}

// NewAwardService 创建奖励服务
// limiter / publisher 可为 nil (禁用对应功能)
func NewAwardService(ledger LedgerService, limiter ratelimit.Limiter, publisher EntryPublisher) AwardService {
	return &awardService{
		ledger:    ledger,
		limiter:   limiter,
		publisher: publisher,
	}
}

func (s *awardService) Award(ctx context.Context, req *AwardRequest) (*AwardResult, error) {
	start := time.Now()

	if err := s.validate(req); err != nil {
		metrics.RecordAward(req.EventType.String(), "rejected")
		return nil, err
	}

	// 限流先于去重: 重复事件同样消耗配额
	// 窗口按 (账户, 事件类型) 划分，推荐流量打满不影响人工发放
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, fmt.Sprintf("award:%d:%s", req.AccountID, req.EventType))
		if err != nil {
			// 限流器故障不拦截记账，幂等键兜底
			logger.Warn("rate limiter unavailable", "account_id", req.AccountID, "error", err)
		} else if !allowed {
			metrics.RecordAward(req.EventType.String(), "rate_limited")
			return nil, errs.ErrRateLimited.WithMessagef("account %d award rate exceeded", req.AccountID)
		}
	}

	// 计入排行榜的事件要求账户已 opt-in；购买/提现类入账不受此限制
	if req.EventType.AffectsLeaderboard() {
		account, err := s.ledger.GetAccount(ctx, req.AccountID)
		if err != nil && !errs.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		if account == nil || !account.OptedIn {
			metrics.RecordAward(req.EventType.String(), "rejected")
			return nil, errs.ErrNotEligible.WithMessagef("account %d not opted in", req.AccountID)
		}
	}

	bucket := fmt.Sprintf("%s:%s", req.BucketScope, req.BucketKey)
	dedupKey, err := model.ComputeDedupKey(req.AccountID, req.EventType, bucket, req.Fingerprint)
	if err != nil {
		metrics.RecordAward(req.EventType.String(), "rejected")
		return nil, errs.ErrValidation.WithMessagef("fingerprint not canonicalizable: %v", err)
	}

	entry, inserted, err := s.ledger.Apply(ctx, &LedgerApplyParams{
		AccountID:   req.AccountID,
		DisplayName: req.DisplayName,
		EventType:   req.EventType,
		Amount:      req.Amount,
		DedupKey:    dedupKey,
		BucketScope: req.BucketScope,
		BucketKey:   req.BucketKey,
		Metadata:    req.Metadata,
	})
	if err != nil {
		metrics.RecordAward(req.EventType.String(), "rejected")
		return nil, err
	}

	if !inserted {
		metrics.RecordAward(req.EventType.String(), "duplicate")
		return &AwardResult{
			DedupKey:  entry.DedupKey,
			Duplicate: true,
			Balance:   entry.BalanceAfter,
			Entry:     entry,
		}, nil
	}

	metrics.RecordAward(req.EventType.String(), "credited")
	metrics.AwardLatency.WithLabelValues(req.EventType.String()).Observe(time.Since(start).Seconds())

	if s.publisher != nil {
		if err := s.publisher.PublishEntry(ctx, entry); err != nil {
			logger.Warn("publish award entry failed", "dedup_key", entry.DedupKey, "error", err)
		}
	}

	return &AwardResult{
		DedupKey: entry.DedupKey,
		Balance:  entry.BalanceAfter,
		Entry:    entry,
	}, nil
}

func (s *awardService) validate(req *AwardRequest) error {
	if req.AccountID <= 0 {
		return errs.ErrValidation.WithMessage("invalid account id")
	}
	if !req.EventType.IsValid() {
		return errs.ErrValidation.WithMessagef("unknown event type %d", req.EventType)
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return errs.ErrValidation.WithMessage("award amount must be positive")
	}
	if req.BucketScope == "" || req.BucketKey == "" {
		return errs.ErrValidation.WithMessage("bucket scope and key required")
	}
	return nil
}
