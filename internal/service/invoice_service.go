package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/manh-exchange/manh-core/internal/chain"
	"github.com/manh-exchange/manh-core/internal/metrics"
	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/internal/pricefeed"
	"github.com/manh-exchange/manh-core/internal/repository"
	"github.com/manh-exchange/manh-core/pkg/errs"
	"github.com/manh-exchange/manh-core/pkg/logger"
)

// InvoiceParams 账单参数
type InvoiceParams struct {
	TokenPrice      decimal.Decimal // 代币结算价
	TTL             time.Duration   // 账单有效期
	TolerancePct    decimal.Decimal // 链上支付容差 (占应付金额比例)
	TreasuryAddress string          // 收款地址
	BatchSize       int             // 单次对账扫描上限
}

// ReconcileReport 对账结果
type ReconcileReport struct {
	Checked   int      `json:"checked"`   // 检查的链上交易数
	Confirmed int      `json:"confirmed"` // 本次确认的账单数
	Invoices  []string `json:"invoices"`  // 确认的账单 ID
}

// InvoiceService 账单服务接口
type InvoiceService interface {
	// CreateInvoice 签发购买账单
	// token_amount = source / token_price (9 位小数)
	// chain_amount = source / rate (向上取整到 9 位小数，宁可多收不少收)
	CreateInvoice(ctx context.Context, accountID int64, sourceAmount decimal.Decimal) (*model.Invoice, error)

	GetInvoice(ctx context.Context, invoiceID string) (*model.Invoice, error)
	ListInvoices(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.Invoice, error)

	// Reconcile 对账: 将观测到的链上交易与 PENDING 账单匹配
	// 备注精确匹配 + 签名校验 + 金额容差内才确认；重复调用幂等
	Reconcile(ctx context.Context, observed []chain.Transaction) (*ReconcileReport, error)

	// ExpireDue 过期清理，返回置为 EXPIRED 的账单数
	ExpireDue(ctx context.Context) (int64, error)
}

type invoiceService struct {
	tx          TxManager
	invoiceRepo repository.InvoiceRepository
	accountRepo repository.AccountRepository
	ledger      LedgerService
	feed        *pricefeed.CachedFeed
	signer      *chain.MemoSigner
	params      InvoiceParams
	nowFn       func() time.Time
}

// NewInvoiceService 创建账单服务
// nowFn 为空时使用 time.Now
func NewInvoiceService(
	tx TxManager,
	invoiceRepo repository.InvoiceRepository,
	accountRepo repository.AccountRepository,
	ledger LedgerService,
	feed *pricefeed.CachedFeed,
	signer *chain.MemoSigner,
	params InvoiceParams,
	nowFn func() time.Time,
) InvoiceService {
	if nowFn == nil {
		nowFn = time.Now
	}
	if params.BatchSize <= 0 || params.BatchSize > 200 {
		params.BatchSize = 200
	}
	return &invoiceService{
		tx:          tx,
		invoiceRepo: invoiceRepo,
		accountRepo: accountRepo,
		ledger:      ledger,
		feed:        feed,
		signer:      signer,
		params:      params,
		nowFn:       nowFn,
	}
}

func (s *invoiceService) CreateInvoice(ctx context.Context, accountID int64, sourceAmount decimal.Decimal) (*model.Invoice, error) {
	if accountID <= 0 {
		return nil, errs.ErrValidation.WithMessage("invalid account id")
	}
	if sourceAmount.LessThanOrEqual(decimal.Zero) {
		return nil, errs.ErrValidation.WithMessage("source amount must be positive")
	}

	quote, err := s.feed.Quote(ctx)
	if err != nil {
		return nil, err
	}

	now := s.nowFn()
	expiresAt := now.Add(s.params.TTL)

	invoiceID, err := chain.NewInvoiceID(accountID, now)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInternal, err)
	}

	tokenAmount := sourceAmount.DivRound(s.params.TokenPrice, 9)
	chainAmount := sourceAmount.Div(quote.Rate).RoundCeil(9)

	invoice := &model.Invoice{
		InvoiceID:    invoiceID,
		AccountID:    accountID,
		SourceAmount: sourceAmount,
		TokenAmount:  tokenAmount,
		ChainAmount:  chainAmount,
		Rate:         quote.Rate,
		Address:      s.params.TreasuryAddress,
		Memo:         s.signer.BuildMemo(invoiceID, accountID, sourceAmount, expiresAt),
		Status:       model.InvoiceStatusPending,
		CreatedAt:    now.UnixMilli(),
		ExpiresAt:    expiresAt.UnixMilli(),
	}

	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.accountRepo.GetOrCreate(ctx, accountID, ""); err != nil {
			return err
		}
		return s.invoiceRepo.Create(ctx, invoice)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordInvoice("created")
	logger.Info("invoice created",
		"invoice_id", invoiceID,
		"account_id", accountID,
		"source_amount", sourceAmount.String(),
		"chain_amount", chainAmount.String(),
		"rate", quote.Rate.String(),
	)
	return invoice, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	if invoiceID == "" {
		return nil, errs.ErrValidation.WithMessage("invoice id required")
	}
	return s.invoiceRepo.GetByInvoiceID(ctx, invoiceID)
}

func (s *invoiceService) ListInvoices(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.Invoice, error) {
	return s.invoiceRepo.ListByAccount(ctx, accountID, p)
}

func (s *invoiceService) Reconcile(ctx context.Context, observed []chain.Transaction) (*ReconcileReport, error) {
	now := s.nowFn().UnixMilli()

	pending, err := s.invoiceRepo.ListPending(ctx, now, s.params.BatchSize)
	if err != nil {
		return nil, err
	}

	byMemo := make(map[string]*model.Invoice, len(pending))
	for _, inv := range pending {
		byMemo[inv.Memo] = inv
	}

	report := &ReconcileReport{}
	for _, tx := range observed {
		metrics.ReconcileChecked.Inc()
		report.Checked++

		invoice, ok := byMemo[tx.Memo]
		if !ok {
			continue // 备注不匹配任何待支付账单
		}
		if !s.signer.Verify(tx.Memo, invoice.AccountID, invoice.SourceAmount, time.UnixMilli(invoice.ExpiresAt)) {
			logger.Warn("invoice memo signature mismatch",
				"invoice_id", invoice.InvoiceID, "tx_hash", tx.Hash)
			continue
		}
		if !s.amountAcceptable(invoice.ChainAmount, tx.Amount) {
			logger.Warn("invoice payment amount out of tolerance",
				"invoice_id", invoice.InvoiceID,
				"expected", invoice.ChainAmount.String(),
				"observed", tx.Amount.String(),
			)
			continue
		}

		confirmed, err := s.confirm(ctx, invoice, tx, now)
		if err != nil {
			return nil, err
		}
		if confirmed {
			report.Confirmed++
			report.Invoices = append(report.Invoices, invoice.InvoiceID)
			delete(byMemo, tx.Memo)
		}
	}

	return report, nil
}

// confirm 确认单个账单: 状态迁移 + 购买记录 + 代币入账，同一事务内
// 条件更新是并发对账的唯一仲裁，输掉竞争或账单已过期时静默跳过
func (s *invoiceService) confirm(ctx context.Context, invoice *model.Invoice, tx chain.Transaction, nowMilli int64) (bool, error) {
	var confirmed bool
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		ok, err := s.invoiceRepo.ConfirmPending(ctx, invoice.InvoiceID, tx.Hash, nowMilli)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if err := s.invoiceRepo.CreatePurchase(ctx, &model.Purchase{
			InvoiceID:   invoice.InvoiceID,
			AccountID:   invoice.AccountID,
			TokenAmount: invoice.TokenAmount,
			ChainAmount: invoice.ChainAmount,
			TxHash:      tx.Hash,
		}); err != nil {
			return err
		}

		dedupKey, err := model.ComputeDedupKey(invoice.AccountID, model.EventTypePurchase, "",
			map[string]interface{}{"invoice_id": invoice.InvoiceID})
		if err != nil {
			return err
		}
		if _, _, err := s.ledger.Apply(ctx, &LedgerApplyParams{
			AccountID: invoice.AccountID,
			EventType: model.EventTypePurchase,
			Amount:    invoice.TokenAmount,
			DedupKey:  dedupKey,
			Metadata:  fmt.Sprintf(`{"invoice_id":%q,"tx_hash":%q}`, invoice.InvoiceID, tx.Hash),
		}); err != nil {
			return err
		}

		confirmed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if confirmed {
		metrics.RecordInvoice("confirmed")
		metrics.ReconcileConfirmed.Inc()
		logger.Info("invoice confirmed",
			"invoice_id", invoice.InvoiceID,
			"account_id", invoice.AccountID,
			"tx_hash", tx.Hash,
		)
	}
	return confirmed, nil
}

// amountAcceptable 链上支付金额是否在容差内
// 容差对称: |observed - expected| 不超过应付金额的容差比例
// 超额支付同样拒绝，账单留在 PENDING 等人工处理
func (s *invoiceService) amountAcceptable(expected, observed decimal.Decimal) bool {
	tolerance := expected.Mul(s.params.TolerancePct)
	return observed.Sub(expected).Abs().LessThanOrEqual(tolerance)
}

func (s *invoiceService) ExpireDue(ctx context.Context) (int64, error) {
	n, err := s.invoiceRepo.ExpireDue(ctx, s.nowFn().UnixMilli())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.InvoicesTotal.WithLabelValues("expired").Add(float64(n))
		logger.Info("invoices expired", "count", n)
	}
	return n, nil
}
