package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/pkg/errs"
)

// InvoiceRepository 账单仓储接口
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	GetByInvoiceID(ctx context.Context, invoiceID string) (*model.Invoice, error)
	ListByAccount(ctx context.Context, accountID int64, p *Pagination) ([]*model.Invoice, error)

	// ListPending 返回未过期的 PENDING 账单 (对账扫描范围，按创建时间升序)
	ListPending(ctx context.Context, nowMilli int64, limit int) ([]*model.Invoice, error)

	// ConfirmPending 条件更新 PENDING → CONFIRMED
	// 并发对账时仅一个赢家；返回 false 表示账单已终结或已过期
	ConfirmPending(ctx context.Context, invoiceID, txHash string, nowMilli int64) (bool, error)

	// ExpireDue 将已过期的 PENDING 账单置为 EXPIRED，返回条数
	ExpireDue(ctx context.Context, nowMilli int64) (int64, error)

	// CreatePurchase 幂等写入购买记录 (invoice_id 唯一)
	CreatePurchase(ctx context.Context, purchase *model.Purchase) error

	// SumPurchasesByAccount 账户累计购买代币数 (提现资格)
	SumPurchasesByAccount(ctx context.Context, accountID int64) (decimal.Decimal, error)
}

type invoiceRepository struct {
	*Repository
}

// NewInvoiceRepository 创建账单仓储
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{Repository: NewRepository(db)}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return r.DB(ctx).Create(invoice).Error
}

func (r *invoiceRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.DB(ctx).Where("invoice_id = ?", invoiceID).First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrNotFound.WithMessagef("invoice %s not found", invoiceID)
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) ListByAccount(ctx context.Context, accountID int64, p *Pagination) ([]*model.Invoice, error) {
	var invoices []*model.Invoice
	query := r.DB(ctx).Where("account_id = ?", accountID).Order("id DESC")
	if p != nil {
		query = query.Offset(p.Offset()).Limit(p.Limit())
	}
	if err := query.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) ListPending(ctx context.Context, nowMilli int64, limit int) ([]*model.Invoice, error) {
	var invoices []*model.Invoice
	err := r.DB(ctx).
		Where("status = ? AND expires_at > ?", model.InvoiceStatusPending, nowMilli).
		Order("created_at ASC").
		Limit(limit).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) ConfirmPending(ctx context.Context, invoiceID, txHash string, nowMilli int64) (bool, error) {
	// 条件更新即并发保护: 过期或已终结的账单不会落行
	result := r.DB(ctx).Model(&model.Invoice{}).
		Where("invoice_id = ? AND status = ? AND expires_at > ?",
			invoiceID, model.InvoiceStatusPending, nowMilli).
		Updates(map[string]interface{}{
			"status":       model.InvoiceStatusConfirmed,
			"tx_hash":      txHash,
			"confirmed_at": nowMilli,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *invoiceRepository) ExpireDue(ctx context.Context, nowMilli int64) (int64, error) {
	result := r.DB(ctx).Model(&model.Invoice{}).
		Where("status = ? AND expires_at <= ?", model.InvoiceStatusPending, nowMilli).
		Update("status", model.InvoiceStatusExpired)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *invoiceRepository) CreatePurchase(ctx context.Context, purchase *model.Purchase) error {
	if purchase.CreatedAt == 0 {
		purchase.CreatedAt = time.Now().UnixMilli()
	}
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "invoice_id"}},
		DoNothing: true,
	}).Create(purchase).Error
}

func (r *invoiceRepository) SumPurchasesByAccount(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.DB(ctx).Model(&model.Purchase{}).
		Select("SUM(token_amount)").
		Where("account_id = ?", accountID).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}
