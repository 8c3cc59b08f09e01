package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/manh-exchange/manh-core/internal/chain"
	"github.com/manh-exchange/manh-core/internal/service"
)

// InvoiceHandler 账单处理器
type InvoiceHandler struct {
	invoices service.InvoiceService
}

// NewInvoiceHandler 创建账单处理器
func NewInvoiceHandler(invoices service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

type createInvoiceRequest struct {
	AccountID    int64           `json:"account_id"`
	SourceAmount decimal.Decimal `json:"source_amount"`
}

// CreateInvoice 签发购买账单
// POST /v1/invoices
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	invoice, err := h.invoices.CreateInvoice(c.Request.Context(), req.AccountID, req.SourceAmount)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, invoice)
}

// GetInvoice 查询账单
// GET /v1/invoices/:id
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoices.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, invoice)
}

// ListInvoices 查询账户账单
// GET /v1/accounts/:id/invoices
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}

	invoices, err := h.invoices.ListInvoices(c.Request.Context(), accountID, pagination(c))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, invoices)
}

type reconcileRequest struct {
	Transactions []chain.Transaction `json:"transactions"`
}

// Reconcile 对账 (特权端点)
// POST /v1/reconcile
// 调用方提交观测到的链上转账，逐笔匹配待支付账单
func (h *InvoiceHandler) Reconcile(c *gin.Context) {
	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	report, err := h.invoices.Reconcile(c.Request.Context(), req.Transactions)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, report)
}
