package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/manh-exchange/manh-core/internal/service"
	"github.com/manh-exchange/manh-core/pkg/errs"
)

// WithdrawalHandler 提现处理器
type WithdrawalHandler struct {
	withdrawals service.WithdrawalService
}

// NewWithdrawalHandler 创建提现处理器
func NewWithdrawalHandler(withdrawals service.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals}
}

type withdrawalRequest struct {
	AccountID int64           `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	ToAddress string          `json:"to_address"`
}

// Request 申请提现
// POST /v1/withdrawals
func (h *WithdrawalHandler) Request(c *gin.Context) {
	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	withdrawal, err := h.withdrawals.Request(c.Request.Context(), req.AccountID, req.Amount, req.ToAddress)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, withdrawal)
}

// Get 查询提现
// GET /v1/withdrawals/:id
func (h *WithdrawalHandler) Get(c *gin.Context) {
	withdrawal, err := h.withdrawals.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, withdrawal)
}

type withdrawalStatusRequest struct {
	Status string `json:"status"` // sent | rejected
	Note   string `json:"note"`
}

// UpdateStatus 审批提现 (特权端点)
// POST /v1/withdrawals/:id/status
func (h *WithdrawalHandler) UpdateStatus(c *gin.Context) {
	var req withdrawalStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	withdrawID := c.Param("id")
	var err error
	var result interface{}
	switch req.Status {
	case "sent":
		result, err = h.withdrawals.Approve(c.Request.Context(), withdrawID, req.Note)
	case "rejected":
		result, err = h.withdrawals.Reject(c.Request.Context(), withdrawID, req.Note)
	default:
		Error(c, errs.ErrValidation.WithMessage("status must be sent or rejected"))
		return
	}
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, result)
}
