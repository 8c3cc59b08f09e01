package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/internal/service"
)

// AwardHandler 奖励处理器
type AwardHandler struct {
	awards service.AwardService
}

// NewAwardHandler 创建奖励处理器
func NewAwardHandler(awards service.AwardService) *AwardHandler {
	return &AwardHandler{awards: awards}
}

type awardRequest struct {
	AccountID   int64                  `json:"account_id"`
	DisplayName string                 `json:"display_name"`
	EventType   string                 `json:"event_type"`
	Amount      decimal.Decimal        `json:"amount"`
	BucketScope string                 `json:"bucket_scope"`
	BucketKey   string                 `json:"bucket_key"`
	Fingerprint map[string]interface{} `json:"fingerprint"`
	Metadata    string                 `json:"metadata"`
}

// CreateAward 发放奖励 (特权端点)
// POST /v1/awards
// 重复事件返回 200 与首次记账的 dedup_key，duplicate=true
func (h *AwardHandler) CreateAward(c *gin.Context) {
	var req awardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	eventType, ok := model.ParseEventType(req.EventType)
	if !ok {
		BadRequest(c, "unknown event_type "+req.EventType)
		return
	}

	result, err := h.awards.Award(c.Request.Context(), &service.AwardRequest{
		AccountID:   req.AccountID,
		DisplayName: req.DisplayName,
		EventType:   eventType,
		Amount:      req.Amount,
		BucketScope: req.BucketScope,
		BucketKey:   req.BucketKey,
		Fingerprint: req.Fingerprint,
		Metadata:    req.Metadata,
	})
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, result)
}
