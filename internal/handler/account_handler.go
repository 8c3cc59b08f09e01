package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/manh-exchange/manh-core/internal/repository"
	"github.com/manh-exchange/manh-core/internal/service"
)

// LeaderboardReader 排行榜读取接口 (缓存或直连 SQL 聚合)
type LeaderboardReader interface {
	Get(ctx context.Context, scope, bucketKey string, limit int) ([]*repository.LeaderboardRow, error)
}

// AccountHandler 账户处理器
type AccountHandler struct {
	ledger      service.LedgerService
	leaderboard LeaderboardReader
}

// NewAccountHandler 创建账户处理器
func NewAccountHandler(ledger service.LedgerService, leaderboard LeaderboardReader) *AccountHandler {
	return &AccountHandler{ledger: ledger, leaderboard: leaderboard}
}

// balanceResponse 余额响应
type balanceResponse struct {
	AccountID    int64  `json:"account_id"`
	DisplayName  string `json:"display_name"`
	Balance      string `json:"balance"`
	DerivedScore int64  `json:"derived_score"`
	OptedIn      bool   `json:"opted_in"`
}

// GetBalance 查询余额
// GET /v1/accounts/:id/balance
func (h *AccountHandler) GetBalance(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}

	account, err := h.ledger.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, &balanceResponse{
		AccountID:    account.ID,
		DisplayName:  account.DisplayName,
		Balance:      account.Balance.String(),
		DerivedScore: account.DerivedScore(),
		OptedIn:      account.OptedIn,
	})
}

type optInRequest struct {
	OptedIn     bool   `json:"opted_in"`
	DisplayName string `json:"display_name"`
}

// SetOptIn 设置排行榜可见性
// POST /v1/accounts/:id/optin
func (h *AccountHandler) SetOptIn(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}

	var req optInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if err := h.ledger.SetOptIn(c.Request.Context(), accountID, req.OptedIn, req.DisplayName); err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"account_id": accountID, "opted_in": req.OptedIn})
}

// GetLedger 查询台账
// GET /v1/accounts/:id/ledger
func (h *AccountHandler) GetLedger(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}

	entries, err := h.ledger.GetLedger(c.Request.Context(), accountID, pagination(c))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, entries)
}

// GetLeaderboard 查询排行榜
// GET /v1/leaderboard?scope=daily&key=2026-08-31&limit=10
func (h *AccountHandler) GetLeaderboard(c *gin.Context) {
	scope := c.Query("scope")
	bucketKey := c.Query("key")
	if scope == "" || bucketKey == "" {
		BadRequest(c, "scope and key are required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	rows, err := h.leaderboard.Get(c.Request.Context(), scope, bucketKey, limit)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, rows)
}

func parseAccountID(c *gin.Context) (int64, bool) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || accountID <= 0 {
		BadRequest(c, "invalid account id")
		return 0, false
	}
	return accountID, true
}

func pagination(c *gin.Context) *repository.Pagination {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return &repository.Pagination{Page: page, PageSize: pageSize}
}
