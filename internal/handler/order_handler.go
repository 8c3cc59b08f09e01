package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/internal/service"
)

// OrderHandler 点对点订单处理器
type OrderHandler struct {
	orders service.OrderService
}

// NewOrderHandler 创建订单处理器
func NewOrderHandler(orders service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type placeOrderRequest struct {
	AccountID int64           `json:"account_id"`
	Side      string          `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	ExpireAt  int64           `json:"expire_at"` // 毫秒时间戳，0 表示不过期
}

// PlaceOrder 下单
// POST /v1/orders
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	side, ok := model.ParseOrderSide(req.Side)
	if !ok {
		BadRequest(c, "side must be buy or sell")
		return
	}

	result, err := h.orders.PlaceOrder(c.Request.Context(), &service.PlaceOrderRequest{
		AccountID: req.AccountID,
		Side:      side,
		Price:     req.Price,
		Amount:    req.Amount,
		ExpireAt:  req.ExpireAt,
	})
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, result)
}

type cancelOrderRequest struct {
	AccountID int64 `json:"account_id"`
}

// CancelOrder 撤单 (仅限挂单人)
// POST /v1/orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req cancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	order, err := h.orders.CancelOrder(c.Request.Context(), req.AccountID, c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, order)
}

// GetOrder 查询订单
// GET /v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, order)
}

// ListOrders 查询账户订单
// GET /v1/orders?account_id=1
func (h *OrderHandler) ListOrders(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Query("account_id"), 10, 64)
	if err != nil || accountID <= 0 {
		BadRequest(c, "invalid account_id")
		return
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), accountID, pagination(c))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, orders)
}

// GetOrderBook 查询盘口
// GET /v1/orderbook?depth=20
func (h *OrderHandler) GetOrderBook(c *gin.Context) {
	depth, _ := strconv.Atoi(c.DefaultQuery("depth", "20"))

	sells, buys, err := h.orders.OrderBook(c.Request.Context(), depth)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"sells": sells, "buys": buys})
}

// ListTrades 查询成交
// GET /v1/trades?account_id=1 按账户分页；不带 account_id 返回最近成交
func (h *OrderHandler) ListTrades(c *gin.Context) {
	if raw := c.Query("account_id"); raw != "" {
		accountID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || accountID <= 0 {
			BadRequest(c, "invalid account_id")
			return
		}
		trades, err := h.orders.ListTrades(c.Request.Context(), accountID, pagination(c))
		if err != nil {
			Error(c, err)
			return
		}
		Success(c, trades)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	trades, err := h.orders.ListRecentTrades(c.Request.Context(), limit)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, trades)
}
