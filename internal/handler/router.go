package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers 路由装配所需的处理器集合
type Handlers struct {
	Account    *AccountHandler
	Award      *AwardHandler
	Invoice    *InvoiceHandler
	Order      *OrderHandler
	Withdrawal *WithdrawalHandler
	Health     *HealthHandler
}

// NewRouter 装配路由
// internalSecret 为空时所有特权端点拒绝访问
func NewRouter(h *Handlers, internalSecret string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(Recovery(), AccessLog())

	r.GET("/healthz", h.Health.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.GET("/accounts/:id/balance", h.Account.GetBalance)
		v1.POST("/accounts/:id/optin", h.Account.SetOptIn)
		v1.GET("/accounts/:id/ledger", h.Account.GetLedger)
		v1.GET("/accounts/:id/invoices", h.Invoice.ListInvoices)
		v1.GET("/leaderboard", h.Account.GetLeaderboard)

		v1.POST("/invoices", h.Invoice.CreateInvoice)
		v1.GET("/invoices/:id", h.Invoice.GetInvoice)

		v1.POST("/orders", h.Order.PlaceOrder)
		v1.GET("/orders", h.Order.ListOrders)
		v1.GET("/orders/:id", h.Order.GetOrder)
		v1.POST("/orders/:id/cancel", h.Order.CancelOrder)
		v1.GET("/orderbook", h.Order.GetOrderBook)
		v1.GET("/trades", h.Order.ListTrades)

		v1.POST("/withdrawals", h.Withdrawal.Request)
		v1.GET("/withdrawals/:id", h.Withdrawal.Get)
	}

	internal := v1.Group("")
	internal.Use(InternalAuth(internalSecret))
	{
		internal.POST("/awards", h.Award.CreateAward)
		internal.POST("/reconcile", h.Invoice.Reconcile)
		internal.POST("/withdrawals/:id/status", h.Withdrawal.UpdateStatus)
	}

	return r
}
