package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/manh-exchange/manh-core/internal/metrics"
	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/internal/repository"
	"github.com/manh-exchange/manh-core/pkg/errs"
	"github.com/manh-exchange/manh-core/pkg/logger"
)

// PlaceOrderRequest 下单请求
type PlaceOrderRequest struct {
	AccountID int64
	Side      model.OrderSide
	Price     decimal.Decimal
	Amount    decimal.Decimal
	ExpireAt  int64 // 可选过期时间 (毫秒)，0 表示不过期
}

// PlaceOrderResult 下单结果
type PlaceOrderResult struct {
	Order  *model.Order   `json:"order"`
	Trades []*model.Trade `json:"trades"` // 下单触发的撮合成交
}

// OrderService 订单服务接口
type OrderService interface {
	// PlaceOrder 下单并触发一轮撮合
	// 资金在成交结算时校验而非下单时预留；下单时仅做软校验
	PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResult, error)

	// CancelOrder 所有者取消
	// 非本人订单返回 errs.ErrForbidden，已终结订单返回 errs.ErrOrderNotOpen
	CancelOrder(ctx context.Context, accountID int64, orderID string) (*model.Order, error)

	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	ListOrders(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.Order, error)

	// OrderBook 当前活跃订单簿 (卖价升序/买价降序)
	OrderBook(ctx context.Context, depth int) (sells, buys []*model.Order, err error)

	ListTrades(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.Trade, error)
	ListRecentTrades(ctx context.Context, limit int) ([]*model.Trade, error)

	// ExpireDue 取消已过期的活跃订单，返回取消数量
	ExpireDue(ctx context.Context, limit int) (int, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	tradeRepo   repository.TradeRepository
	accountRepo repository.AccountRepository
	matching    MatchingService
	nowFn       func() time.Time
}

// NewOrderService 创建订单服务
func NewOrderService(
	orderRepo repository.OrderRepository,
	tradeRepo repository.TradeRepository,
	accountRepo repository.AccountRepository,
	matching MatchingService,
	nowFn func() time.Time,
) OrderService {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &orderService{
		orderRepo:   orderRepo,
		tradeRepo:   tradeRepo,
		accountRepo: accountRepo,
		matching:    matching,
		nowFn:       nowFn,
	}
}

func (s *orderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	// 卖单软校验: 当前余额不足直接拒绝
	// 结算时还会在事务内复验，余额被其他成交耗尽的卖单届时被取消
	if req.Side == model.OrderSideSell {
		account, err := s.accountRepo.GetByID(ctx, req.AccountID)
		if err != nil {
			return nil, err
		}
		if account.Balance.LessThan(req.Amount) {
			return nil, errs.ErrInsufficientBalance.WithMessagef(
				"account %d balance %s below sell amount %s", req.AccountID, account.Balance, req.Amount)
		}
	} else {
		if _, err := s.accountRepo.GetOrCreate(ctx, req.AccountID, ""); err != nil {
			return nil, err
		}
	}

	order := &model.Order{
		OrderID:   uuid.NewString(),
		AccountID: req.AccountID,
		Side:      req.Side,
		Price:     req.Price,
		Amount:    req.Amount,
		Status:    model.OrderStatusOpen,
		ExpireAt:  req.ExpireAt,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}
	metrics.RecordOrder("created", req.Side.String())

	trades, err := s.matching.Run(ctx)
	if err != nil {
		// 订单已落库，撮合失败留给下一轮
		logger.Warn("matching pass after place failed", "order_id", order.OrderID, "error", err)
		return &PlaceOrderResult{Order: order}, nil
	}

	// 回读状态，撮合可能已推进该订单
	placed, err := s.orderRepo.GetByOrderID(ctx, order.OrderID)
	if err != nil {
		placed = order
	}
	return &PlaceOrderResult{Order: placed, Trades: trades}, nil
}

func (s *orderService) validate(req *PlaceOrderRequest) error {
	if req.AccountID <= 0 {
		return errs.ErrValidation.WithMessage("invalid account id")
	}
	if req.Side != model.OrderSideBuy && req.Side != model.OrderSideSell {
		return errs.ErrValidation.WithMessage("invalid order side")
	}
	if req.Price.LessThanOrEqual(decimal.Zero) {
		return errs.ErrValidation.WithMessage("price must be positive")
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return errs.ErrValidation.WithMessage("amount must be positive")
	}
	if req.ExpireAt != 0 && req.ExpireAt <= s.nowFn().UnixMilli() {
		return errs.ErrValidation.WithMessage("expire_at already passed")
	}
	return nil
}

func (s *orderService) CancelOrder(ctx context.Context, accountID int64, orderID string) (*model.Order, error) {
	if orderID == "" || accountID <= 0 {
		return nil, errs.ErrValidation.WithMessage("order id and account id required")
	}

	ok, err := s.orderRepo.CancelOwned(ctx, orderID, accountID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 未落行: 区分不存在/非本人/已终结
		order, err := s.orderRepo.GetByOrderID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order.AccountID != accountID {
			return nil, errs.ErrForbidden.WithMessage("not order owner")
		}
		return nil, errs.ErrOrderNotOpen.WithMessagef("order %s is %s", orderID, order.Status)
	}

	order, err := s.orderRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	metrics.RecordOrder("cancelled", order.Side.String())
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	return s.orderRepo.GetByOrderID(ctx, orderID)
}

func (s *orderService) ListOrders(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.Order, error) {
	return s.orderRepo.ListByAccount(ctx, accountID, p)
}

func (s *orderService) OrderBook(ctx context.Context, depth int) ([]*model.Order, []*model.Order, error) {
	if depth <= 0 || depth > 100 {
		depth = 20
	}
	sells, err := s.orderRepo.ListOpenSells(ctx, depth)
	if err != nil {
		return nil, nil, err
	}
	buys, err := s.orderRepo.ListOpenBuys(ctx, depth)
	if err != nil {
		return nil, nil, err
	}
	return sells, buys, nil
}

func (s *orderService) ListTrades(ctx context.Context, accountID int64, p *repository.Pagination) ([]*model.Trade, error) {
	return s.tradeRepo.ListByAccount(ctx, accountID, p)
}

func (s *orderService) ListRecentTrades(ctx context.Context, limit int) ([]*model.Trade, error) {
	return s.tradeRepo.ListRecent(ctx, limit)
}

func (s *orderService) ExpireDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	expired, err := s.orderRepo.ListExpired(ctx, s.nowFn().UnixMilli(), limit)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, order := range expired {
		ok, err := s.orderRepo.Cancel(ctx, order.OrderID)
		if err != nil {
			return cancelled, err
		}
		if ok {
			cancelled++
			metrics.RecordOrder("expired", order.Side.String())
			logger.Info("order expired", "order_id", order.OrderID, "account_id", order.AccountID)
		}
	}
	return cancelled, nil
}
