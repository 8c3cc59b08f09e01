package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/manh-exchange/manh-core/internal/metrics"
	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/internal/repository"
	"github.com/manh-exchange/manh-core/pkg/errs"
	"github.com/manh-exchange/manh-core/pkg/logger"
)

// TradeEventPublisher 成交发布接口
type TradeEventPublisher interface {
	PublishTrade(ctx context.Context, trade *model.Trade) error
}

// MatchingService 撮合服务接口
// 价格-时间优先: 卖单按 (价格升序, 创建时间升序)，买单按 (价格降序, 创建时间升序)
// 成交价取挂在簿上的卖方 (maker) 限价
type MatchingService interface {
	// Run 执行一轮撮合，整轮在单个事务内提交
	Run(ctx context.Context) ([]*model.Trade, error)
}

type matchingService struct {
	tx          TxManager
	orderRepo   repository.OrderRepository
	tradeRepo   repository.TradeRepository
	accountRepo repository.AccountRepository
	ledger      LedgerService
	publisher   TradeEventPublisher
	bookDepth   int
}

// NewMatchingService 创建撮合服务
// publisher 可为 nil
func NewMatchingService(
	tx TxManager,
	orderRepo repository.OrderRepository,
	tradeRepo repository.TradeRepository,
	accountRepo repository.AccountRepository,
	ledger LedgerService,
	publisher TradeEventPublisher,
) MatchingService {
	return &matchingService{
		tx:          tx,
		orderRepo:   orderRepo,
		tradeRepo:   tradeRepo,
		accountRepo: accountRepo,
		ledger:      ledger,
		publisher:   publisher,
		bookDepth:   200,
	}
}

func (s *matchingService) Run(ctx context.Context) ([]*model.Trade, error) {
	var trades []*model.Trade

	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		sells, err := s.orderRepo.ListOpenSells(ctx, s.bookDepth)
		if err != nil {
			return err
		}
		buys, err := s.orderRepo.ListOpenBuys(ctx, s.bookDepth)
		if err != nil {
			return err
		}

		si, bi := 0, 0
		for si < len(sells) && bi < len(buys) {
			sell, buy := sells[si], buys[bi]

			// 最优卖价高于最优买价: 簿不交叉，本轮结束
			if sell.Price.GreaterThan(buy.Price) {
				break
			}

			qty := decimal.Min(sell.Remaining(), buy.Remaining())
			if qty.LessThanOrEqual(decimal.Zero) {
				return fmt.Errorf("non-positive match qty for sell %s buy %s", sell.OrderID, buy.OrderID)
			}

			trade, err := s.execute(ctx, sell, buy, qty)
			if err != nil {
				if errs.Is(err, errs.ErrInsufficientBalance) {
					// 结算期复验失败: 卖方余额已被耗尽，取消该卖单并继续撮合
					if _, cerr := s.orderRepo.Cancel(ctx, sell.OrderID); cerr != nil {
						return cerr
					}
					metrics.RecordOrder("cancelled", sell.Side.String())
					logger.Warn("sell order cancelled at settlement",
						"order_id", sell.OrderID, "account_id", sell.AccountID)
					si++
					continue
				}
				return err
			}

			trades = append(trades, trade)

			sell.FilledAmount = sell.FilledAmount.Add(qty)
			buy.FilledAmount = buy.FilledAmount.Add(qty)
			if sell.Remaining().LessThanOrEqual(decimal.Zero) {
				si++
			}
			if buy.Remaining().LessThanOrEqual(decimal.Zero) {
				bi++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, trade := range trades {
		metrics.RecordTrade(trade.Amount.InexactFloat64())
		if s.publisher != nil {
			if perr := s.publisher.PublishTrade(ctx, trade); perr != nil {
				logger.Warn("publish trade failed", "trade_id", trade.TradeID, "error", perr)
			}
		}
	}
	return trades, nil
}

// execute 结算单笔成交: 成交记录 + 双方订单推进 + 双方台账条目
// 只有代币移动，计价货币不在系统内结算
func (s *matchingService) execute(ctx context.Context, sell, buy *model.Order, qty decimal.Decimal) (*model.Trade, error) {
	trade := &model.Trade{
		TradeID:     uuid.NewString(),
		SellOrderID: sell.OrderID,
		BuyOrderID:  buy.OrderID,
		SellerID:    sell.AccountID,
		BuyerID:     buy.AccountID,
		Amount:      qty,
		Price:       sell.Price, // maker 限价
	}

	debit := &LedgerApplyParams{
		AccountID: sell.AccountID,
		EventType: model.EventTypeP2PTrade,
		Amount:    qty.Neg(),
		DedupKey:  model.TradeDedupKey(trade.TradeID, "sell"),
		Metadata:  fmt.Sprintf(`{"trade_id":%q,"order_id":%q}`, trade.TradeID, sell.OrderID),
	}
	credit := &LedgerApplyParams{
		AccountID: buy.AccountID,
		EventType: model.EventTypeP2PTrade,
		Amount:    qty,
		DedupKey:  model.TradeDedupKey(trade.TradeID, "buy"),
		Metadata:  fmt.Sprintf(`{"trade_id":%q,"order_id":%q}`, trade.TradeID, buy.OrderID),
	}

	// 双方账户行按 id 升序加锁，并发结算不会交错持锁
	if err := s.lockAccounts(ctx, sell.AccountID, buy.AccountID); err != nil {
		return nil, err
	}

	// 先扣卖方: 余额不足时买方还未入账，调用方据此取消卖单继续撮合
	if _, _, err := s.ledger.Apply(ctx, debit); err != nil {
		return nil, err
	}
	if _, _, err := s.ledger.Apply(ctx, credit); err != nil {
		return nil, err
	}

	if err := s.tradeRepo.Create(ctx, trade); err != nil {
		return nil, err
	}

	if err := s.applyFill(ctx, sell.OrderID, qty); err != nil {
		return nil, err
	}
	if err := s.applyFill(ctx, buy.OrderID, qty); err != nil {
		return nil, err
	}

	logger.Info("trade executed",
		"trade_id", trade.TradeID,
		"seller_id", sell.AccountID,
		"buyer_id", buy.AccountID,
		"amount", qty.String(),
		"price", trade.Price.String(),
	)
	return trade, nil
}

// lockAccounts 在结算事务内按 id 升序锁定双方账户行
// 买方账户可能尚无余额记录，先建后锁
func (s *matchingService) lockAccounts(ctx context.Context, sellerID, buyerID int64) error {
	first, second := sellerID, buyerID
	if first > second {
		first, second = second, first
	}
	for _, id := range []int64{first, second} {
		if _, err := s.accountRepo.GetOrCreate(ctx, id, ""); err != nil {
			return err
		}
		if _, err := s.accountRepo.GetForUpdate(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *matchingService) applyFill(ctx context.Context, orderID string, qty decimal.Decimal) error {
	ok, err := s.orderRepo.ApplyFill(ctx, orderID, qty)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("order %s fill %s not applied", orderID, qty)
	}
	return nil
}
