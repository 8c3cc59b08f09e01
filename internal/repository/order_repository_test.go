package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/pkg/errs"
)

// orderColumns 返回 p2p_orders 表的所有列名
func orderColumns() []string {
	return []string{
		"id", "order_id", "account_id", "side", "price", "amount",
		"filled_amount", "status", "expire_at", "created_at", "updated_at",
	}
}

func TestOrderRepository_Create_Success(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := &model.Order{
		OrderID:   "ord-123",
		AccountID: 42,
		Side:      model.OrderSideSell,
		Price:     decimal.RequireFromString("2.5"),
		Amount:    decimal.RequireFromString("10"),
		Status:    model.OrderStatusOpen,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "p2p_orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(ctx, order)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByOrderID_Success(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(db)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	rows := sqlmock.NewRows(orderColumns()).AddRow(
		1, "ord-123", 42, 2, "2.500000000", "10.000000000",
		"0.000000000", 1, 0, now, now,
	)

	// GORM First() 会添加 ORDER BY id LIMIT 1
	mock.ExpectQuery(`SELECT \* FROM "p2p_orders" WHERE order_id = \$1 ORDER BY "p2p_orders"\."id" LIMIT \$2`).
		WithArgs("ord-123", 1).
		WillReturnRows(rows)

	order, err := repo.GetByOrderID(ctx, "ord-123")

	assert.NoError(t, err)
	assert.NotNil(t, order)
	assert.Equal(t, model.OrderSideSell, order.Side)
	assert.True(t, order.Remaining().Equal(decimal.RequireFromString("10")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByOrderID_NotFound(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM "p2p_orders" WHERE order_id = \$1 ORDER BY "p2p_orders"\."id" LIMIT \$2`).
		WithArgs("ord-missing", 1).
		WillReturnError(gorm.ErrRecordNotFound)

	order, err := repo.GetByOrderID(ctx, "ord-missing")

	assert.Nil(t, order)
	assert.True(t, errs.Is(err, errs.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ListOpenSells_PriceTimePriority(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(db)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	rows := sqlmock.NewRows(orderColumns()).
		AddRow(1, "ord-a", 7, 2, "1.000000000", "5.000000000", "0.000000000", 1, 0, now, now).
		AddRow(2, "ord-b", 8, 2, "1.200000000", "5.000000000", "0.000000000", 2, 0, now, now)

	// 价格升序，同价按时间先后
	mock.ExpectQuery(`SELECT \* FROM "p2p_orders" WHERE side = \$1 AND status IN \(\$2,\$3\) ORDER BY price ASC, created_at ASC, id ASC LIMIT \$4`).
		WithArgs(model.OrderSideSell, model.OrderStatusOpen, model.OrderStatusPartial, 50).
		WillReturnRows(rows)

	orders, err := repo.ListOpenSells(ctx, 50)

	assert.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Equal(t, "ord-a", orders[0].OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ListOpenBuys_PriceDescending(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM "p2p_orders" WHERE side = \$1 AND status IN \(\$2,\$3\) ORDER BY price DESC, created_at ASC, id ASC LIMIT \$4`).
		WithArgs(model.OrderSideBuy, model.OrderStatusOpen, model.OrderStatusPartial, 50).
		WillReturnRows(sqlmock.NewRows(orderColumns()))

	orders, err := repo.ListOpenBuys(ctx, 50)

	assert.NoError(t, err)
	assert.Empty(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ApplyFill_Success(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(db)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE p2p_orders`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.ApplyFill(ctx, "ord-123", decimal.RequireFromString("3"))

	assert.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ApplyFill_RejectsOverfill(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(db)
	ctx := context.Background()

	// filled + qty > amount 时条件不满足，不落行
	mock.ExpectExec(`UPDATE p2p_orders`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.ApplyFill(ctx, "ord-123", decimal.RequireFromString("999"))

	assert.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CancelOwned_Success(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "p2p_orders" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cancelled, err := repo.CancelOwned(ctx, "ord-123", 42)

	assert.NoError(t, err)
	assert.True(t, cancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CancelOwned_NotOwnerOrTerminal(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "p2p_orders" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	cancelled, err := repo.CancelOwned(ctx, "ord-123", 99)

	assert.NoError(t, err)
	assert.False(t, cancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ListExpired(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(db)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	rows := sqlmock.NewRows(orderColumns()).
		AddRow(1, "ord-old", 7, 1, "1.000000000", "5.000000000", "0.000000000", 1, now-1000, now-60000, now-60000)
	mock.ExpectQuery(`SELECT \* FROM "p2p_orders" WHERE expire_at > 0 AND expire_at <= \$1 AND status IN \(\$2,\$3\) ORDER BY expire_at ASC LIMIT \$4`).
		WithArgs(now, model.OrderStatusOpen, model.OrderStatusPartial, 100).
		WillReturnRows(rows)

	orders, err := repo.ListExpired(ctx, now, 100)

	assert.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, "ord-old", orders[0].OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
