package app

import (
	"gorm.io/gorm"

	"github.com/manh-exchange/manh-core/internal/model"
	"github.com/manh-exchange/manh-core/pkg/logger"
)

// AutoMigrate 自动建表
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Account{},
		&model.LedgerEntry{},
		&model.Invoice{},
		&model.Purchase{},
		&model.Order{},
		&model.Trade{},
		&model.Withdrawal{},
	)
	if err != nil {
		logger.Error("auto migration failed", "error", err)
		return err
	}
	logger.Info("auto migration completed")
	return nil
}
