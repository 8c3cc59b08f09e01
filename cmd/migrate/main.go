// Package main 提供数据库迁移命令行工具
package main

import (
	"fmt"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/manh-exchange/manh-core/internal/app"
	"github.com/manh-exchange/manh-core/internal/config"
	"github.com/manh-exchange/manh-core/pkg/logger"
)

func main() {
	if err := logger.Init(&logger.Config{
		Level:       "info",
		Format:      "console",
		ServiceName: "manh-core-migrate",
	}); err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config failed", "error", err)
		os.Exit(1)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Error("open database failed", "error", err)
		os.Exit(1)
	}

	if err := app.AutoMigrate(db); err != nil {
		os.Exit(1)
	}
}
