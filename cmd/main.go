package main

import (
	"os"

	"github.com/manh-exchange/manh-core/internal/app"
	"github.com/manh-exchange/manh-core/internal/config"
	"github.com/manh-exchange/manh-core/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if err := logger.Init(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: cfg.Service.Name,
	}); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := app.New(cfg).Run(); err != nil {
		logger.Error("application error", "error", err)
		os.Exit(1)
	}
}
