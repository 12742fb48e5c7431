package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillm/trade-state/internal/config"
	"github.com/kirillm/trade-state/internal/storage"
	"github.com/kirillm/trade-state/internal/telegram"
	"github.com/kirillm/trade-state/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.LogLevel)

	notifier, err := telegram.NewNotifier(
		cfg.Telegram.BotToken,
		cfg.Telegram.ChatID,
		cfg.State.AlertMinInterval,
		logger,
	)
	if err != nil {
		// Канал оповещений не критичен для персистентности
		logger.Error("Telegram notifier unavailable: %v", err)
	}

	opts := storage.Options{
		CredentialsPath:       cfg.State.CredentialsPath,
		FallbackPath:          cfg.State.FallbackPath,
		FailureAlertThreshold: cfg.State.FailureAlertThreshold,
		Database: storage.DatabaseOptions{
			MaxOpenConns:     cfg.Database.MaxOpenConns,
			MaxIdleConns:     cfg.Database.MaxIdleConns,
			ConnMaxLifetime:  cfg.Database.ConnMaxLifetime,
			OperationTimeout: cfg.Database.OperationTimeout,
		},
		Logger: logger,
	}
	if notifier != nil {
		opts.Alerts = notifier
	}

	manager := storage.NewManager(opts)
	defer manager.Close()

	logger.Info("State manager started, backend: %s", manager.Mode())

	if snapshot, ok := manager.LoadPortfolioState(); ok {
		logger.Info("Restored portfolio state: %d fields", len(snapshot))
	}

	// Записи поступают от цикла торговых решений, встраивающего этот модуль;
	// процесс живет до сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
}
