package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// logNotifier stands in when no broker is configured: alerts are recorded
// in the store but only logged instead of queued for delivery.
type logNotifier struct{}

func (logNotifier) NotifyBudgetAlert(ctx context.Context, alert services.BudgetAlert) error {
	slog.WarnContext(ctx, "AMQP disabled, budget alert logged only",
		"budget_id", alert.BudgetID,
		"user_id", alert.UserID,
		"percent_used", alert.PercentUsed.String(),
		"period", string(alert.Period))
	return nil
}

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentDispatcher,
	})
	applog.SetDefault(logger)

	logger.Info("Starting dispatch-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Alerts go onto the queue; the notify-worker consumes them and sends
	// the emails.
	var notifier services.AlertNotifier = logNotifier{}
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, alerts will be logged only", applog.FieldError, err)
		} else {
			defer amqpClient.Close()
			notifier = amqpClient
			logger.Info("AMQP client initialized, alerts will be queued for delivery")
		}
	} else {
		logger.Info("AMQP disabled, alerts will be logged only")
	}

	settlement := services.NewSettlementService(repo)
	alerts := services.NewAlertService(repo)
	dispatcher := services.NewDispatcher(repo, settlement, alerts, notifier,
		cfg.MaxConcurrent, cfg.EntityTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Dispatcher configured",
		"interval", cfg.DispatchInterval,
		"max_concurrent", cfg.MaxConcurrent,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.DispatchInterval)
	defer ticker.Stop()

	runPass := func(now time.Time) {
		report, err := dispatcher.RunOnce(ctx, now)
		if err != nil {
			logger.Error("Dispatcher pass failed", applog.FieldError, err)
			return
		}
		if passErr := report.Err(); passErr != nil {
			logger.Error("Dispatcher pass finished with entity errors",
				"settled", report.Settled,
				"alerts_sent", report.AlertsSent,
				"errors", passErr)
			return
		}
		logger.Info("Dispatcher pass finished",
			"due_found", report.DueFound,
			"settled", report.Settled,
			"budgets_checked", report.BudgetsChecked,
			"alerts_sent", report.AlertsSent,
			"next_run", now.Add(cfg.DispatchInterval).Format("15:04:05"))
	}

	// Run one pass on startup, then on every tick.
	logger.Info("Running initial dispatcher pass...")
	runPass(time.Now())

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				runPass(now)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down dispatch-worker...")
	cancel()

	// A cancelled pass is safe: dueness is re-derived from the store, so
	// the next run picks up exactly where this one stopped.
	time.Sleep(2 * time.Second)
	logger.Info("Dispatch-worker shutdown complete")
}
