package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/notify"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentNotify,
	})
	applog.SetDefault(logger)

	logger.Info("Starting notify-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientJSON, err := cfg.OAuthClientJSON()
	if err != nil {
		logger.Error("Missing Gmail OAuth client credentials", applog.FieldError, err)
		os.Exit(1)
	}
	tokenJSON, err := cfg.OAuthTokenJSON()
	if err != nil {
		logger.Error("Missing Gmail OAuth token (run oauth-init first)", applog.FieldError, err)
		os.Exit(1)
	}

	httpClient, err := notify.NewOAuthClient(ctx, clientJSON, tokenJSON)
	if err != nil {
		logger.Error("Failed to build OAuth client", applog.FieldError, err)
		os.Exit(1)
	}
	sender, err := notify.NewGmailSender(ctx, httpClient)
	if err != nil {
		logger.Error("Failed to initialize Gmail sender", applog.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err, "url", cfg.AMQPURL)
		os.Exit(1)
	}
	defer amqpClient.Close()

	handler := func(msg *amqp.BudgetAlertMessage) error {
		subject, body := notify.BudgetAlertEmail(
			msg.UserName, msg.AccountName, msg.PercentUsed, msg.BudgetAmount, msg.TotalExpenses)
		if err := sender.Send(ctx, msg.Email, subject, body); err != nil {
			return err
		}
		logger.Info("Budget alert email sent",
			"budget_id", msg.BudgetID,
			"period", msg.Period,
			"to", msg.Email)
		return nil
	}

	// Consume until shutdown; handler failures nack and requeue.
	go func() {
		if err := amqpClient.ConsumeBudgetAlerts(ctx, handler); err != nil &&
			!errors.Is(err, context.Canceled) {
			logger.Error("Alert consumption stopped", applog.FieldError, err)
			cancel()
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

	logger.Info("Notify-worker shutdown complete")
}
