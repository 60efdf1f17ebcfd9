package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"financebackend/internal/amqp"
	"financebackend/internal/config"
	applog "financebackend/internal/log"
	"financebackend/internal/notify"
)

// mailer-worker drains the notification queue and delivers each message over
// SMTP. Delivery failures are nacked back onto the queue.
func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     applog.DefaultConfig().Level,
		Component: applog.ComponentMailer,
	})
	applog.SetDefault(logger)

	logger.Info("Starting mailer-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the mailer worker")
		os.Exit(1)
	}
	if !cfg.MailEnabled() {
		logger.Error("SMTP_HOST and EMAIL_FROM are required for the mailer worker")
		os.Exit(1)
	}

	mailer, err := notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFrom)
	if err != nil {
		logger.Error("Failed to initialize SMTP mailer", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	err = amqp.ConsumeWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, func(msg *amqp.NotificationMessage) error {
		sendCtx, sendCancel := context.WithTimeout(ctx, 30*time.Second)
		defer sendCancel()
		return mailer.Send(sendCtx, msg.To, msg.Subject, msg.Body)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}
