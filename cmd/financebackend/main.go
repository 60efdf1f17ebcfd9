package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"financebackend/internal/amqp"
	"financebackend/internal/config"
	"financebackend/internal/genai"
	apphttp "financebackend/internal/http"
	"financebackend/internal/jobs"
	applog "financebackend/internal/log"
	"financebackend/internal/notify"
	"financebackend/internal/scheduler"
	"financebackend/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	logger.Info("Starting financebackend")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Notifier selection: AMQP queue when a broker is configured, direct SMTP
	// otherwise. With neither, email jobs are disabled.
	var notifier jobs.Notifier
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, falling back to direct SMTP", "error", err)
		} else {
			defer amqpClient.Close()
			notifier = notify.NewQueueNotifier(amqpClient)
			logger.Info("AMQP notifier initialized - emails delivered by mailer-worker")
		}
	}
	if notifier == nil && cfg.MailEnabled() {
		mailer, err := notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFrom)
		if err != nil {
			logger.Error("Failed to initialize SMTP mailer", "error", err)
			os.Exit(1)
		}
		notifier = mailer
		logger.Info("Direct SMTP notifier initialized", "host", cfg.SMTPHost)
	}
	if notifier == nil {
		logger.Warn("No notifier configured - budget alert and insight emails are disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Register background jobs. Jobs without their collaborators are left out
	// rather than registered half-wired.
	sched := scheduler.New(scheduler.Options{
		RunTimeout: cfg.JobTimeout,
		MaxSkips:   cfg.JobMaxSkips,
	})
	sched.Add(jobs.NewRecurringJob(repo, cfg.JobWorkers), cfg.RecurringInterval)
	if notifier != nil {
		sched.Add(jobs.NewBudgetCheckJob(repo, notifier, cfg.JobWorkers), cfg.BudgetCheckInterval)

		if cfg.GeminiAPIKey != "" {
			generator, err := genai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
			if err != nil {
				logger.Error("Failed to initialize Gemini client", "error", err)
				os.Exit(1)
			}
			sched.Add(jobs.NewInsightsJob(repo, notifier, generator), cfg.InsightsInterval)
		} else {
			logger.Info("Gemini disabled - insight emails will not be sent")
		}
	}
	sched.Start(ctx)

	srv := apphttp.NewServer(":"+cfg.Port, repo, repo, repo, notifier, sched, repo)
	srv.Handler = applog.Middleware(logger)(srv.Handler)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second

	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}

	sched.Stop()
	logger.Info("Shutdown complete")
}
