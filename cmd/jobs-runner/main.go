package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"financebackend/internal/config"
	"financebackend/internal/genai"
	"financebackend/internal/jobs"
	applog "financebackend/internal/log"
	"financebackend/internal/notify"
	"financebackend/internal/scheduler"
	"financebackend/internal/storage"
)

// jobs-runner runs every background job exactly once and exits. Useful for
// cron-style deployments and for poking the jobs by hand.
func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

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

	ctx, cancel := context.WithTimeout(context.Background(), cfg.JobTimeout)
	defer cancel()

	var notifier jobs.Notifier
	if cfg.MailEnabled() {
		mailer, err := notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFrom)
		if err != nil {
			logger.Error("Failed to initialize SMTP mailer", "error", err)
			os.Exit(1)
		}
		notifier = mailer
	} else {
		logger.Warn("SMTP not configured - email jobs are skipped")
	}

	sched := scheduler.New(scheduler.Options{MaxSkips: cfg.JobMaxSkips})
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
		}
	}

	var failed bool
	for _, report := range sched.RunAll(ctx) {
		fmt.Printf("%s: processed=%d skipped=%d failed=%d\n",
			report.Job, report.Processed, report.Skipped, report.Failed)
		if report.Failed > 0 {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}
