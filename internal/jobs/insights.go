package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"financebackend/internal/services"
)

// InsightsJob emails an AI-generated spending summary for the default
// account. The text generation itself is an external collaborator behind the
// InsightGenerator port; every failure here is non-fatal and surfaces only in
// the report counts.
type InsightsJob struct {
	store     TransactionStore
	notifier  Notifier
	generator InsightGenerator
	now       func() time.Time
}

func NewInsightsJob(store TransactionStore, notifier Notifier, generator InsightGenerator) *InsightsJob {
	return &InsightsJob{
		store:     store,
		notifier:  notifier,
		generator: generator,
		now:       time.Now,
	}
}

func (j *InsightsJob) Name() string { return "insight-generation" }

func (j *InsightsJob) Run(ctx context.Context) (Report, error) {
	report := Report{Job: j.Name()}

	if j.generator == nil {
		slog.InfoContext(ctx, "Insight generation disabled - no generator configured")
		report.Skipped++
		return report, nil
	}

	acct, err := j.store.GetDefaultAccount(ctx)
	if err != nil {
		slog.WarnContext(ctx, "No default account found, skipping insights", "error", err)
		report.Skipped++
		return report, nil
	}

	owner, err := j.store.FindOwner(ctx, acct.ClerkUserID)
	if err != nil {
		slog.WarnContext(ctx, "No owner found for default account, skipping insights",
			"account_id", acct.ID,
			"owner_id", acct.ClerkUserID,
			"error", err)
		report.Skipped++
		return report, nil
	}

	now := j.now().UTC()
	txns := services.MonthTransactions(*acct, now)
	if len(txns) == 0 {
		slog.InfoContext(ctx, "No transactions for the current month, skipping insights",
			"account_id", acct.ID)
		report.Skipped++
		return report, nil
	}

	prompt := services.BuildInsightPrompt(*acct, txns, now)
	insights, err := j.generator.Generate(ctx, prompt)
	if err != nil {
		slog.ErrorContext(ctx, "Insight generation failed",
			"account_id", acct.ID,
			"error", err)
		report.Failed++
		return report, nil
	}

	subject := fmt.Sprintf("Monthly Transaction Insights for '%s'", acct.Name)
	body := fmt.Sprintf(`Hi %s,

Here are the insights for your default account '%s' for %s:

%s

Stay financially healthy!

- Finance Bot
`, owner.Name, acct.Name, now.Format("January 2006"), insights)

	if err := j.notifier.Send(ctx, owner.Email, subject, body); err != nil {
		slog.ErrorContext(ctx, "Failed to send insights email",
			"account_id", acct.ID,
			"to", owner.Email,
			"error", err)
		report.Failed++
		return report, nil
	}

	slog.InfoContext(ctx, "Insights email sent",
		"account_id", acct.ID,
		"to", owner.Email,
		"transactions", len(txns))
	report.Processed++
	return report, nil
}
