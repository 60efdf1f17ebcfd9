package jobs

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"financebackend/internal/core"
)

// Report aggregates the outcome of one job run. The manual trigger endpoint
// surfaces these counts instead of raising on first error.
type Report struct {
	Job       string `json:"job"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

// counter is a concurrency-safe Report accumulator for worker-pool runs.
type counter struct {
	mu sync.Mutex
	r  Report
}

func newCounter(job string) *counter { return &counter{r: Report{Job: job}} }

func (c *counter) processed() { c.mu.Lock(); c.r.Processed++; c.mu.Unlock() }
func (c *counter) skipped()   { c.mu.Lock(); c.r.Skipped++; c.mu.Unlock() }
func (c *counter) failed()    { c.mu.Lock(); c.r.Failed++; c.mu.Unlock() }

func (c *counter) report() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.r
}

// accountOutcome is what one account's processing contributes to the report.
type accountOutcome int

const (
	outcomeProcessed accountOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// forEachAccount runs fn for every account on a bounded worker pool. Accounts
// are independent units of work: a failing account is counted and logged,
// never aborts the batch. When the run context expires the remaining accounts
// are counted as skipped and picked up on the next tick.
func forEachAccount(ctx context.Context, accounts []core.Account, workers int, c *counter, fn func(ctx context.Context, acct core.Account) (accountOutcome, error)) {
	if workers <= 0 {
		workers = 4
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)

	for _, acct := range accounts {
		if ctx.Err() != nil {
			c.skipped()
			continue
		}
		acct := acct
		g.Go(func() error {
			outcome, err := fn(ctx, acct)
			switch outcome {
			case outcomeProcessed:
				c.processed()
			case outcomeSkipped:
				c.skipped()
			case outcomeFailed:
				c.failed()
				slog.ErrorContext(ctx, "Account processing failed",
					"account_id", acct.ID,
					"account", acct.Name,
					"error", err)
			}
			// Isolation invariant: per-account errors never bubble up.
			return nil
		})
	}

	_ = g.Wait()
}
