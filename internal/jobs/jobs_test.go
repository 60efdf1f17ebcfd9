package jobs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"financebackend/internal/core"
)

// fakeStore is an in-memory TransactionStore for job tests.
type fakeStore struct {
	mu       sync.Mutex
	accounts []core.Account
	owners   map[string]core.User

	// failAppendFor makes AppendTransactions fail for one account id.
	failAppendFor int64

	appended map[int64][]core.Transaction
	advanced map[string]time.Time
	alerted  map[int64]time.Time
}

func newFakeStore(accounts []core.Account, owners map[string]core.User) *fakeStore {
	return &fakeStore{
		accounts: accounts,
		owners:   owners,
		appended: make(map[int64][]core.Transaction),
		advanced: make(map[string]time.Time),
		alerted:  make(map[int64]time.Time),
	}
}

func (s *fakeStore) ListAccounts(ctx context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Account, len(s.accounts))
	copy(out, s.accounts)
	return out, nil
}

func (s *fakeStore) AppendTransactions(ctx context.Context, accountID int64, txns []core.Transaction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if accountID == s.failAppendFor {
		return 0, fmt.Errorf("%w: simulated store failure", core.ErrTransient)
	}
	s.appended[accountID] = append(s.appended[accountID], txns...)
	for i := range s.accounts {
		if s.accounts[i].ID == accountID {
			s.accounts[i].Transactions = append(s.accounts[i].Transactions, txns...)
		}
	}
	return len(txns), nil
}

func (s *fakeStore) AdvanceRecurringTrigger(ctx context.Context, accountID int64, txnID string, nextDue, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanced[txnID] = nextDue
	for i := range s.accounts {
		if s.accounts[i].ID != accountID {
			continue
		}
		for j := range s.accounts[i].Transactions {
			if s.accounts[i].Transactions[j].ID == txnID {
				due := nextDue
				processed := processedAt
				s.accounts[i].Transactions[j].NextRecurringDate = &due
				s.accounts[i].Transactions[j].LastProcessed = &processed
			}
		}
	}
	return nil
}

func (s *fakeStore) MarkBudgetAlertSent(ctx context.Context, accountID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerted[accountID] = at
	return nil
}

func (s *fakeStore) FindOwner(ctx context.Context, clerkUserID string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.owners[clerkUserID]
	if !ok {
		return nil, fmt.Errorf("%w: owner %s", core.ErrNotFound, clerkUserID)
	}
	return &owner, nil
}

func (s *fakeStore) GetDefaultAccount(ctx context.Context) (*core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.IsDefault {
			a := acct
			return &a, nil
		}
	}
	return nil, fmt.Errorf("%w: no default account", core.ErrNotFound)
}

// fakeNotifier records sent messages and can be told to fail.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

type sentMail struct {
	to, subject, body string
}

func (n *fakeNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return fmt.Errorf("%w: smtp unavailable", core.ErrTransient)
	}
	n.sent = append(n.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
}

func budgetAccount(id int64, owner string, budgetCents, spentCents int64) core.Account {
	start, _ := core.MonthWindow(fixedNow())
	return core.Account{
		ID:          id,
		ClerkUserID: owner,
		Name:        fmt.Sprintf("Account %d", id),
		Type:        core.Current,
		Budget:      &core.Money{Cents: budgetCents},
		Transactions: []core.Transaction{
			{ID: fmt.Sprintf("t-%d", id), Kind: core.Expense, Amount: core.Money{Cents: spentCents}, Date: start.AddDate(0, 0, 3), Category: "misc"},
		},
	}
}

func TestBudgetCheckJobSendsAlertOnce(t *testing.T) {
	store := newFakeStore(
		[]core.Account{budgetAccount(1, "user_1", 10000, 15000)},
		map[string]core.User{"user_1": {ClerkUserID: "user_1", Email: "one@example.com", Name: "One"}},
	)
	notifier := &fakeNotifier{}

	job := NewBudgetCheckJob(store, notifier, 2)
	job.now = fixedNow

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Processed != 1 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(notifier.sent))
	}
	mail := notifier.sent[0]
	if mail.to != "one@example.com" {
		t.Errorf("to = %q", mail.to)
	}
	if !strings.Contains(mail.body, "150.00") || !strings.Contains(mail.body, "100.00") {
		t.Errorf("alert body missing totals:\n%s", mail.body)
	}
	if _, ok := store.alerted[1]; !ok {
		t.Error("alert timestamp not recorded")
	}

	// Second pass within the same month: dedup state suppresses the alert.
	store.mu.Lock()
	store.accounts[0].BudgetAlertSentAt = timePtr(store.alerted[1])
	store.mu.Unlock()

	report, err = job.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if report.Processed != 0 || len(notifier.sent) != 1 {
		t.Errorf("duplicate alert sent: report = %+v, emails = %d", report, len(notifier.sent))
	}
}

func TestBudgetCheckJobSkipsMissingOwner(t *testing.T) {
	store := newFakeStore(
		[]core.Account{
			budgetAccount(1, "user_gone", 10000, 15000),
			budgetAccount(2, "user_2", 10000, 15000),
		},
		map[string]core.User{"user_2": {ClerkUserID: "user_2", Email: "two@example.com", Name: "Two"}},
	)
	notifier := &fakeNotifier{}

	job := NewBudgetCheckJob(store, notifier, 2)
	job.now = fixedNow

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Missing owner is a non-fatal skip; the other account still processes.
	if report.Processed != 1 || report.Skipped != 1 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].to != "two@example.com" {
		t.Errorf("sent = %+v", notifier.sent)
	}
}

func TestBudgetCheckJobUnderBudgetAndNoBudget(t *testing.T) {
	noBudget := budgetAccount(3, "user_3", 10000, 5000)
	noBudget.Budget = nil

	store := newFakeStore(
		[]core.Account{budgetAccount(1, "user_1", 10000, 5000), noBudget},
		map[string]core.User{"user_1": {Email: "one@example.com", Name: "One"}},
	)
	notifier := &fakeNotifier{}

	job := NewBudgetCheckJob(store, notifier, 2)
	job.now = fixedNow

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Processed != 0 || report.Skipped != 2 || len(notifier.sent) != 0 {
		t.Errorf("report = %+v, emails = %d", report, len(notifier.sent))
	}
}

func recurringAccount(id int64, txns ...core.Transaction) core.Account {
	return core.Account{
		ID:           id,
		ClerkUserID:  "user_1",
		Name:         fmt.Sprintf("Account %d", id),
		Type:         core.Current,
		Transactions: txns,
	}
}

func dueDaily(id string) core.Transaction {
	due := core.MidnightUTC(fixedNow())
	return core.Transaction{
		ID:                id,
		Kind:              core.Expense,
		Amount:            core.Money{Cents: 999},
		Description:       "subscription",
		Date:              due.AddDate(0, -2, 0),
		Category:          "entertainment",
		IsRecurring:       true,
		RecurringInterval: core.Daily,
		NextRecurringDate: &due,
	}
}

func TestRecurringJobMaterializesDueTransactions(t *testing.T) {
	store := newFakeStore([]core.Account{recurringAccount(1, dueDaily("r-1"))}, nil)

	job := NewRecurringJob(store, 2)
	job.now = fixedNow

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Processed != 1 {
		t.Errorf("report = %+v", report)
	}

	appended := store.appended[1]
	if len(appended) != 1 {
		t.Fatalf("appended %d transactions, want 1", len(appended))
	}
	clone := appended[0]
	if clone.IsRecurring || clone.NextRecurringDate != nil {
		t.Errorf("occurrence carries recurrence metadata: %+v", clone)
	}
	wantNext := time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)
	if got := store.advanced["r-1"]; !got.Equal(wantNext) {
		t.Errorf("trigger advanced to %v, want %v", got, wantNext)
	}
}

func TestRecurringJobOneOccurrencePerDay(t *testing.T) {
	// A daily template run over consecutive days must add exactly one
	// occurrence per day. If the appended occurrence kept its recurrence
	// metadata it would become a second live template and the count would
	// double each day instead.
	store := newFakeStore([]core.Account{recurringAccount(1, dueDaily("r-1"))}, nil)

	job := NewRecurringJob(store, 2)

	for day := 0; day < 3; day++ {
		job.now = func() time.Time { return fixedNow().AddDate(0, 0, day) }

		report, err := job.Run(context.Background())
		if err != nil {
			t.Fatalf("day %d: Run() error = %v", day, err)
		}
		if report.Processed != 1 || report.Failed != 0 {
			t.Fatalf("day %d: report = %+v", day, report)
		}
		if got := len(store.appended[1]); got != day+1 {
			t.Fatalf("day %d: %d occurrences total, want %d", day, got, day+1)
		}
	}

	// One template plus three occurrences; the template is still the only
	// recurring row and is due tomorrow.
	acct := store.accounts[0]
	if len(acct.Transactions) != 4 {
		t.Fatalf("account has %d transactions, want 4", len(acct.Transactions))
	}
	recurring := 0
	for _, txn := range acct.Transactions {
		if txn.IsRecurring {
			recurring++
		}
	}
	if recurring != 1 {
		t.Errorf("%d recurring rows, want 1", recurring)
	}
	wantNext := core.MidnightUTC(fixedNow().AddDate(0, 0, 3))
	if got := store.advanced["r-1"]; !got.Equal(wantNext) {
		t.Errorf("trigger due %v, want %v", got, wantNext)
	}
}

func TestRecurringJobExpiredDeadlineSkipsAccounts(t *testing.T) {
	store := newFakeStore([]core.Account{
		recurringAccount(1, dueDaily("r-1")),
		recurringAccount(2, dueDaily("r-2")),
	}, nil)

	job := NewRecurringJob(store, 2)
	job.now = fixedNow

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Remaining accounts count as skipped and are picked up on the next tick.
	if report.Processed != 0 || report.Skipped != 2 {
		t.Errorf("report = %+v", report)
	}
	if len(store.appended[1])+len(store.appended[2]) != 0 {
		t.Errorf("appended with expired deadline: %+v", store.appended)
	}
}

func TestRecurringJobBatchIsolation(t *testing.T) {
	// Account 2's append fails; accounts 1 and 3 must still process.
	store := newFakeStore([]core.Account{
		recurringAccount(1, dueDaily("r-1")),
		recurringAccount(2, dueDaily("r-2")),
		recurringAccount(3, dueDaily("r-3")),
	}, nil)
	store.failAppendFor = 2

	job := NewRecurringJob(store, 2)
	job.now = fixedNow

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Processed != 2 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
	if len(store.appended[1]) != 1 || len(store.appended[3]) != 1 {
		t.Errorf("healthy accounts not processed: %+v", store.appended)
	}
	if len(store.appended[2]) != 0 {
		t.Errorf("failed account has appended transactions")
	}
}

func TestRecurringJobSkipsAlreadyProcessedToday(t *testing.T) {
	txn := dueDaily("r-1")
	processed := fixedNow().Add(-2 * time.Hour)
	txn.LastProcessed = &processed

	store := newFakeStore([]core.Account{recurringAccount(1, txn)}, nil)

	job := NewRecurringJob(store, 2)
	job.now = fixedNow

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Processed != 0 || len(store.appended[1]) != 0 {
		t.Errorf("duplicate materialization: report = %+v, appended = %d", report, len(store.appended[1]))
	}
}

func TestRecurringJobSkipsMalformedInterval(t *testing.T) {
	bad := dueDaily("r-bad")
	bad.RecurringInterval = "fortnightly"

	store := newFakeStore([]core.Account{recurringAccount(1, bad, dueDaily("r-good"))}, nil)

	job := NewRecurringJob(store, 2)
	job.now = fixedNow

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Failed != 0 {
		t.Errorf("malformed item must not fail the account: %+v", report)
	}
	if len(store.appended[1]) != 1 {
		t.Errorf("appended %d, want 1 (only the valid trigger)", len(store.appended[1]))
	}
	if _, ok := store.advanced["r-bad"]; ok {
		t.Error("malformed trigger was advanced")
	}
}

type fakeGenerator struct {
	out  string
	err  error
	seen string
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.seen = prompt
	return g.out, g.err
}

func TestInsightsJob(t *testing.T) {
	acct := budgetAccount(1, "user_1", 10000, 2500)
	acct.IsDefault = true
	store := newFakeStore(
		[]core.Account{acct},
		map[string]core.User{"user_1": {ClerkUserID: "user_1", Email: "one@example.com", Name: "One"}},
	)
	notifier := &fakeNotifier{}
	gen := &fakeGenerator{out: "You spent a lot on misc."}

	job := NewInsightsJob(store, notifier, gen)
	job.now = fixedNow

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Processed != 1 {
		t.Errorf("report = %+v", report)
	}
	if !strings.Contains(gen.seen, "Transactions:") {
		t.Errorf("generator prompt malformed:\n%s", gen.seen)
	}
	if len(notifier.sent) != 1 || !strings.Contains(notifier.sent[0].body, "You spent a lot on misc.") {
		t.Errorf("sent = %+v", notifier.sent)
	}
}

func TestInsightsJobNoDefaultAccount(t *testing.T) {
	store := newFakeStore([]core.Account{budgetAccount(1, "user_1", 10000, 2500)}, nil)
	notifier := &fakeNotifier{}

	job := NewInsightsJob(store, notifier, &fakeGenerator{out: "x"})
	job.now = fixedNow

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Skipped != 1 || len(notifier.sent) != 0 {
		t.Errorf("report = %+v, emails = %d", report, len(notifier.sent))
	}
}

func timePtr(t time.Time) *time.Time { return &t }
