package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"financebackend/internal/core"
	"financebackend/internal/jobs"
	applog "financebackend/internal/log"
	"financebackend/internal/storage"
)

// UserStore is the slice of storage the user handlers need.
type UserStore interface {
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (*core.User, error)
}

// AccountStore is the slice of storage the account handlers need.
type AccountStore interface {
	CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
	GetAccount(ctx context.Context, id int64) (*core.Account, error)
	GetAccountsByOwner(ctx context.Context, clerkUserID string) ([]core.Account, error)
	GetAccountByOwnerAndName(ctx context.Context, clerkUserID, name string) (*core.Account, error)
	GetDefaultAccountByOwner(ctx context.Context, clerkUserID string) (*core.Account, error)
	UpdateAccount(ctx context.Context, id int64, name string, accountType core.AccountType) error
	SetDefaultAccount(ctx context.Context, clerkUserID string, accountID int64) error
	SetBudget(ctx context.Context, accountID int64, budget core.Money) error
}

// TransactionStore is the slice of storage the transaction handlers need.
type TransactionStore interface {
	AppendTransactions(ctx context.Context, accountID int64, txns []core.Transaction) (int, error)
	GetTransaction(ctx context.Context, accountID int64, txnID string) (*core.Transaction, error)
	ListTransactions(ctx context.Context, accountID int64) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, accountID int64, txnID string, upd storage.TransactionUpdate) (*core.Transaction, error)
	DeleteTransactionsBulk(ctx context.Context, accountID int64, ids []string) ([]string, error)
}

// JobRunner triggers every registered job once and reports the outcome.
type JobRunner interface {
	RunAll(ctx context.Context) []jobs.Report
}

// Pinger reports storage readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	users        UserStore
	accounts     AccountStore
	transactions TransactionStore
	notifier     jobs.Notifier
	runner       JobRunner
	pinger       Pinger
	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, users UserStore, accounts AccountStore, transactions TransactionStore,
	notifier jobs.Notifier, runner JobRunner, pinger Pinger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		users:        users,
		accounts:     accounts,
		transactions: transactions,
		notifier:     notifier,
		runner:       runner,
		pinger:       pinger,
		rateLimiter:  newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /users/user", s.withObservability(s.handleCreateUser))
	mux.HandleFunc("GET /users/user/{email}", s.withObservability(s.handleGetUser))

	mux.HandleFunc("POST /accounts/account", s.withObservability(s.handleCreateAccount))
	mux.HandleFunc("GET /accounts/account/{clerkId}", s.withObservability(s.handleAccountsByOwner))
	mux.HandleFunc("GET /accounts/useraccount/{userId}", s.withObservability(s.handleDefaultAccount))
	mux.HandleFunc("GET /accounts/singleaccount/{id}", s.withObservability(s.handleGetAccount))
	mux.HandleFunc("PUT /accounts/account/{id}", s.withObservability(s.handleUpdateAccount))
	mux.HandleFunc("PUT /accounts/defaultaccount/{id}", s.withObservability(s.handleSetDefaultAccount))
	mux.HandleFunc("GET /accounts/expenses/monthly/{clerkId}", s.withObservability(s.handleMonthlyExpenses))
	mux.HandleFunc("POST /accounts/budget/{accountId}", s.withObservability(s.handleSetBudget))

	mux.HandleFunc("POST /transactions/transaction/{clerkUserId}/{accountName}", s.withObservability(s.handleCreateTransaction))
	mux.HandleFunc("GET /transactions/transaction/{clerkUserId}/{accountName}", s.withObservability(s.handleListTransactions))
	mux.HandleFunc("POST /transactions/gettransaction/{transactionId}", s.withObservability(s.handleGetTransaction))
	mux.HandleFunc("PUT /transactions/edittransaction/{accountId}/{transactionId}", s.withObservability(s.handleEditTransaction))
	mux.HandleFunc("POST /transactions/deletetransaction/{transactionId}", s.withObservability(s.handleDeleteTransaction))
	mux.HandleFunc("POST /transactions/deletebulk/{accountId}", s.withObservability(s.handleDeleteBulk))

	mux.HandleFunc("POST /send-email", s.withObservability(s.handleSendEmail))
	mux.HandleFunc("POST /jobs/run", s.withObservability(s.handleRunJobs))

	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withObservability adds security headers, rate limiting of writes, a request
// id and request logging around a handler.
func (s *Server) withObservability(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		logger := applog.FromContext(r.Context()).
			WithComponent(applog.ComponentHTTP).
			With(applog.FieldRequestID, requestID)
		ctx := applog.WithLogger(r.Context(), logger)
		r = r.WithContext(ctx)

		logger.InfoContext(ctx, "Request started",
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		logger.InfoContext(ctx, "Request completed",
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
