package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP (optional; when unset, emails are sent directly over SMTP)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string

	// Gemini (optional; insight emails are skipped without a key)
	GeminiAPIKey string
	GeminiModel  string

	// Jobs
	BudgetCheckInterval time.Duration
	RecurringInterval   time.Duration
	InsightsInterval    time.Duration
	JobTimeout          time.Duration
	JobWorkers          int
	JobMaxSkips         int
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finance.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finance"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "notifications"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		EmailFrom:    getEnv("EMAIL_FROM", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "models/gemini-1.5-flash"),

		BudgetCheckInterval: getEnvDuration("BUDGET_CHECK_INTERVAL", 24*time.Hour),
		RecurringInterval:   getEnvDuration("RECURRING_INTERVAL", 24*time.Hour),
		InsightsInterval:    getEnvDuration("INSIGHTS_INTERVAL", 7*24*time.Hour),
		JobTimeout:          getEnvDuration("JOB_TIMEOUT", 5*time.Minute),
		JobWorkers:          getEnvInt("JOB_WORKERS", 4),
		JobMaxSkips:         getEnvInt("JOB_MAX_SKIPS", 3),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate SQLite configuration
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate SMTP configuration if provided
	if c.SMTPHost != "" {
		if c.SMTPPort < 1 || c.SMTPPort > 65535 {
			errors = append(errors, fmt.Sprintf("invalid SMTP port %d: must be between 1 and 65535", c.SMTPPort))
		}
		if c.EmailFrom == "" {
			errors = append(errors, "EMAIL_FROM is required when SMTP_HOST is provided")
		} else if !strings.Contains(c.EmailFrom, "@") {
			errors = append(errors, fmt.Sprintf("invalid sender address '%s'", c.EmailFrom))
		}
	}

	// Validate Gemini configuration if provided
	if c.GeminiAPIKey != "" && c.GeminiModel == "" {
		errors = append(errors, "Gemini model cannot be empty when an API key is provided")
	}

	// Validate job configuration
	for name, interval := range map[string]time.Duration{
		"budget check interval": c.BudgetCheckInterval,
		"recurring interval":    c.RecurringInterval,
		"insights interval":     c.InsightsInterval,
	} {
		if interval < time.Minute {
			errors = append(errors, fmt.Sprintf("invalid %s %v: must be at least 1 minute", name, interval))
		} else if interval > 30*24*time.Hour {
			errors = append(errors, fmt.Sprintf("invalid %s %v: must be at most 30 days", name, interval))
		}
	}

	if c.JobTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid job timeout %v: must be at least 1 second", c.JobTimeout))
	}

	if c.JobWorkers < 1 {
		errors = append(errors, fmt.Sprintf("invalid job workers %d: must be at least 1", c.JobWorkers))
	} else if c.JobWorkers > 64 {
		errors = append(errors, fmt.Sprintf("invalid job workers %d: must be at most 64", c.JobWorkers))
	}

	if c.JobMaxSkips < 1 {
		errors = append(errors, fmt.Sprintf("invalid job max skips %d: must be at least 1", c.JobMaxSkips))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// MailEnabled reports whether the configuration carries enough SMTP settings
// to send email.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.EmailFrom != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
