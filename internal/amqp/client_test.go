package amqp

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
		{40, 30 * time.Second}, // shift overflow still capped
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "connection refused",
			err:      errors.New("connection refused"),
			expected: true,
		},
		{
			name:     "closed channel",
			err:      errors.New("channel closed"),
			expected: true,
		},
		{
			name:     "EOF",
			err:      errors.New("unexpected EOF"),
			expected: true,
		},
		{
			name:     "broken pipe",
			err:      errors.New("write: broken pipe"),
			expected: true,
		},
		{
			name:     "handler error",
			err:      errors.New("template rendering failed"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestNewNotificationMessage(t *testing.T) {
	before := time.Now()
	msg := NewNotificationMessage("mario@example.com", "Budget Alert", "You are over budget")
	after := time.Now()

	if msg.To != "mario@example.com" {
		t.Errorf("To = %q, want mario@example.com", msg.To)
	}
	if msg.Subject != "Budget Alert" {
		t.Errorf("Subject = %q, want Budget Alert", msg.Subject)
	}
	if msg.Body != "You are over budget" {
		t.Errorf("Body = %q, want You are over budget", msg.Body)
	}
	if msg.Timestamp.Before(before) || msg.Timestamp.After(after) {
		t.Errorf("Timestamp = %v, want between %v and %v", msg.Timestamp, before, after)
	}
}

func TestNotificationMessage_JSON(t *testing.T) {
	msg := NewNotificationMessage("mario@example.com", "Budget Alert", "Body text")

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	decoded, err := NotificationMessageFromJSON(data)
	if err != nil {
		t.Fatalf("NotificationMessageFromJSON() error = %v", err)
	}

	if decoded.To != msg.To || decoded.Subject != msg.Subject || decoded.Body != msg.Body {
		t.Errorf("round trip = %+v, want %+v", decoded, msg)
	}
}

func TestNotificationMessage_InvalidJSON(t *testing.T) {
	if _, err := NotificationMessageFromJSON([]byte("{not json")); err == nil {
		t.Error("NotificationMessageFromJSON() expected error for invalid JSON")
	}
}
