package notify

import (
	"errors"
	"strings"
	"testing"

	"financebackend/internal/core"
)

func TestNewSMTPMailerRequiresHostAndSender(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		from    string
		wantErr bool
	}{
		{"both set", "smtp.example.com", "alerts@example.com", false},
		{"missing host", "", "alerts@example.com", true},
		{"missing sender", "smtp.example.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSMTPMailer(tt.host, 587, "", "", tt.from)
			if tt.wantErr {
				if !errors.Is(err, core.ErrConfiguration) {
					t.Errorf("NewSMTPMailer() error = %v, want ErrConfiguration", err)
				}
			} else if err != nil {
				t.Errorf("NewSMTPMailer() error = %v", err)
			}
		})
	}
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("alerts@example.com", "mario@example.com", "Budget Alert", "over budget"))

	headers, body, found := strings.Cut(msg, "\r\n\r\n")
	if !found {
		t.Fatal("message has no header/body separator")
	}
	for _, want := range []string{
		"From: alerts@example.com",
		"To: mario@example.com",
		"Subject: Budget Alert",
		"Content-Type: text/plain; charset=utf-8",
	} {
		if !strings.Contains(headers, want) {
			t.Errorf("headers missing %q in %q", want, headers)
		}
	}
	if body != "over budget" {
		t.Errorf("body = %q, want %q", body, "over budget")
	}
}
