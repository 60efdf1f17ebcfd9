package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"financebackend/internal/core"
)

// SMTPMailer sends plain-text email over a single SMTP relay. Plain AUTH is
// only attempted when credentials are configured, so a local unauthenticated
// relay works too.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPMailer(host string, port int, username, password, from string) (*SMTPMailer, error) {
	if host == "" || from == "" {
		return nil, fmt.Errorf("smtp host and sender are required: %w", core.ErrConfiguration)
	}
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}, nil
}

// Send implements jobs.Notifier.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("empty recipient: %w", core.ErrValidation)
	}

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	msg := buildMessage(m.from, to, subject, body)
	addr := fmt.Sprintf("%s:%d", m.host, m.port)

	// net/smtp has no context support; run the dial in a goroutine so a
	// cancelled job does not hang on a dead mail server.
	errCh := make(chan error, 1)
	go func() {
		errCh <- smtp.SendMail(addr, auth, m.from, []string{to}, msg)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w: %w", to, core.ErrTransient, err)
		}
	}

	slog.InfoContext(ctx, "Email sent", "to", to, "subject", subject)
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
