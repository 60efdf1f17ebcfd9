package amqp

import (
	"encoding/json"
	"time"
)

// NotificationMessage carries one outbound email through the queue. The
// mailer worker owns SMTP delivery so jobs never block on a mail server.
type NotificationMessage struct {
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// NewNotificationMessage creates a new notification message
func NewNotificationMessage(to, subject, body string) *NotificationMessage {
	return &NotificationMessage{
		To:        to,
		Subject:   subject,
		Body:      body,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationMessageFromJSON creates a message from JSON bytes
func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
