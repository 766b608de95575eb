package email

import "context"

// Sender provides a testable abstraction over SES delivery.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is a plain-text email. An empty From uses the sender's default address.
type Message struct {
	To      string
	From    string
	ReplyTo string
	Subject string
	Body    string
}

// NopSender drops every message. It is used when email delivery is disabled.
type NopSender struct{}

func (NopSender) Send(context.Context, Message) error { return nil }
