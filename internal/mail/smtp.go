package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

type sendFunc func(ctx context.Context, msg *gomail.Msg) error

type SMTPTransport struct {
	send sendFunc
}

// NewSMTPTransport builds a client for cfg. STARTTLS is used when the server
// offers it; PLAIN auth only when a username is set.
func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPTransport{
		send: func(ctx context.Context, msg *gomail.Msg) error {
			return client.DialAndSendWithContext(ctx, msg)
		},
	}, nil
}

func (t *SMTPTransport) Deliver(ctx context.Context, from, to, subject, html string) error {
	msg, err := buildMessage(from, to, subject, html)
	if err != nil {
		return err
	}
	if err := t.send(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, html string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("parse from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("parse to: %w", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(gomail.TypeTextHTML, html)
	return msg, nil
}
