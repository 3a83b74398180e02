package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	netmail "net/mail"
)

//go:embed templates/*.html
var templateFS embed.FS

// Message is one templated email. Template names a file under templates/
// without its extension.
type Message struct {
	To       string
	Subject  string
	Template string
	Context  map[string]any
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Transport delivers a rendered HTML email.
type Transport interface {
	Deliver(ctx context.Context, from, to, subject, html string) error
}

type Mailer struct {
	from      string
	transport Transport
	templates *template.Template
}

func NewMailer(from string, transport Transport) (*Mailer, error) {
	if _, err := netmail.ParseAddress(from); err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", from, err)
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Mailer{from: from, transport: transport, templates: tmpl}, nil
}

func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if _, err := netmail.ParseAddress(msg.To); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	t := m.templates.Lookup(msg.Template + ".html")
	if t == nil {
		return fmt.Errorf("unknown mail template %q", msg.Template)
	}
	var body bytes.Buffer
	if err := t.Execute(&body, msg.Context); err != nil {
		return fmt.Errorf("render %s: %w", msg.Template, err)
	}
	return m.transport.Deliver(ctx, m.from, msg.To, msg.Subject, body.String())
}
