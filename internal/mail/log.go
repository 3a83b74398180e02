package mail

import (
	"context"
	"log/slog"
)

// LogTransport only logs. It is what mail.enabled=false wires in.
type LogTransport struct {
	log *slog.Logger
}

func NewLogTransport(log *slog.Logger) *LogTransport {
	return &LogTransport{log: log}
}

func (t *LogTransport) Deliver(ctx context.Context, from, to, subject, html string) error {
	t.log.InfoContext(ctx, "mail delivery skipped", "from", from, "to", to, "subject", subject, "bytes", len(html))
	return nil
}
