package notify

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of delivering them.  Meant
// for local development where no relay is reachable.
type LogSender struct{ Logger *slog.Logger }

func NewLogSender(l *slog.Logger) *LogSender {
	if l == nil {
		l = slog.Default()
	}
	return &LogSender{Logger: l}
}

func (s *LogSender) Send(ctx context.Context, m Message) error {
	if err := m.validate(); err != nil {
		return err
	}
	s.Logger.InfoContext(ctx, "mail not sent (log driver)",
		"to", m.To, "subject", m.Subject, "bytes", len(m.HTML))
	return nil
}
