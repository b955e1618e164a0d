package email

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the logger instead of sending them. Meant
// for local development, where the OTP can be read from the log.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(ctx context.Context, to, subject, text, _ string) error {
	l.logger.InfoContext(ctx, "email not sent, log provider active",
		"to", to,
		"subject", subject,
		"body", text,
	)
	return nil
}
