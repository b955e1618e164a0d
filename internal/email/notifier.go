package email

import (
	"context"
	"time"

	"accountgate/internal/auth"
	"accountgate/internal/i18n"
)

// Notifier renders localized account emails and hands them to a Sender.
type Notifier struct {
	sender Sender
}

var _ auth.Notifier = (*Notifier)(nil)

func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

func (n *Notifier) send(ctx context.Context, to string, c i18n.EmailContent) error {
	return n.sender.Send(ctx, to, c.Subject, c.Text, c.HTML)
}

func (n *Notifier) SendVerifyCode(ctx context.Context, to, code string, ttl time.Duration) error {
	return n.send(ctx, to, i18n.VerifyCodeEmail(i18n.LocaleFromContext(ctx), to, code, ttl))
}

func (n *Notifier) SendResetCode(ctx context.Context, to, code string, ttl time.Duration) error {
	return n.send(ctx, to, i18n.ResetCodeEmail(i18n.LocaleFromContext(ctx), to, code, ttl))
}

func (n *Notifier) SendWelcome(ctx context.Context, to string) error {
	return n.send(ctx, to, i18n.WelcomeEmail(i18n.LocaleFromContext(ctx), to))
}

func (n *Notifier) SendSignInAlert(ctx context.Context, to string, info auth.SignInInfo) error {
	return n.send(ctx, to, i18n.SignInAlertEmail(i18n.LocaleFromContext(ctx), to, info.Time, info.IP, info.UserAgent))
}
