package auth

import (
	"context"
	"time"
)

// SignInInfo describes a successful login for the sign-in alert email.
type SignInInfo struct {
	Time      time.Time
	IP        string
	UserAgent string
}

// Notifier delivers account emails. The locale, when one was negotiated,
// travels in ctx.
type Notifier interface {
	SendVerifyCode(ctx context.Context, to, code string, ttl time.Duration) error
	SendResetCode(ctx context.Context, to, code string, ttl time.Duration) error
	SendWelcome(ctx context.Context, to string) error
	SendSignInAlert(ctx context.Context, to string, info SignInInfo) error
}
