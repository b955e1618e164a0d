package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/samber/oops"

	"accountgate/internal/logging"
)

// Session is the credential handed back after register or login.
type Session struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// Controller orchestrates account operations over the store, token and OTP
// services. Password hashing and email delivery never run inside a store
// update.
type Controller struct {
	store    UserStore
	hasher   PasswordHasher
	tokens   *TokenService
	otp      *OTPService
	notifier Notifier
	audit    AuditSink
	policy   PasswordPolicy
	logger   *slog.Logger
	alerts   bool
	now      func() time.Time
}

type ControllerOption func(*Controller)

func WithNotifier(n Notifier) ControllerOption {
	return func(c *Controller) { c.notifier = n }
}

func WithAudit(a AuditSink) ControllerOption {
	return func(c *Controller) { c.audit = a }
}

func WithPasswordPolicy(p PasswordPolicy) ControllerOption {
	return func(c *Controller) { c.policy = p }
}

func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// WithSignInAlerts emails the user after every successful login.
func WithSignInAlerts(enabled bool) ControllerOption {
	return func(c *Controller) { c.alerts = enabled }
}

func WithControllerClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

func NewController(store UserStore, hasher PasswordHasher, tokens *TokenService, otp *OTPService, opts ...ControllerOption) (*Controller, error) {
	switch {
	case store == nil:
		return nil, oops.Code("CONFIG_INVALID").Errorf("user store is required")
	case hasher == nil:
		return nil, oops.Code("CONFIG_INVALID").Errorf("password hasher is required")
	case tokens == nil:
		return nil, oops.Code("CONFIG_INVALID").Errorf("token service is required")
	case otp == nil:
		return nil, oops.Code("CONFIG_INVALID").Errorf("otp service is required")
	}
	c := &Controller{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		otp:    otp,
		audit:  NopAudit(),
		policy: DefaultPasswordPolicy(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Tokens exposes the token service so the transport can verify cookies with
// the same key the controller signs with.
func (c *Controller) Tokens() *TokenService { return c.tokens }

func (c *Controller) Register(ctx context.Context, email, password string) (*Session, error) {
	const op = "register"
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalidInput(op, "missing details")
	}
	if !validEmail(email) {
		return nil, invalidInput(op, "invalid email address")
	}
	if err := c.policy.Validate(password); err != nil {
		return nil, invalidInput(op, err.Error())
	}

	hash, err := c.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("PASSWORD_HASH_FAILED").With("operation", op).Wrap(err)
	}
	u, err := c.store.Create(ctx, &User{Email: email, PasswordHash: hash})
	if err != nil {
		return nil, err
	}

	sess, err := c.issueSession(u.ID)
	if err != nil {
		return nil, err
	}
	c.record(ctx, AuditRegistered, u.ID)
	if c.notifier != nil {
		if err := c.notifier.SendWelcome(ctx, u.Email); err != nil {
			logging.LogWarn(ctx, c.logger, "welcome email failed", oops.With("user_id", u.ID).Wrap(err))
		}
	}
	return sess, nil
}

func (c *Controller) Login(ctx context.Context, email, password string) (*Session, error) {
	const op = "login"
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalidInput(op, "email and password are required")
	}

	u, err := c.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !c.hasher.Compare(u.PasswordHash, password) {
		c.record(ctx, AuditLoginFailed, u.ID)
		return nil, fail(op, ErrBadCredential, "user_id", u.ID)
	}

	sess, err := c.issueSession(u.ID)
	if err != nil {
		return nil, err
	}
	c.record(ctx, AuditLoggedIn, u.ID)
	if c.alerts && c.notifier != nil {
		meta := RequestMetaFromContext(ctx)
		info := SignInInfo{Time: c.now().UTC(), IP: meta.IP, UserAgent: meta.UserAgent}
		if err := c.notifier.SendSignInAlert(ctx, u.Email, info); err != nil {
			logging.LogWarn(ctx, c.logger, "sign-in alert failed", oops.With("user_id", u.ID).Wrap(err))
		}
	}
	return sess, nil
}

// Logout always succeeds. When the presented token is still valid the
// logout is attributed to its user in the audit log.
func (c *Controller) Logout(ctx context.Context, token string) {
	if userID, err := c.tokens.Verify(token); err == nil {
		c.record(ctx, AuditLoggedOut, userID)
	}
}

// SendVerifyOTP attaches a fresh verification code and emails it. The
// code stays attached when delivery fails so a retry can reissue it.
func (c *Controller) SendVerifyOTP(ctx context.Context, userID string) error {
	const op = "send_verify_otp"
	code, u, err := c.otp.Issue(ctx, userID, PurposeVerify, func(u *User) error {
		if u.Verified {
			return fail(op, ErrAlreadyVerified, "user_id", u.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.record(ctx, AuditVerifyCodeSent, u.ID)
	return c.deliver(ctx, op, u, func(n Notifier) error {
		return n.SendVerifyCode(ctx, u.Email, code, c.otp.TTL(PurposeVerify))
	})
}

func (c *Controller) VerifyEmail(ctx context.Context, userID, code string) error {
	const op = "verify_email"
	code = strings.TrimSpace(code)
	if userID == "" || code == "" {
		return invalidInput(op, "missing details")
	}
	u, err := c.otp.Verify(ctx, userID, PurposeVerify, code, func(u *User) error {
		u.Verified = true
		return nil
	})
	if err != nil {
		return err
	}
	c.record(ctx, AuditVerified, u.ID)
	return nil
}

func (c *Controller) SendResetOTP(ctx context.Context, email string) error {
	const op = "send_reset_otp"
	email = NormalizeEmail(email)
	if email == "" {
		return invalidInput(op, "email is required")
	}
	existing, err := c.store.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	code, u, err := c.otp.Issue(ctx, existing.ID, PurposeReset, nil)
	if err != nil {
		return err
	}
	c.record(ctx, AuditResetCodeSent, u.ID)
	return c.deliver(ctx, op, u, func(n Notifier) error {
		return n.SendResetCode(ctx, u.Email, code, c.otp.TTL(PurposeReset))
	})
}

func (c *Controller) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	const op = "reset_password"
	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" || newPassword == "" {
		return invalidInput(op, "email, otp and new password are required")
	}
	if err := c.policy.Validate(newPassword); err != nil {
		return invalidInput(op, err.Error())
	}
	existing, err := c.store.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	hash, err := c.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("PASSWORD_HASH_FAILED").With("operation", op).Wrap(err)
	}
	u, err := c.otp.Verify(ctx, existing.ID, PurposeReset, code, func(u *User) error {
		u.PasswordHash = hash
		return nil
	})
	if err != nil {
		return err
	}
	c.record(ctx, AuditPasswordReset, u.ID)
	return nil
}

// IsAuthenticated is reached only after the middleware admitted the request.
func (c *Controller) IsAuthenticated(_ context.Context, userID string) bool {
	return userID != ""
}

// UserData returns the account behind userID.
func (c *Controller) UserData(ctx context.Context, userID string) (*User, error) {
	return c.store.GetByID(ctx, userID)
}

func (c *Controller) issueSession(userID string) (*Session, error) {
	token, exp, err := c.tokens.Issue(userID)
	if err != nil {
		return nil, err
	}
	return &Session{UserID: userID, Token: token, ExpiresAt: exp}, nil
}

func (c *Controller) deliver(ctx context.Context, op string, u *User, send func(Notifier) error) error {
	if c.notifier == nil {
		return oops.Code(CodeDeliveryFailed).With("operation", op, "user_id", u.ID).Errorf("no email notifier configured")
	}
	if err := send(c.notifier); err != nil {
		return oops.Code(CodeDeliveryFailed).With("operation", op, "user_id", u.ID).Wrap(err)
	}
	return nil
}

func (c *Controller) record(ctx context.Context, typ AuditEventType, userID string) {
	rm := RequestMetaFromContext(ctx)
	err := c.audit.Record(ctx, AuditEvent{
		Type:      typ,
		UserID:    userID,
		IP:        rm.IP,
		UserAgent: rm.UserAgent,
		Timestamp: c.now().UTC(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.LogWarn(ctx, c.logger, "audit record failed", err)
	}
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
