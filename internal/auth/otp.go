package auth

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"github.com/samber/oops"
)

const (
	DefaultCodeLength = 6
	DefaultVerifyTTL  = 24 * time.Hour
	DefaultResetTTL   = 15 * time.Minute
)

// OTPService generates one-time codes and applies their single-use
// verification against a UserStore.
type OTPService struct {
	store  UserStore
	length int
	ttl    map[Purpose]time.Duration
	now    func() time.Time
	random io.Reader
}

type OTPOption func(*OTPService)

func WithCodeLength(n int) OTPOption {
	return func(s *OTPService) {
		if n > 0 {
			s.length = n
		}
	}
}

func WithCodeTTL(p Purpose, ttl time.Duration) OTPOption {
	return func(s *OTPService) {
		if ttl > 0 {
			s.ttl[p] = ttl
		}
	}
}

func WithOTPClock(now func() time.Time) OTPOption {
	return func(s *OTPService) { s.now = now }
}

// WithRandom replaces the entropy source. Only tests should need this.
func WithRandom(r io.Reader) OTPOption {
	return func(s *OTPService) { s.random = r }
}

func NewOTPService(store UserStore, opts ...OTPOption) (*OTPService, error) {
	if store == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("user store is required")
	}
	s := &OTPService{
		store:  store,
		length: DefaultCodeLength,
		ttl: map[Purpose]time.Duration{
			PurposeVerify: DefaultVerifyTTL,
			PurposeReset:  DefaultResetTTL,
		},
		now:    time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the validity window for codes of the given purpose.
func (s *OTPService) TTL(p Purpose) time.Duration { return s.ttl[p] }

// Generate returns a code of the configured length, each digit drawn
// uniformly. Leading zeros are kept.
func (s *OTPService) Generate() (string, error) {
	code := make([]byte, 0, s.length)
	var buf [16]byte
	for len(code) < s.length {
		if _, err := io.ReadFull(s.random, buf[:]); err != nil {
			return "", oops.Code("OTP_GENERATE_FAILED").Wrap(err)
		}
		for _, b := range buf {
			// 250 is the largest multiple of 10 that fits in a byte.
			if b >= 250 || len(code) == s.length {
				continue
			}
			code = append(code, '0'+b%10)
		}
	}
	return string(code), nil
}

// Attach stores code as the pending code for p, replacing any earlier one.
func (s *OTPService) Attach(u *User, p Purpose, code string, now time.Time) {
	*u.pending(p) = &PendingCode{
		Hash:      HashString(code),
		ExpiresAt: now.Add(s.ttl[p]).UTC(),
	}
}

// Consume checks supplied against the pending code for p and clears it on
// success. On failure u is left untouched, so an expired code stays attached
// until the next Issue replaces it.
func (s *OTPService) Consume(u *User, p Purpose, supplied string, now time.Time) error {
	slot := u.pending(p)
	pc := *slot
	if pc == nil || pc.Hash == "" {
		return fail("otp.consume", ErrNoPendingCode, "user_id", u.ID, "purpose", string(p))
	}
	if now.After(pc.ExpiresAt) {
		return fail("otp.consume", ErrCodeExpired, "user_id", u.ID, "purpose", string(p))
	}
	if !hashesEqual(HashString(supplied), pc.Hash) {
		return fail("otp.consume", ErrCodeMismatch, "user_id", u.ID, "purpose", string(p))
	}
	*slot = nil
	return nil
}

// Issue generates a code for p and attaches it to the user in one atomic
// update. check runs first against the current record and may veto.
// The plaintext code is returned for delivery after the update commits.
func (s *OTPService) Issue(ctx context.Context, userID string, p Purpose, check func(*User) error) (string, *User, error) {
	code, err := s.Generate()
	if err != nil {
		return "", nil, err
	}
	u, err := s.store.Update(ctx, userID, func(u *User) error {
		if check != nil {
			if err := check(u); err != nil {
				return err
			}
		}
		s.Attach(u, p, code, s.now())
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return code, u, nil
}

// Verify consumes the pending code and applies effect in the same atomic
// update. Either both happen or neither does.
func (s *OTPService) Verify(ctx context.Context, userID string, p Purpose, supplied string, effect func(*User) error) (*User, error) {
	return s.store.Update(ctx, userID, func(u *User) error {
		if err := s.Consume(u, p, supplied, s.now()); err != nil {
			return err
		}
		if effect != nil {
			return effect(u)
		}
		return nil
	})
}
