package auth

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOTP(t *testing.T, store UserStore, clock *fakeClock, opts ...OTPOption) *OTPService {
	t.Helper()
	opts = append([]OTPOption{
		WithOTPClock(clock.Now),
		WithCodeTTL(PurposeVerify, 10*time.Minute),
		WithCodeTTL(PurposeReset, 15*time.Minute),
	}, opts...)
	svc, err := NewOTPService(store, opts...)
	require.NoError(t, err)
	return svc
}

func createUser(t *testing.T, store UserStore, email string) *User {
	t.Helper()
	u, err := store.Create(context.Background(), &User{Email: email, PasswordHash: "hash"})
	require.NoError(t, err)
	return u
}

func TestOTPService_Generate(t *testing.T) {
	svc := newTestOTP(t, NewMemoryStore(), newFakeClock(), WithCodeLength(8))

	seen := make(map[string]struct{})
	for range 50 {
		code, err := svc.Generate()
		require.NoError(t, err)
		require.Len(t, code, 8)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "non-digit in %q", code)
		}
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}

func TestOTPService_Generate_KeepsLeadingZeros(t *testing.T) {
	svc := newTestOTP(t, NewMemoryStore(), newFakeClock(), WithRandom(bytes.NewReader(make([]byte, 64))))
	code, err := svc.Generate()
	require.NoError(t, err)
	assert.Equal(t, "000000", code)
}

func TestOTPService_Consume(t *testing.T) {
	clock := newFakeClock()
	svc := newTestOTP(t, NewMemoryStore(), clock)

	t.Run("no pending code", func(t *testing.T) {
		u := &User{ID: "u1"}
		err := svc.Consume(u, PurposeVerify, "123456", clock.Now())
		assert.ErrorIs(t, err, ErrNoPendingCode)
		assertErrorCode(t, err, CodeNoPendingCode)
	})

	t.Run("mismatch leaves code in place", func(t *testing.T) {
		u := &User{ID: "u1"}
		svc.Attach(u, PurposeVerify, "123456", clock.Now())
		before := *u.VerifyOTP

		err := svc.Consume(u, PurposeVerify, "654321", clock.Now())
		assert.ErrorIs(t, err, ErrCodeMismatch)
		require.NotNil(t, u.VerifyOTP)
		assert.Equal(t, before, *u.VerifyOTP)
	})

	t.Run("expired", func(t *testing.T) {
		u := &User{ID: "u1"}
		svc.Attach(u, PurposeVerify, "123456", clock.Now())
		err := svc.Consume(u, PurposeVerify, "123456", clock.Now().Add(11*time.Minute))
		assert.ErrorIs(t, err, ErrCodeExpired)
		assert.NotNil(t, u.VerifyOTP)
	})

	t.Run("expiry instant is still valid", func(t *testing.T) {
		u := &User{ID: "u1"}
		svc.Attach(u, PurposeVerify, "123456", clock.Now())
		err := svc.Consume(u, PurposeVerify, "123456", clock.Now().Add(10*time.Minute))
		require.NoError(t, err)
	})

	t.Run("success clears only its purpose", func(t *testing.T) {
		u := &User{ID: "u1"}
		svc.Attach(u, PurposeVerify, "111111", clock.Now())
		svc.Attach(u, PurposeReset, "222222", clock.Now())

		require.NoError(t, svc.Consume(u, PurposeReset, "222222", clock.Now()))
		assert.Nil(t, u.ResetOTP)
		assert.NotNil(t, u.VerifyOTP)
	})

	t.Run("codes are not stored in plaintext", func(t *testing.T) {
		u := &User{ID: "u1"}
		svc.Attach(u, PurposeReset, "222222", clock.Now())
		assert.NotEqual(t, "222222", u.ResetOTP.Hash)
		assert.Equal(t, clock.Now().Add(15*time.Minute), u.ResetOTP.ExpiresAt)
	})
}

func TestOTPService_IssueOverwritesPreviousCode(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	clock := newFakeClock()
	svc := newTestOTP(t, store, clock)
	u := createUser(t, store, "a@example.com")

	first, _, err := svc.Issue(ctx, u.ID, PurposeVerify, nil)
	require.NoError(t, err)
	second, _, err := svc.Issue(ctx, u.ID, PurposeVerify, nil)
	require.NoError(t, err)
	if first == second {
		t.Skip("generator produced the same code twice")
	}

	_, err = svc.Verify(ctx, u.ID, PurposeVerify, first, nil)
	assert.ErrorIs(t, err, ErrCodeMismatch)
	_, err = svc.Verify(ctx, u.ID, PurposeVerify, second, nil)
	require.NoError(t, err)
}

func TestOTPService_Verify_IsAtomicWithEffect(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	clock := newFakeClock()
	svc := newTestOTP(t, store, clock)
	u := createUser(t, store, "a@example.com")

	code, _, err := svc.Issue(ctx, u.ID, PurposeVerify, nil)
	require.NoError(t, err)

	effectErr := errors.New("effect failed")
	_, err = svc.Verify(ctx, u.ID, PurposeVerify, code, func(u *User) error {
		u.Verified = true
		return effectErr
	})
	require.ErrorIs(t, err, effectErr)

	got, err := store.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.Verified)
	require.NotNil(t, got.VerifyOTP, "code must survive a failed effect")

	updated, err := svc.Verify(ctx, u.ID, PurposeVerify, code, func(u *User) error {
		u.Verified = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.Verified)
	assert.Nil(t, updated.VerifyOTP)

	_, err = svc.Verify(ctx, u.ID, PurposeVerify, code, nil)
	assert.ErrorIs(t, err, ErrNoPendingCode)
}

func TestOTPService_IssueCheckVetoes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := newTestOTP(t, store, newFakeClock())
	u := createUser(t, store, "a@example.com")

	veto := errors.New("nope")
	_, _, err := svc.Issue(ctx, u.ID, PurposeVerify, func(*User) error { return veto })
	require.ErrorIs(t, err, veto)

	got, err := store.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got.VerifyOTP)
}

func TestNewOTPService_RequiresStore(t *testing.T) {
	_, err := NewOTPService(nil)
	require.Error(t, err)
}
